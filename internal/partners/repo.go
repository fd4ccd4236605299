package partners

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
)

var (
	minRate = decimal.Zero
	maxRate = decimal.NewFromInt(100)
)

// Repository handles partner persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to partner operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a new partner row.
func (r *Repository) Create(ctx context.Context, partner *models.Partner) (*models.Partner, error) {
	if partner == nil {
		return nil, fmt.Errorf("partner is required")
	}
	if err := ValidateRate(partner.CommissionRate); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(partner).Error; err != nil {
		return nil, err
	}
	return partner, nil
}

// FindByID loads a partner by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).First(&partner, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

// FindByUserID resolves the partner account operated by a user.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).First(&partner, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

// FindByIDs returns partners keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Partner, error) {
	out := make(map[uuid.UUID]models.Partner, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Partner
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// UpdateRate changes the partner's commission percentage.
func (r *Repository) UpdateRate(ctx context.Context, id uuid.UUID, rate decimal.Decimal) error {
	if err := ValidateRate(rate); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&models.Partner{}).
		Where("id = ?", id).
		Update("commission_rate", rate)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ValidateRate enforces a percentage between 0 and 100.
func ValidateRate(rate decimal.Decimal) error {
	if rate.LessThan(minRate) || rate.GreaterThan(maxRate) {
		return fmt.Errorf("commission rate %s must be between 0 and 100", rate.String())
	}
	return nil
}
