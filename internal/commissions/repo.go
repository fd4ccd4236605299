package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
)

// Repository persists partner commissions.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a commissions repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, row *models.Commission) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Commission, error) {
	var row models.Commission
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForOrder returns the order's commissions keyed by partner.
func (r *Repository) FindForOrder(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]models.Commission, error) {
	var rows []models.Commission
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Commission, len(rows))
	for _, row := range rows {
		out[row.PartnerID] = row
	}
	return out, nil
}

func (r *Repository) ListPendingByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.Commission, error) {
	var rows []models.Commission
	err := r.db.WithContext(ctx).
		Where("partner_id = ? AND status = ?", partnerID, enums.CommissionStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByPartner(ctx context.Context, partnerID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Commission, error) {
	query := r.db.WithContext(ctx).Where("partner_id = ?", partnerID)
	if cursor != nil {
		query = query.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Commission
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UpdatePendingAmounts rewrites amounts only while the row is still pending.
func (r *Repository) UpdatePendingAmounts(ctx context.Context, id uuid.UUID, a Attribution) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, enums.CommissionStatusPending).
		Updates(map[string]any{
			"revenue_cents":    a.RevenueCents,
			"commission_cents": a.CommissionCents,
			"rate_applied":     a.Rate,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompareAndSetStatus applies updates only while the row is still in from.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from enums.CommissionStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) DeletePendingForOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.CommissionStatusPending).
		Delete(&models.Commission{})
	return res.RowsAffected, res.Error
}

// StatusTotals is one status bucket of a partner's commissions.
type StatusTotals struct {
	Status          enums.CommissionStatus
	Count           int64
	RevenueCents    int64
	CommissionCents int64
}

func (r *Repository) TotalsByStatus(ctx context.Context, partnerID uuid.UUID) ([]StatusTotals, error) {
	var rows []StatusTotals
	err := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(revenue_cents), 0) AS revenue_cents, COALESCE(SUM(commission_cents), 0) AS commission_cents").
		Where("partner_id = ?", partnerID).
		Group("status").
		Scan(&rows).Error
	return rows, err
}
