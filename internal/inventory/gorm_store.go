package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	dbpkg "github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

const movementScopeIndex = "ux_inventory_movements_order_scope"

// GormStore keeps the ledger in inventory_items and the audit trail in
// inventory_movements.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Init(ctx context.Context, productID uuid.UUID, stock ledger.Stock) error {
	item := models.InventoryItem{
		ProductID: productID,
		Stock:     stock.Stock,
		Reserved:  stock.Reserved,
		MinStock:  stock.MinStock,
		MaxStock:  stock.MaxStock,
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&item).Error
}

func (s *GormStore) Load(ctx context.Context, productID uuid.UUID) (Snapshot, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, ErrProductNotFound
		}
		return Snapshot{}, err
	}
	return snapshotFromModel(item), nil
}

func (s *GormStore) List(ctx context.Context) ([]Snapshot, error) {
	var items []models.InventoryItem
	if err := s.db.WithContext(ctx).Order("product_id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(items))
	for _, item := range items {
		out = append(out, snapshotFromModel(item))
	}
	return out, nil
}

func (s *GormStore) Apply(ctx context.Context, m Mutation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.InventoryItem{}).
			Where("product_id = ? AND version = ?", m.ProductID, m.ExpectedVersion).
			Updates(map[string]any{
				"stock":      m.Next.Stock,
				"reserved":   m.Next.Reserved,
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		movement := models.InventoryMovement{
			ProductID:     m.ProductID,
			OrderID:       m.Movement.OrderID,
			Kind:          m.Movement.Kind,
			Qty:           m.Movement.Qty,
			Reason:        m.Movement.Reason,
			ActorUserID:   m.Movement.ActorUserID,
			StockAfter:    m.Next.Stock,
			ReservedAfter: m.Next.Reserved,
		}
		if err := tx.Create(&movement).Error; err != nil {
			if dbpkg.IsUniqueViolation(err, movementScopeIndex) {
				return ErrDuplicateMovement
			}
			return err
		}
		return nil
	})
}

func (s *GormStore) OrderMovements(ctx context.Context, orderID, productID uuid.UUID) (map[enums.MovementKind]bool, error) {
	var kinds []enums.MovementKind
	err := s.db.WithContext(ctx).
		Model(&models.InventoryMovement{}).
		Where("order_id = ? AND product_id = ?", orderID, productID).
		Pluck("kind", &kinds).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.MovementKind]bool, len(kinds))
	for _, kind := range kinds {
		out[kind] = true
	}
	return out, nil
}

func snapshotFromModel(item models.InventoryItem) Snapshot {
	return Snapshot{
		ProductID: item.ProductID,
		Stock: ledger.Stock{
			Stock:    item.Stock,
			Reserved: item.Reserved,
			MinStock: item.MinStock,
			MaxStock: item.MaxStock,
		},
		Version:   item.Version,
		UpdatedAt: item.UpdatedAt,
	}
}
