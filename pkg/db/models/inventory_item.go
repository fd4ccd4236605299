package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is the per-product stock ledger row. Version is bumped by
// every successful mutation and guards the optimistic update.
type InventoryItem struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	Reserved  int       `gorm:"column:reserved;not null;default:0"`
	MinStock  int       `gorm:"column:min_stock;not null;default:0"`
	MaxStock  int       `gorm:"column:max_stock;not null;default:0"`
	Version   int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
