package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

// InventoryMovement is the audit row written alongside every ledger mutation.
// Order-scoped rows are unique per (order_id, product_id, kind).
type InventoryMovement struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_movements_order_scope,priority:2"`
	OrderID       *uuid.UUID         `gorm:"column:order_id;type:uuid;uniqueIndex:ux_inventory_movements_order_scope,priority:1"`
	Kind          enums.MovementKind `gorm:"column:kind;type:text;not null;uniqueIndex:ux_inventory_movements_order_scope,priority:3"`
	Qty           int                `gorm:"column:qty;not null"`
	Reason        *string            `gorm:"column:reason"`
	ActorUserID   *uuid.UUID         `gorm:"column:actor_user_id;type:uuid"`
	StockAfter    int                `gorm:"column:stock_after;not null"`
	ReservedAfter int                `gorm:"column:reserved_after;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
