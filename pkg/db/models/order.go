package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/types"
)

// Order is the storefront order aggregate root.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	TotalCents      int64               `gorm:"column:total_cents;not null"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	Notes           *string             `gorm:"column:notes"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Items           []OrderLineItem     `gorm:"foreignKey:OrderID;references:ID"`
	Payment         *OrderPayment       `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
