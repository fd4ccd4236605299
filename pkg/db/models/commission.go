package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

// Commission groups one partner's earnings within one order.
type Commission struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID       uuid.UUID              `gorm:"column:partner_id;type:uuid;not null;uniqueIndex:ux_commissions_partner_order,priority:1"`
	OrderID         uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_commissions_partner_order,priority:2"`
	RevenueCents    int64                  `gorm:"column:revenue_cents;not null"`
	CommissionCents int64                  `gorm:"column:commission_cents;not null"`
	RateApplied     decimal.Decimal        `gorm:"column:rate_applied;type:numeric(5,2);not null"`
	Status          enums.CommissionStatus `gorm:"column:status;type:text;not null"`
	ApprovedAt      *time.Time             `gorm:"column:approved_at"`
	PaidAt          *time.Time             `gorm:"column:paid_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Commission) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
