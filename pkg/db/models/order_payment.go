package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

// OrderPayment is the payment sub-record of an order.
type OrderPayment struct {
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;primaryKey"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	MerchantID    string              `gorm:"column:merchant_id;not null"`
	TransactionID *string             `gorm:"column:transaction_id"`
	ResultCode    *string             `gorm:"column:result_code"`
	FailureReason *string             `gorm:"column:failure_reason"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
