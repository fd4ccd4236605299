package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

// OrderCreatedEvent signals a new pending order with its reservations in place.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	TotalCents  int64     `json:"total_cents"`
	LineCount   int       `json:"line_count"`
}

// OrderStatusChangedEvent is emitted for every accepted state-machine transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	ActorRole   enums.Role        `json:"actor_role,omitempty"`
}

// OrderPaidEvent reports a confirmed gateway payment.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	AmountCents   int64     `json:"amount_cents"`
	TransactionID string    `json:"transaction_id,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

// OrderCancelledEvent is emitted when an order is cancelled before shipment.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Previous    enums.OrderStatus `json:"previous_status"`
	CancelledAt time.Time         `json:"cancelled_at"`
	Reason      string            `json:"reason,omitempty"`
}

// OrderExpiredEvent reports a pending order cancelled by the expiry job.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// PaymentFailedEvent reports a non-success gateway result.
type PaymentFailedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ResultCode    string    `json:"result_code"`
	Reason        string    `json:"reason,omitempty"`
}

// InventoryAdjustedEvent records a manual stock correction.
type InventoryAdjustedEvent struct {
	ProductID   uuid.UUID             `json:"product_id"`
	Delta       int                   `json:"delta"`
	Stock       int                   `json:"stock"`
	Reserved    int                   `json:"reserved"`
	Status      enums.InventoryStatus `json:"status"`
	Reason      string                `json:"reason"`
	ActorUserID *uuid.UUID            `json:"actor_user_id,omitempty"`
}

// CommissionAttributedEvent is emitted when a partner commission is created or recomputed.
type CommissionAttributedEvent struct {
	CommissionID    uuid.UUID `json:"commission_id"`
	PartnerID       uuid.UUID `json:"partner_id"`
	OrderID         uuid.UUID `json:"order_id"`
	RevenueCents    int64     `json:"revenue_cents"`
	CommissionCents int64     `json:"commission_cents"`
	RateApplied     string    `json:"rate_applied"`
}

// CommissionStateChangedEvent tracks the settlement lifecycle.
type CommissionStateChangedEvent struct {
	CommissionID uuid.UUID              `json:"commission_id"`
	PartnerID    uuid.UUID              `json:"partner_id"`
	From         enums.CommissionStatus `json:"from"`
	To           enums.CommissionStatus `json:"to"`
}
