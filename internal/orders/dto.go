package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/types"
)

// Actor is the resolved caller identity the auth layer hands to the order workflows.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// ItemInput is one requested product quantity at checkout.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput carries a checkout request.
type CreateOrderInput struct {
	UserID          uuid.UUID
	Items           []ItemInput
	ShippingAddress types.Address
	Notes           *string
}

// UpdateStatusInput carries a partner or admin status change.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Target  enums.OrderStatus
	Actor   Actor
}

// LineItemDTO is the transport shape of an order line.
type LineItemDTO struct {
	ID             uuid.UUID  `json:"id"`
	Position       int        `json:"position"`
	ProductID      uuid.UUID  `json:"product_id"`
	PartnerID      *uuid.UUID `json:"partner_id,omitempty"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	TotalCents     int64      `json:"total_cents"`
}

// PaymentDTO is the transport shape of the payment sub-record.
type PaymentDTO struct {
	Status        enums.PaymentStatus `json:"status"`
	AmountCents   int64               `json:"amount_cents"`
	MerchantID    string              `json:"merchant_id"`
	TransactionID *string             `json:"transaction_id,omitempty"`
	ResultCode    *string             `json:"result_code,omitempty"`
	FailureReason *string             `json:"failure_reason,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	TotalCents      int64               `json:"total_cents"`
	ShippingAddress types.Address       `json:"shipping_address"`
	Notes           *string             `json:"notes,omitempty"`
	Items           []LineItemDTO       `json:"items"`
	Payment         *PaymentDTO         `json:"payment,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel maps a loaded order aggregate to its DTO.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		TotalCents:      o.TotalCents,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Items:           make([]LineItemDTO, 0, len(o.Items)),
		CancelledAt:     o.CancelledAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, LineItemDTO{
			ID:             item.ID,
			Position:       item.Position,
			ProductID:      item.ProductID,
			PartnerID:      item.PartnerID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	if p := o.Payment; p != nil {
		dto.Payment = &PaymentDTO{
			Status:        p.Status,
			AmountCents:   p.AmountCents,
			MerchantID:    p.MerchantID,
			TransactionID: p.TransactionID,
			ResultCode:    p.ResultCode,
			FailureReason: p.FailureReason,
			PaidAt:        p.PaidAt,
		}
	}
	return dto
}

// ReservationLines converts order lines into order-scoped inventory lines.
func ReservationLines(o *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Qty: item.Quantity, OrderID: o.ID})
	}
	return lines
}
