package commissions

import (
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

type CommissionDTO struct {
	ID              uuid.UUID              `json:"id"`
	PartnerID       uuid.UUID              `json:"partner_id"`
	OrderID         uuid.UUID              `json:"order_id"`
	RevenueCents    int64                  `json:"revenue_cents"`
	CommissionCents int64                  `json:"commission_cents"`
	RateApplied     string                 `json:"rate_applied"`
	Status          enums.CommissionStatus `json:"status"`
	ApprovedAt      *time.Time             `json:"approved_at,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

type CommissionList struct {
	Commissions []CommissionDTO `json:"commissions"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

// Bucket aggregates commissions sharing one status.
type Bucket struct {
	Count           int64 `json:"count"`
	RevenueCents    int64 `json:"revenue_cents"`
	CommissionCents int64 `json:"commission_cents"`
}

// Summary is the settlement view of a partner's commissions.
type Summary struct {
	PartnerID        uuid.UUID `json:"partner_id"`
	Pending          Bucket    `json:"pending"`
	Approved         Bucket    `json:"approved"`
	Paid             Bucket    `json:"paid"`
	OutstandingCents int64     `json:"outstanding_cents"`
}

func FromModel(row *models.Commission) *CommissionDTO {
	if row == nil {
		return nil
	}
	return &CommissionDTO{
		ID:              row.ID,
		PartnerID:       row.PartnerID,
		OrderID:         row.OrderID,
		RevenueCents:    row.RevenueCents,
		CommissionCents: row.CommissionCents,
		RateApplied:     row.RateApplied.StringFixed(2),
		Status:          row.Status,
		ApprovedAt:      row.ApprovedAt,
		PaidAt:          row.PaidAt,
		CreatedAt:       row.CreatedAt,
	}
}
