package commissions

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// LineCommission is qty*unitPrice*rate/100 rounded half away from zero to whole cents.
func LineCommission(qty int, unitPriceCents int64, rate decimal.Decimal) int64 {
	gross := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(unitPriceCents))
	return gross.Mul(rate).Div(hundred).Round(0).IntPart()
}

// Attribution is one partner's share of one order.
type Attribution struct {
	PartnerID       uuid.UUID
	OrderID         uuid.UUID
	RevenueCents    int64
	CommissionCents int64
	Rate            decimal.Decimal
}

// Attribute groups the order's partner lines and prices them at the given
// rates. Lines without a partner, or whose partner has no rate, are skipped.
// The result keeps the order of first appearance.
func Attribute(order *models.Order, rates map[uuid.UUID]decimal.Decimal) []Attribution {
	index := map[uuid.UUID]int{}
	var out []Attribution
	for _, item := range order.Items {
		if item.PartnerID == nil {
			continue
		}
		rate, ok := rates[*item.PartnerID]
		if !ok {
			continue
		}
		pos, seen := index[*item.PartnerID]
		if !seen {
			pos = len(out)
			index[*item.PartnerID] = pos
			out = append(out, Attribution{PartnerID: *item.PartnerID, OrderID: order.ID, Rate: rate})
		}
		out[pos].RevenueCents += item.TotalCents
		out[pos].CommissionCents += LineCommission(item.Quantity, item.UnitPriceCents, rate)
	}
	return out
}

// PartnerIDs lists the distinct partners selling on the order.
func PartnerIDs(order *models.Order) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, item := range order.Items {
		if item.PartnerID == nil || seen[*item.PartnerID] {
			continue
		}
		seen[*item.PartnerID] = true
		out = append(out, *item.PartnerID)
	}
	return out
}
