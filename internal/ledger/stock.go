// Package ledger holds the per-product stock counters and the pure transitions
// applied to them. Nothing here performs I/O; the inventory service loads a
// Stock, applies one transition, and writes the result back atomically.
package ledger

import (
	"fmt"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
)

// Stock is the authoritative count for one product.
type Stock struct {
	Stock    int
	Reserved int
	MinStock int
	MaxStock int
}

// Available is the quantity purchasable right now.
func (s Stock) Available() int {
	return s.Stock - s.Reserved
}

// Status classifies the stock position. Checks run in priority order so a
// depleted product reports out_of_stock even if its stock exceeds maxStock.
func (s Stock) Status() enums.InventoryStatus {
	available := s.Available()
	switch {
	case available <= 0:
		return enums.InventoryStatusOutOfStock
	case available <= s.MinStock:
		return enums.InventoryStatusLowStock
	case s.Stock > s.MaxStock:
		return enums.InventoryStatusOverstocked
	default:
		return enums.InventoryStatusInStock
	}
}

// Reserve holds qty against an unpaid order.
func (s Stock) Reserve(qty int) (Stock, error) {
	if err := requirePositive(qty); err != nil {
		return s, err
	}
	if qty > s.Available() {
		return s, pkgerrors.Domain(pkgerrors.ReasonInsufficientStock,
			fmt.Sprintf("insufficient stock: requested %d, available %d", qty, s.Available())).
			WithDetails(map[string]any{"requested": qty, "available": s.Available()})
	}
	s.Reserved += qty
	return s, nil
}

// Confirm consumes qty of previously reserved stock.
func (s Stock) Confirm(qty int) (Stock, error) {
	if err := requirePositive(qty); err != nil {
		return s, err
	}
	if qty > s.Reserved {
		return s, pkgerrors.Domain(pkgerrors.ReasonNotReserved,
			fmt.Sprintf("cannot confirm %d units, only %d reserved", qty, s.Reserved)).
			WithDetails(map[string]any{"requested": qty, "reserved": s.Reserved})
	}
	s.Reserved -= qty
	s.Stock -= qty
	return s, nil
}

// Release returns qty of reserved stock to availability. Reserved is clamped at
// zero and the excess is reported so callers can log it.
func (s Stock) Release(qty int) (Stock, int, error) {
	if err := requirePositive(qty); err != nil {
		return s, 0, err
	}
	overflow := 0
	if qty > s.Reserved {
		overflow = qty - s.Reserved
		qty = s.Reserved
	}
	s.Reserved -= qty
	return s, overflow, nil
}

// Adjust applies a direct stock correction. Negative deltas may not push stock
// below zero nor below what is already reserved.
func (s Stock) Adjust(delta int) (Stock, error) {
	if delta == 0 {
		return s, pkgerrors.New(pkgerrors.CodeValidation, "adjustment delta must be non-zero")
	}
	next := s.Stock + delta
	if next < 0 {
		return s, pkgerrors.Domain(pkgerrors.ReasonNegativeStock,
			fmt.Sprintf("adjustment would drive stock to %d", next)).
			WithDetails(map[string]any{"stock": s.Stock, "delta": delta})
	}
	if next < s.Reserved {
		return s, pkgerrors.Domain(pkgerrors.ReasonNegativeStock,
			fmt.Sprintf("adjustment would leave stock %d below reserved %d", next, s.Reserved)).
			WithDetails(map[string]any{"stock": s.Stock, "reserved": s.Reserved, "delta": delta})
	}
	s.Stock = next
	return s, nil
}

// Valid reports whether the counters satisfy the ledger invariant.
func (s Stock) Valid() bool {
	return s.Stock >= 0 && s.Reserved >= 0 && s.Available() >= 0
}

func requirePositive(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"qty": qty})
	}
	return nil
}
