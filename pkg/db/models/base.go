package models

import (
	"github.com/google/uuid"
)

// ensureID assigns a fresh identifier when the caller left it unset.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every table the engine owns, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Partner{},
		&Product{},
		&InventoryItem{},
		&InventoryMovement{},
		&Order{},
		&OrderLineItem{},
		&OrderPayment{},
		&Commission{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
