package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Adjuster applies manual stock corrections and announces them on the outbox.
// The ledger write stands on its own; a failed announcement is only logged.
type Adjuster struct {
	inventory Service
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
}

func NewAdjuster(inventory Service, tx txRunner, events outboxPublisher, logg *logger.Logger) (*Adjuster, error) {
	if inventory == nil || tx == nil || events == nil || logg == nil {
		return nil, fmt.Errorf("adjuster dependencies required")
	}
	return &Adjuster{inventory: inventory, tx: tx, outbox: events, logg: logg}, nil
}

func (a *Adjuster) Adjust(ctx context.Context, input AdjustInput, role enums.Role) (*ItemStatus, error) {
	status, err := a.inventory.AdjustStock(ctx, input)
	if err != nil {
		return nil, err
	}

	var actor *outbox.ActorRef
	var actorID *uuid.UUID
	if input.ActorUserID != uuid.Nil {
		id := input.ActorUserID
		actorID = &id
		actor = &outbox.ActorRef{UserID: id, Role: role}
	}
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return a.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventory,
			AggregateID:   input.ProductID,
			Actor:         actor,
			Data: payloads.InventoryAdjustedEvent{
				ProductID:   input.ProductID,
				Delta:       input.Delta,
				Stock:       status.Stock,
				Reserved:    status.Reserved,
				Status:      status.Status,
				Reason:      input.Reason,
				ActorUserID: actorID,
			},
		})
	})
	if err != nil {
		a.logg.Error(a.logg.WithProductID(ctx, input.ProductID.String()), "emit inventory adjusted event", err)
	}
	return status, nil
}
