package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

var (
	// ErrVersionConflict means another writer updated the row since it was loaded.
	ErrVersionConflict = errors.New("inventory version conflict")
	// ErrDuplicateMovement means the order-scoped movement was already recorded.
	ErrDuplicateMovement = errors.New("inventory movement already recorded")
	// ErrProductNotFound means no ledger row exists for the product.
	ErrProductNotFound = errors.New("inventory item not found")
)

// Snapshot is a ledger row together with its concurrency token.
type Snapshot struct {
	ProductID uuid.UUID
	Stock     ledger.Stock
	Version   int64
	UpdatedAt time.Time
}

// Movement is the audit record persisted with a mutation.
type Movement struct {
	Kind        enums.MovementKind
	Qty         int
	OrderID     *uuid.UUID
	Reason      *string
	ActorUserID *uuid.UUID
}

// Mutation replaces the ledger row if it is still at ExpectedVersion and
// records Movement in the same atomic write.
type Mutation struct {
	ProductID       uuid.UUID
	ExpectedVersion int64
	Next            ledger.Stock
	Movement        Movement
}

// Store persists the stock ledger. Apply must be atomic: either the row and the
// movement are both written or neither is.
type Store interface {
	Init(ctx context.Context, productID uuid.UUID, stock ledger.Stock) error
	Load(ctx context.Context, productID uuid.UUID) (Snapshot, error)
	List(ctx context.Context) ([]Snapshot, error)
	Apply(ctx context.Context, m Mutation) error
	OrderMovements(ctx context.Context, orderID, productID uuid.UUID) (map[enums.MovementKind]bool, error)
}
