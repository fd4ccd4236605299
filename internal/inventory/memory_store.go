package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
)

type movementKey struct {
	orderID   uuid.UUID
	productID uuid.UUID
	kind      enums.MovementKind
}

// MemoryStore is a single-process ledger for local development and tests. It
// honours the same version and movement-uniqueness contract as GormStore.
type MemoryStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]Snapshot
	movements map[movementKey]struct{}
	log       []Mutation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:     make(map[uuid.UUID]Snapshot),
		movements: make(map[movementKey]struct{}),
	}
}

func (s *MemoryStore) Init(_ context.Context, productID uuid.UUID, stock ledger.Stock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[productID] = Snapshot{ProductID: productID, Stock: stock, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, productID uuid.UUID) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.items[productID]
	if !ok {
		return Snapshot{}, ErrProductNotFound
	}
	return snap, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.items))
	for _, snap := range s.items {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}

func (s *MemoryStore) Apply(ctx context.Context, m Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[m.ProductID]
	if !ok {
		return ErrProductNotFound
	}
	if current.Version != m.ExpectedVersion {
		return ErrVersionConflict
	}
	if m.Movement.OrderID != nil {
		key := movementKey{orderID: *m.Movement.OrderID, productID: m.ProductID, kind: m.Movement.Kind}
		if _, dup := s.movements[key]; dup {
			return ErrDuplicateMovement
		}
		s.movements[key] = struct{}{}
	}
	s.items[m.ProductID] = Snapshot{
		ProductID: m.ProductID,
		Stock:     m.Next,
		Version:   current.Version + 1,
		UpdatedAt: time.Now().UTC(),
	}
	s.log = append(s.log, m)
	return nil
}

func (s *MemoryStore) OrderMovements(_ context.Context, orderID, productID uuid.UUID) (map[enums.MovementKind]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[enums.MovementKind]bool)
	for key := range s.movements {
		if key.orderID == orderID && key.productID == productID {
			out[key.kind] = true
		}
	}
	return out, nil
}

// applied returns the number of committed mutations.
func (s *MemoryStore) applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.log)
}
