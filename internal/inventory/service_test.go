package inventory

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/metrics"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func newMemoryService(t *testing.T, store Store) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Store:          store,
		Logger:         newTestLogger(),
		Metrics:        metrics.NewInventoryMetrics(prometheus.NewRegistry()),
		RetryAttempts:  50,
		RetryBaseDelay: time.Microsecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seed(t *testing.T, svc Service, stock ledger.Stock) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := svc.Track(context.Background(), id, stock); err != nil {
		t.Fatalf("track: %v", err)
	}
	return id
}

func mustStatus(t *testing.T, svc Service, productID uuid.UUID) *ItemStatus {
	t.Helper()
	status, err := svc.GetProductInventoryStatus(context.Background(), productID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return status
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: newTestLogger()}); err == nil {
		t.Fatalf("expected store requirement")
	}
	if _, err := NewService(ServiceParams{Store: NewMemoryStore()}); err == nil {
		t.Fatalf("expected logger requirement")
	}
}

func TestReserveThenConfirmConsumesStock(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 10, MinStock: 2, MaxStock: 100})
	order := uuid.New()

	if err := svc.Reserve(ctx, Line{ProductID: product, Qty: 3, OrderID: order}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	status := mustStatus(t, svc, product)
	if status.Reserved != 3 || status.Available != 7 || status.Stock != 10 {
		t.Fatalf("unexpected after reserve %+v", status)
	}

	if err := svc.Confirm(ctx, Line{ProductID: product, Qty: 3, OrderID: order}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	status = mustStatus(t, svc, product)
	if status.Stock != 7 || status.Reserved != 0 {
		t.Fatalf("unexpected after confirm %+v", status)
	}
	if status.Status != enums.InventoryStatusInStock {
		t.Fatalf("unexpected status %s", status.Status)
	}
}

func TestConfirmTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := newMemoryService(t, store)
	product := seed(t, svc, ledger.Stock{Stock: 10, MaxStock: 100})
	line := Line{ProductID: product, Qty: 4, OrderID: uuid.New()}

	if err := svc.Reserve(ctx, line); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Confirm(ctx, line); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	applied := store.applied()
	if err := svc.Confirm(ctx, line); err != nil {
		t.Fatalf("second confirm should be a no-op, got %v", err)
	}
	if store.applied() != applied {
		t.Fatalf("second confirm must not write")
	}
	if status := mustStatus(t, svc, product); status.Stock != 6 || status.Reserved != 0 {
		t.Fatalf("unexpected after double confirm %+v", status)
	}
}

func TestConfirmWithoutReservationFails(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 10, Reserved: 5, MaxStock: 100})

	err := svc.Confirm(ctx, Line{ProductID: product, Qty: 2, OrderID: uuid.New()})
	if !pkgerrors.IsReason(err, pkgerrors.ReasonNotReserved) {
		t.Fatalf("expected not reserved, got %v", err)
	}
	if status := mustStatus(t, svc, product); status.Reserved != 5 || status.Stock != 10 {
		t.Fatalf("another order's hold must be untouched: %+v", status)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 2, MaxStock: 100})

	err := svc.Reserve(context.Background(), Line{ProductID: product, Qty: 3})
	if !pkgerrors.IsReason(err, pkgerrors.ReasonInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("domain errors must not look transient: %v", err)
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	svc := newMemoryService(t, NewMemoryStore())
	err := svc.Reserve(context.Background(), Line{ProductID: uuid.New(), Qty: 1})
	if !pkgerrors.IsReason(err, pkgerrors.ReasonProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestReleaseAfterCancelReturnsHold(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 10, MaxStock: 100})
	line := Line{ProductID: product, Qty: 3, OrderID: uuid.New()}

	if err := svc.Reserve(ctx, line); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, line); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := svc.Release(ctx, line); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
	if status := mustStatus(t, svc, product); status.Reserved != 0 || status.Stock != 10 {
		t.Fatalf("unexpected after release %+v", status)
	}
}

func TestReleaseAfterConfirmIsNoop(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 10, MaxStock: 100})
	mine := Line{ProductID: product, Qty: 3, OrderID: uuid.New()}
	other := Line{ProductID: product, Qty: 2, OrderID: uuid.New()}

	for _, line := range []Line{mine, other} {
		if err := svc.Reserve(ctx, line); err != nil {
			t.Fatalf("reserve: %v", err)
		}
	}
	if err := svc.Confirm(ctx, mine); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := svc.Release(ctx, mine); err != nil {
		t.Fatalf("release after confirm: %v", err)
	}
	status := mustStatus(t, svc, product)
	if status.Reserved != 2 || status.Stock != 7 {
		t.Fatalf("other order's hold must survive: %+v", status)
	}

	if err := svc.Confirm(ctx, Line{ProductID: product, Qty: 2, OrderID: other.OrderID}); err != nil {
		t.Fatalf("confirm other: %v", err)
	}
}

func TestUnscopedReleaseClampsAtZero(t *testing.T) {
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 10, Reserved: 2, MaxStock: 100})

	if err := svc.Release(context.Background(), Line{ProductID: product, Qty: 5}); err != nil {
		t.Fatalf("release must tolerate over-release: %v", err)
	}
	if status := mustStatus(t, svc, product); status.Reserved != 0 {
		t.Fatalf("expected reserved clamped to 0, got %+v", status)
	}
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: 5, Reserved: 3, MinStock: 1, MaxStock: 10})

	status, err := svc.AdjustStock(ctx, AdjustInput{ProductID: product, Delta: 20, Reason: "restock", ActorUserID: uuid.New()})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if status.Stock != 25 || status.Status != enums.InventoryStatusOverstocked {
		t.Fatalf("unexpected after adjust %+v", status)
	}

	_, err = svc.AdjustStock(ctx, AdjustInput{ProductID: product, Delta: -30, Reason: "shrinkage"})
	if !pkgerrors.IsReason(err, pkgerrors.ReasonNegativeStock) {
		t.Fatalf("expected negative stock, got %v", err)
	}
	_, err = svc.AdjustStock(ctx, AdjustInput{ProductID: product, Delta: -1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected missing reason to be rejected, got %v", err)
	}
}

func TestGetAllInventoryStatus(t *testing.T) {
	svc := newMemoryService(t, NewMemoryStore())
	seed(t, svc, ledger.Stock{Stock: 0, MaxStock: 10})
	seed(t, svc, ledger.Stock{Stock: 5, MinStock: 1, MaxStock: 10})

	all, err := svc.GetAllInventoryStatus(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items got %d", len(all))
	}
	statuses := map[enums.InventoryStatus]int{}
	for _, item := range all {
		statuses[item.Status]++
	}
	if statuses[enums.InventoryStatusOutOfStock] != 1 || statuses[enums.InventoryStatusInStock] != 1 {
		t.Fatalf("unexpected statuses %v", statuses)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	const available = 7
	const callers = 25

	ctx := context.Background()
	svc := newMemoryService(t, NewMemoryStore())
	product := seed(t, svc, ledger.Stock{Stock: available, MaxStock: 100})

	var granted atomic.Int64
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			err := svc.Reserve(ctx, Line{ProductID: product, Qty: 1, OrderID: uuid.New()})
			switch {
			case err == nil:
				granted.Add(1)
			case pkgerrors.IsReason(err, pkgerrors.ReasonInsufficientStock):
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if granted.Load() != available {
		t.Fatalf("expected exactly %d grants, got %d", available, granted.Load())
	}
	status := mustStatus(t, svc, product)
	if status.Reserved != available || status.Available != 0 {
		t.Fatalf("unexpected final ledger %+v", status)
	}
}

func TestContentionExhaustsRetries(t *testing.T) {
	store := &conflictingStore{MemoryStore: NewMemoryStore()}
	svc, err := NewService(ServiceParams{
		Store:          store,
		Logger:         newTestLogger(),
		RetryAttempts:  3,
		RetryBaseDelay: time.Microsecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	product := uuid.New()
	_ = store.Init(context.Background(), product, ledger.Stock{Stock: 10, MaxStock: 100})

	err = svc.Reserve(context.Background(), Line{ProductID: product, Qty: 1})
	if !pkgerrors.IsReason(err, pkgerrors.ReasonInventoryContention) {
		t.Fatalf("expected contention, got %v", err)
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("contention must be transient, got %s", pkgerrors.As(err).Code())
	}
	if store.attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.attempts.Load())
	}
}

func TestStorageFailureIsTransient(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection reset")}
	svc := newMemoryService(t, store)
	product := uuid.New()
	_ = store.Init(context.Background(), product, ledger.Stock{Stock: 10, MaxStock: 100})

	err := svc.Reserve(context.Background(), Line{ProductID: product, Qty: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

type conflictingStore struct {
	*MemoryStore
	attempts atomic.Int64
}

func (s *conflictingStore) Apply(context.Context, Mutation) error {
	s.attempts.Add(1)
	return ErrVersionConflict
}

type failingStore struct {
	*MemoryStore
	mu    sync.Mutex
	err   error
	fails map[uuid.UUID]bool
}

func (s *failingStore) Apply(ctx context.Context, m Mutation) error {
	s.mu.Lock()
	fail := s.fails == nil || s.fails[m.ProductID]
	s.mu.Unlock()
	if fail {
		return s.err
	}
	return s.MemoryStore.Apply(ctx, m)
}
