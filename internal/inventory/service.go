package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/metrics"
)

const (
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 10 * time.Millisecond
	retryJitterPercent    = 25
)

// Line is one product quantity, optionally scoped to an order. Order-scoped
// calls are idempotent per (order, product, operation).
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
	OrderID   uuid.UUID `json:"order_id,omitempty"`
}

func (l Line) orderRef() *uuid.UUID {
	if l.OrderID == uuid.Nil {
		return nil
	}
	id := l.OrderID
	return &id
}

// AdjustInput is a direct stock correction made by a partner or admin.
type AdjustInput struct {
	ProductID   uuid.UUID
	Delta       int
	Reason      string
	ActorUserID uuid.UUID
}

// ItemStatus is the read projection of one ledger row.
type ItemStatus struct {
	ProductID uuid.UUID             `json:"product_id"`
	Stock     int                   `json:"stock"`
	Reserved  int                   `json:"reserved"`
	Available int                   `json:"available"`
	MinStock  int                   `json:"min_stock"`
	MaxStock  int                   `json:"max_stock"`
	Status    enums.InventoryStatus `json:"status"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Service is the only writer of the stock ledger.
type Service interface {
	Track(ctx context.Context, productID uuid.UUID, stock ledger.Stock) error
	Reserve(ctx context.Context, line Line) error
	Confirm(ctx context.Context, line Line) error
	Release(ctx context.Context, line Line) error
	AdjustStock(ctx context.Context, input AdjustInput) (*ItemStatus, error)
	GetProductInventoryStatus(ctx context.Context, productID uuid.UUID) (*ItemStatus, error)
	GetAllInventoryStatus(ctx context.Context) ([]ItemStatus, error)
	ReserveAll(ctx context.Context, orderID uuid.UUID, lines []Line) error
	ReleaseAll(ctx context.Context, orderID uuid.UUID, lines []Line) error
}

type operationRecorder interface {
	ObserveOperation(op, result string)
	ObserveConflict(op string)
}

// ServiceParams wires the inventory service.
type ServiceParams struct {
	Store          Store
	Logger         *logger.Logger
	Metrics        operationRecorder
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

type service struct {
	store     Store
	logg      *logger.Logger
	metrics   operationRecorder
	attempts  int
	baseDelay time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("inventory store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	delay := params.RetryBaseDelay
	if delay <= 0 {
		delay = defaultRetryBaseDelay
	}
	recorder := params.Metrics
	if recorder == nil {
		recorder = (*metrics.InventoryMetrics)(nil)
	}
	return &service{
		store:     params.Store,
		logg:      params.Logger,
		metrics:   recorder,
		attempts:  attempts,
		baseDelay: delay,
	}, nil
}

// step is one operation run through the optimistic loop. precheck runs after
// the row is loaded so a concurrent writer always bumps the version first.
type step struct {
	kind     enums.MovementKind
	line     Line
	reason   *string
	actor    *uuid.UUID
	precheck func(ctx context.Context, movements map[enums.MovementKind]bool) (noop bool, err error)
	apply    func(current ledger.Stock) (ledger.Stock, int, error)
}

type outcome struct {
	noop  bool
	stock Snapshot
}

func (s *service) Track(ctx context.Context, productID uuid.UUID, stock ledger.Stock) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !stock.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "initial stock must satisfy stock >= reserved >= 0")
	}
	if err := s.store.Init(ctx, productID, stock); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init inventory item")
	}
	return nil
}

func (s *service) Reserve(ctx context.Context, line Line) error {
	_, err := s.run(ctx, step{
		kind: enums.MovementReserve,
		line: line,
		precheck: func(_ context.Context, movements map[enums.MovementKind]bool) (bool, error) {
			return movements[enums.MovementReserve], nil
		},
		apply: func(current ledger.Stock) (ledger.Stock, int, error) {
			next, err := current.Reserve(line.Qty)
			return next, line.Qty, err
		},
	})
	return err
}

func (s *service) Confirm(ctx context.Context, line Line) error {
	_, err := s.run(ctx, step{
		kind: enums.MovementConfirm,
		line: line,
		precheck: func(_ context.Context, movements map[enums.MovementKind]bool) (bool, error) {
			if movements[enums.MovementConfirm] {
				return true, nil
			}
			if !movements[enums.MovementReserve] || movements[enums.MovementRelease] {
				return false, pkgerrors.Domain(pkgerrors.ReasonNotReserved,
					"no open reservation for this order and product")
			}
			return false, nil
		},
		apply: func(current ledger.Stock) (ledger.Stock, int, error) {
			next, err := current.Confirm(line.Qty)
			return next, line.Qty, err
		},
	})
	return err
}

func (s *service) Release(ctx context.Context, line Line) error {
	ctx = s.lineContext(ctx, line)
	_, err := s.run(ctx, step{
		kind: enums.MovementRelease,
		line: line,
		precheck: func(ctx context.Context, movements map[enums.MovementKind]bool) (bool, error) {
			switch {
			case movements[enums.MovementRelease]:
				return true, nil
			case movements[enums.MovementConfirm]:
				s.logg.Warn(ctx, "release skipped: reservation already confirmed")
				return true, nil
			case !movements[enums.MovementReserve]:
				s.logg.Info(ctx, "release skipped: nothing reserved for order")
				return true, nil
			}
			return false, nil
		},
		apply: func(current ledger.Stock) (ledger.Stock, int, error) {
			next, overflow, err := current.Release(line.Qty)
			if err != nil {
				return current, 0, err
			}
			if overflow > 0 {
				warnCtx := s.logg.WithFields(ctx, map[string]any{
					"requested": line.Qty,
					"overflow":  overflow,
				})
				s.logg.Warn(warnCtx, "release exceeded reserved quantity; clamped at zero")
			}
			return next, line.Qty - overflow, nil
		},
	})
	return err
}

func (s *service) AdjustStock(ctx context.Context, input AdjustInput) (*ItemStatus, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required")
	}
	var actor *uuid.UUID
	if input.ActorUserID != uuid.Nil {
		id := input.ActorUserID
		actor = &id
	}
	res, err := s.run(ctx, step{
		kind:   enums.MovementAdjust,
		line:   Line{ProductID: input.ProductID, Qty: input.Delta},
		reason: &reason,
		actor:  actor,
		apply: func(current ledger.Stock) (ledger.Stock, int, error) {
			next, err := current.Adjust(input.Delta)
			return next, input.Delta, err
		},
	})
	if err != nil {
		return nil, err
	}
	status := toStatus(res.stock)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id": input.ProductID.String(),
		"delta":      input.Delta,
		"reason":     reason,
		"stock":      status.Stock,
	})
	s.logg.Info(logCtx, "inventory adjusted")
	return &status, nil
}

func (s *service) GetProductInventoryStatus(ctx context.Context, productID uuid.UUID) (*ItemStatus, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	snap, err := s.store.Load(ctx, productID)
	if err != nil {
		return nil, mapStoreError(err, "load inventory item")
	}
	status := toStatus(snap)
	return &status, nil
}

func (s *service) GetAllInventoryStatus(ctx context.Context) ([]ItemStatus, error) {
	snaps, err := s.store.List(ctx)
	if err != nil {
		return nil, mapStoreError(err, "list inventory items")
	}
	out := make([]ItemStatus, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toStatus(snap))
	}
	return out, nil
}

func (s *service) run(ctx context.Context, st step) (outcome, error) {
	op := string(st.kind)
	if st.line.ProductID == uuid.Nil {
		return outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if st.kind != enums.MovementAdjust && st.line.Qty <= 0 {
		return outcome{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"qty": st.line.Qty})
	}

	var result outcome
	backoff := retry.NewExponential(s.baseDelay)
	backoff = retry.WithJitterPercent(retryJitterPercent, backoff)
	backoff = retry.WithMaxRetries(uint64(s.attempts-1), backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		snap, err := s.store.Load(ctx, st.line.ProductID)
		if err != nil {
			return err
		}

		orderID := st.line.orderRef()
		if orderID != nil && st.precheck != nil {
			movements, err := s.store.OrderMovements(ctx, *orderID, st.line.ProductID)
			if err != nil {
				return err
			}
			noop, err := st.precheck(ctx, movements)
			if err != nil {
				return err
			}
			if noop {
				result = outcome{noop: true, stock: snap}
				return nil
			}
		}

		next, qty, err := st.apply(snap.Stock)
		if err != nil {
			return err
		}

		err = s.store.Apply(ctx, Mutation{
			ProductID:       st.line.ProductID,
			ExpectedVersion: snap.Version,
			Next:            next,
			Movement: Movement{
				Kind:        st.kind,
				Qty:         qty,
				OrderID:     orderID,
				Reason:      st.reason,
				ActorUserID: st.actor,
			},
		})
		switch {
		case errors.Is(err, ErrVersionConflict):
			s.metrics.ObserveConflict(op)
			return retry.RetryableError(err)
		case errors.Is(err, ErrDuplicateMovement):
			result = outcome{noop: true, stock: snap}
			return nil
		case err != nil:
			return err
		}
		snap.Stock = next
		snap.Version++
		result = outcome{stock: snap}
		return nil
	})
	if err != nil {
		mapped := mapStoreError(err, op+" inventory")
		if pkgerrors.As(mapped).Code() == pkgerrors.CodeDependency {
			s.metrics.ObserveOperation(op, metrics.ResultError)
			logCtx := s.lineContext(ctx, st.line)
			s.logg.Error(logCtx, "inventory operation failed", mapped)
		} else {
			s.metrics.ObserveOperation(op, metrics.ResultRejected)
		}
		return outcome{}, mapped
	}
	if result.noop {
		s.metrics.ObserveOperation(op, metrics.ResultNoop)
	} else {
		s.metrics.ObserveOperation(op, metrics.ResultOK)
	}
	return result, nil
}

func (s *service) lineContext(ctx context.Context, line Line) context.Context {
	fields := map[string]any{
		"product_id": line.ProductID.String(),
		"qty":        line.Qty,
	}
	if line.OrderID != uuid.Nil {
		fields["order_id"] = line.OrderID.String()
	}
	return s.logg.WithFields(ctx, fields)
}

func mapStoreError(err error, action string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	switch {
	case errors.Is(err, ErrVersionConflict):
		return pkgerrors.WrapDomain(pkgerrors.ReasonInventoryContention, err,
			"inventory is busy; retry the request")
	case errors.Is(err, ErrProductNotFound):
		return pkgerrors.WrapDomain(pkgerrors.ReasonProductNotFound, err, "product has no inventory record")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func toStatus(snap Snapshot) ItemStatus {
	return ItemStatus{
		ProductID: snap.ProductID,
		Stock:     snap.Stock.Stock,
		Reserved:  snap.Stock.Reserved,
		Available: snap.Stock.Available(),
		MinStock:  snap.Stock.MinStock,
		MaxStock:  snap.Stock.MaxStock,
		Status:    snap.Stock.Status(),
		UpdatedAt: snap.UpdatedAt,
	}
}
