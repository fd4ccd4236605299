package payments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/notifications"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox/payloads"
	gateway "github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
)

// Outcome tells the webhook layer what a callback did.
type Outcome string

const (
	OutcomePaid   Outcome = "paid"
	OutcomeFailed Outcome = "failed"
)

// payableStatuses are the order states a captured payment may settle. An
// operator may confirm an order before the gateway reports back.
var payableStatuses = []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusConfirmed}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockConfirmer permanently consumes reserved stock.
type StockConfirmer interface {
	Confirm(ctx context.Context, line inventory.Line) error
}

// CommissionPlanner prices partner lines before the paid transaction and
// stores them inside it.
type CommissionPlanner interface {
	Plan(ctx context.Context, order *models.Order) ([]commissions.Attribution, error)
	Apply(ctx context.Context, tx *gorm.DB, plan []commissions.Attribution) error
}

// CallbackVerifier authenticates gateway callbacks.
type CallbackVerifier interface {
	Verify(cb gateway.Callback) error
	IsSuccess(resultCode string) bool
}

// Service confirms payments: stock first, then the order flip.
type Service interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*orders.OrderDTO, error)
	HandleCallback(ctx context.Context, cb gateway.Callback) (*CallbackResult, error)
}

// CallbackResult is what a processed callback produced.
type CallbackResult struct {
	Outcome Outcome          `json:"outcome"`
	Order   *orders.OrderDTO `json:"order"`
}

type ServiceParams struct {
	Orders      orders.Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Stock       StockConfirmer
	Commissions CommissionPlanner
	Gateway     CallbackVerifier
	Notifier    orders.StatusNotifier
	Logger      *logger.Logger
	Now         func() time.Time
}

type service struct {
	orders      orders.Repository
	tx          txRunner
	outbox      outboxPublisher
	stock       StockConfirmer
	commissions CommissionPlanner
	gateway     CallbackVerifier
	notifier    orders.StatusNotifier
	logg        *logger.Logger
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Stock == nil:
		return nil, fmt.Errorf("stock confirmer required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("gateway verifier required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		orders:      params.Orders,
		tx:          params.Tx,
		outbox:      params.Outbox,
		stock:       params.Stock,
		commissions: params.Commissions,
		gateway:     params.Gateway,
		notifier:    params.Notifier,
		logg:        params.Logger,
		now:         now,
	}, nil
}

// ConfirmPayment consumes the order's reserved stock line by line and only
// then marks it paid and confirmed. A failed line leaves the order untouched;
// lines confirmed before it stay confirmed and a retry skips them.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*orders.OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return s.confirm(s.logg.WithOrderID(ctx, order.ID.String()), order)
}

func (s *service) confirm(ctx context.Context, order *models.Order) (*orders.OrderDTO, error) {
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.Domain(pkgerrors.ReasonAlreadyPaid, "order is already paid")
	}
	if !slices.Contains(payableStatuses, order.Status) {
		return nil, pkgerrors.Domain(pkgerrors.ReasonIllegalTransition,
			fmt.Sprintf("payment cannot be confirmed for an order in status %s", order.Status))
	}
	prior := order.Status

	for _, line := range orders.ReservationLines(order) {
		if err := s.stock.Confirm(ctx, line); err != nil {
			logCtx := s.logg.WithProductID(ctx, line.ProductID.String())
			s.logg.Error(logCtx, "stock confirmation failed", err)
			return nil, pkgerrors.WrapDomain(pkgerrors.ReasonStockConfirmationFailed, err, "stock confirmation failed").
				WithDetails(map[string]any{"product_id": line.ProductID, "quantity": line.Qty})
		}
	}

	var plan []commissions.Attribution
	if s.commissions != nil {
		var err error
		if plan, err = s.commissions.Plan(ctx, order); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		ok, err := repo.MarkPaid(ctx, order.ID, payableStatuses, enums.OrderStatusConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !ok {
			return s.lostPaidWrite(ctx, repo, order.ID)
		}
		if err := repo.UpdatePayment(ctx, order.ID, map[string]any{
			"status":         enums.PaymentStatusPaid,
			"paid_at":        now,
			"failure_reason": nil,
			"updated_at":     now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment record")
		}
		if err := s.emitPaid(ctx, tx, order, prior, now); err != nil {
			return err
		}
		if s.commissions != nil {
			return s.commissions.Apply(ctx, tx, plan)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusConfirmed
	order.PaymentStatus = enums.PaymentStatusPaid
	order.UpdatedAt = now
	if order.Payment != nil {
		order.Payment.Status = enums.PaymentStatusPaid
		order.Payment.PaidAt = &now
		order.Payment.FailureReason = nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"amount_cents": order.TotalCents,
		"partners":     len(plan),
	})
	s.logg.Info(logCtx, "payment confirmed")
	if s.notifier != nil && prior != order.Status {
		s.notifier.OrderStatusChanged(ctx, notifications.OrderStatusEvent{
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Status:      order.Status,
		})
	}
	return orders.FromModel(order), nil
}

// lostPaidWrite explains a failed paid write. Only a payment that landed
// first is AlreadyPaid; a status that left the payable set means stock was
// consumed for an order that can no longer be paid, which needs an operator.
func (s *service) lostPaidWrite(ctx context.Context, repo orders.Repository, orderID uuid.UUID) error {
	current, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order after paid write")
	}
	if current.PaymentStatus == enums.PaymentStatusPaid {
		return pkgerrors.Domain(pkgerrors.ReasonAlreadyPaid, "order was paid concurrently")
	}
	conflict := pkgerrors.Domain(pkgerrors.ReasonIllegalTransition,
		fmt.Sprintf("order moved to %s while its payment was being confirmed", current.Status)).
		WithDetails(map[string]any{"status": current.Status, "payment_status": current.PaymentStatus})
	s.logg.Error(s.logg.WithFields(ctx, map[string]any{"status": current.Status}),
		"captured payment lost its order; stock already consumed", conflict)
	return conflict
}

func (s *service) emitPaid(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, at time.Time) error {
	var transactionID string
	if order.Payment != nil && order.Payment.TransactionID != nil {
		transactionID = *order.Payment.TransactionID
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderPaidEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			AmountCents:   order.TotalCents,
			TransactionID: transactionID,
			PaidAt:        at,
		},
	}); err != nil {
		return err
	}
	if from == enums.OrderStatusConfirmed {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        from,
			To:          enums.OrderStatusConfirmed,
		},
	})
}

// HandleCallback verifies and records a gateway result. Non-success results
// leave the order pending with the failure noted on its payment record.
func (s *service) HandleCallback(ctx context.Context, cb gateway.Callback) (*CallbackResult, error) {
	if err := s.gateway.Verify(cb); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(cb.OrderNumber)
	order, err := s.orders.FindOrderByNumber(ctx, number)
	if err != nil {
		return nil, mapLoadError(err)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"transaction_id": cb.TransactionID,
		"result_code":    cb.ResultCode,
	})
	if cb.AmountCents != order.TotalCents {
		s.logg.Warn(ctx, "callback amount does not match order total")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback amount does not match order total").
			WithDetails(map[string]any{"expected_cents": order.TotalCents, "received_cents": cb.AmountCents})
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return nil, pkgerrors.Domain(pkgerrors.ReasonAlreadyPaid, "order is already paid")
	}

	now := s.now().UTC()
	transactionID := strings.TrimSpace(cb.TransactionID)
	resultCode := strings.TrimSpace(cb.ResultCode)
	updates := map[string]any{
		"transaction_id": transactionID,
		"result_code":    resultCode,
		"updated_at":     now,
	}

	if !s.gateway.IsSuccess(resultCode) {
		reason := strings.TrimSpace(cb.Message)
		if reason == "" {
			reason = "gateway result " + resultCode
		}
		updates["status"] = enums.PaymentStatusFailed
		updates["failure_reason"] = reason
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.orders.WithTx(tx).UpdatePayment(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed payment")
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.PaymentFailedEvent{
					OrderID:       order.ID,
					OrderNumber:   order.OrderNumber,
					TransactionID: transactionID,
					ResultCode:    resultCode,
					Reason:        reason,
				},
			})
		})
		if err != nil {
			return nil, err
		}
		s.logg.Warn(ctx, "gateway reported a failed payment; order stays pending")
		if order.Payment != nil {
			order.Payment.Status = enums.PaymentStatusFailed
			order.Payment.TransactionID = &transactionID
			order.Payment.ResultCode = &resultCode
			order.Payment.FailureReason = &reason
		}
		return &CallbackResult{Outcome: OutcomeFailed, Order: orders.FromModel(order)}, nil
	}

	if err := s.orders.UpdatePayment(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment result")
	}
	if order.Payment != nil {
		order.Payment.TransactionID = &transactionID
		order.Payment.ResultCode = &resultCode
	}
	dto, err := s.confirm(ctx, order)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{Outcome: OutcomePaid, Order: dto}, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Domain(pkgerrors.ReasonOrderNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
