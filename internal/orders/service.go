package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/notifications"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox/payloads"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/types"
)

const (
	orderNumberConstraint  = "ux_orders_order_number"
	maxOrderNumberAttempts = 3

	cancelReasonReservation = "reservation_failed"
	cancelReasonCustomer    = "cancelled_by_customer"
	cancelReasonOperator    = "cancelled_by_operator"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Catalog supplies the price and partner snapshot for ordered products.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// PartnerLookup resolves the partner account operated by a user.
type PartnerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Partner, error)
}

// Reservations is the slice of the inventory service the order workflows drive.
type Reservations interface {
	ReserveAll(ctx context.Context, orderID uuid.UUID, lines []inventory.Line) error
	ReleaseAll(ctx context.Context, orderID uuid.UUID, lines []inventory.Line) error
}

// StatusNotifier is told about committed status changes. Implementations must not block.
type StatusNotifier interface {
	OrderStatusChanged(ctx context.Context, event notifications.OrderStatusEvent)
}

// CommissionCleaner drops unsettled commissions of a cancelled order.
type CommissionCleaner interface {
	DeletePendingForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service defines the order aggregate workflows.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	GetByNumber(ctx context.Context, number string) (*OrderDTO, error)
	GetForActor(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	CancelByCustomer(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error)
	ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Catalog      Catalog
	Partners     PartnerLookup
	Reservations Reservations
	Notifier     StatusNotifier
	Commissions  CommissionCleaner
	Logger       *logger.Logger
	MerchantID   string
	Now          func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	catalog      Catalog
	partners     PartnerLookup
	reservations Reservations
	notifier     StatusNotifier
	commissions  CommissionCleaner
	logg         *logger.Logger
	merchantID   string
	now          func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case params.Partners == nil:
		return nil, fmt.Errorf("partner lookup required")
	case params.Reservations == nil:
		return nil, fmt.Errorf("reservations required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repo,
		tx:           params.Tx,
		outbox:       params.Outbox,
		catalog:      params.Catalog,
		partners:     params.Partners,
		reservations: params.Reservations,
		notifier:     params.Notifier,
		commissions:  params.Commissions,
		logg:         params.Logger,
		merchantID:   params.MerchantID,
		now:          now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	items, err := normalizeItems(input.Items)
	if err != nil {
		return nil, err
	}
	address := input.ShippingAddress.Normalize()
	if err := address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	lines := make([]models.OrderLineItem, 0, len(items))
	var total int64
	for i, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.Domain(pkgerrors.ReasonProductNotFound, "product is not available").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		lineTotal := int64(item.Quantity) * product.PriceCents
		total += lineTotal
		lines = append(lines, models.OrderLineItem{
			Position:       i + 1,
			ProductID:      product.ID,
			PartnerID:      product.PartnerID,
			Name:           product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: product.PriceCents,
			TotalCents:     lineTotal,
		})
	}

	var order *models.Order
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order, err = s.persistNew(ctx, input, address, lines, total)
		if err == nil || !db.IsUniqueViolation(err, orderNumberConstraint) {
			break
		}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	if err := s.reservations.ReserveAll(ctx, order.ID, ReservationLines(order)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order reservation failed; abandoning order")
		if abandonErr := s.cancel(ctx, order, nil, cancelOptions{reason: cancelReasonReservation}); abandonErr != nil {
			s.logg.Error(ctx, "abandon order after failed reservation", abandonErr)
			return nil, multierr.Append(err, abandonErr)
		}
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": order.OrderNumber,
		"total_cents":  order.TotalCents,
		"lines":        len(order.Items),
	})
	s.logg.Info(logCtx, "order created")
	return FromModel(order), nil
}

func (s *service) persistNew(ctx context.Context, input CreateOrderInput, address types.Address, lines []models.OrderLineItem, total int64) (*models.Order, error) {
	order := &models.Order{
		ID:              uuid.New(),
		OrderNumber:     NewOrderNumber(s.now()),
		UserID:          input.UserID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		TotalCents:      total,
		ShippingAddress: address,
		Notes:           trimNotes(input.Notes),
	}
	items := make([]models.OrderLineItem, len(lines))
	for i, line := range lines {
		line.ID = uuid.New()
		line.OrderID = order.ID
		items[i] = line
	}
	payment := &models.OrderPayment{
		OrderID:     order.ID,
		Status:      enums.PaymentStatusPending,
		AmountCents: total,
		MerchantID:  s.merchantID,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := repo.CreateOrderLineItems(ctx, items); err != nil {
			return err
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: enums.RoleCustomer},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				TotalCents:  order.TotalCents,
				LineCount:   len(items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	order.Items = items
	order.Payment = payment
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) GetByNumber(ctx context.Context, number string) (*OrderDTO, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindOrderByNumber(ctx, number)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return FromModel(order), nil
}

func (s *service) GetForActor(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case enums.RoleAdmin:
	case enums.RolePartner:
		if err := s.requirePartnerLines(ctx, order, actor.UserID); err != nil {
			return nil, err
		}
	default:
		if order.UserID != actor.UserID {
			return nil, pkgerrors.Domain(pkgerrors.ReasonNotOwner, "order belongs to another customer")
		}
	}
	return FromModel(order), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListUserOrders(ctx, userID, pagination.LimitWithBuffer(params.Limit), cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Page(rows, params.Limit, func(row models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	out := &OrderList{NextCursor: next, Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		out.Orders = append(out.Orders, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil || !input.Actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(order.Status, input.Target, input.Actor.Role); err != nil {
		return nil, err
	}
	if input.Actor.Role == enums.RolePartner {
		if err := s.requirePartnerLines(ctx, order, input.Actor.UserID); err != nil {
			return nil, err
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"user_id":    input.Actor.UserID.String(),
		"actor_role": input.Actor.Role,
	})
	if input.Target == enums.OrderStatusCancelled {
		if err := s.cancel(ctx, order, &input.Actor, cancelOptions{reason: cancelReasonOperator, release: true, notify: true}); err != nil {
			return nil, err
		}
		return FromModel(order), nil
	}

	from := order.Status
	now := s.now().UTC()
	updates := map[string]any{"status": input.Target, "updated_at": now}
	if input.Target == enums.OrderStatusDelivered {
		updates["delivered_at"] = now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).CompareAndSetStatus(ctx, order.ID, from, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return errConcurrentStatus(from)
		}
		return s.emitStatusChanged(ctx, tx, order, from, input.Target, &input.Actor)
	})
	if err != nil {
		return nil, err
	}

	order.Status = input.Target
	order.UpdatedAt = now
	if input.Target == enums.OrderStatusDelivered {
		order.DeliveredAt = &now
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"from": from, "to": input.Target}), "order status changed")
	s.notify(ctx, order)
	return FromModel(order), nil
}

func (s *service) CancelByCustomer(ctx context.Context, orderID uuid.UUID, actor Actor) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID {
		return nil, pkgerrors.Domain(pkgerrors.ReasonNotOwner, "order belongs to another customer")
	}
	if !CustomerCancellable(order.Status) {
		return nil, pkgerrors.Domain(pkgerrors.ReasonNotCancellable,
			fmt.Sprintf("order in status %s can no longer be cancelled", order.Status))
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"user_id":    actor.UserID.String(),
		"actor_role": enums.RoleCustomer,
	})
	customer := Actor{UserID: actor.UserID, Role: enums.RoleCustomer}
	if err := s.cancel(ctx, order, &customer, cancelOptions{reason: cancelReasonCustomer, release: true, notify: true}); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// ExpirePending cancels an unpaid pending order and releases its holds. It
// reports false when the order moved on before the expiry could apply.
func (s *service) ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus == enums.PaymentStatusPaid {
		return false, nil
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	err = s.cancel(ctx, order, nil, cancelOptions{expired: true, release: true, notify: true})
	if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type cancelOptions struct {
	reason  string
	expired bool
	release bool
	notify  bool
}

// cancel commits the cancellation first, then releases the order's holds. A
// release failure is logged only: the cancellation already stands and the
// order-scoped release is safe to replay.
func (s *service) cancel(ctx context.Context, order *models.Order, actor *Actor, opts cancelOptions) error {
	from := order.Status
	now := s.now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).CompareAndSetStatus(ctx, order.ID, from, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return errConcurrentStatus(from)
		}
		if err := s.emitStatusChanged(ctx, tx, order, from, enums.OrderStatusCancelled, actor); err != nil {
			return err
		}
		if err := s.emitCancellation(ctx, tx, order, from, now, actor, opts); err != nil {
			return err
		}
		if s.commissions != nil {
			if err := s.commissions.DeletePendingForOrder(ctx, tx, order.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop pending commissions")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	order.Status = enums.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now

	logCtx := s.logg.WithFields(ctx, map[string]any{"from": from, "expired": opts.expired, "reason": opts.reason})
	s.logg.Info(logCtx, "order cancelled")

	if opts.release {
		if err := s.reservations.ReleaseAll(context.WithoutCancel(ctx), order.ID, ReservationLines(order)); err != nil {
			s.logg.Error(logCtx, "release reservations after cancel", err)
		}
	}
	if opts.notify {
		s.notify(ctx, order)
	}
	return nil
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, from, to enums.OrderStatus, actor *Actor) error {
	data := payloads.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          to,
	}
	if actor != nil {
		data.ActorRole = actor.Role
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data:          data,
	})
}

func (s *service) emitCancellation(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, at time.Time, actor *Actor, opts cancelOptions) error {
	if opts.expired {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderExpiredEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CreatedAt:   order.CreatedAt,
				ExpiredAt:   at,
			},
		})
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Previous:    from,
			CancelledAt: at,
			Reason:      opts.reason,
		},
	})
}

func (s *service) notify(ctx context.Context, order *models.Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.OrderStatusChanged(ctx, notifications.OrderStatusEvent{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
	})
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

func (s *service) requirePartnerLines(ctx context.Context, order *models.Order, userID uuid.UUID) error {
	partner, err := s.partners.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Domain(pkgerrors.ReasonNotOwner, "no partner account for user")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	for _, item := range order.Items {
		if item.PartnerID != nil && *item.PartnerID == partner.ID {
			return nil
		}
	}
	return pkgerrors.Domain(pkgerrors.ReasonNotOwner, "order has no lines sold by this partner")
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Domain(pkgerrors.ReasonOrderNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func errConcurrentStatus(from enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently; reload and retry").
		WithDetails(map[string]any{"expected_status": from})
}

func actorRef(actor *Actor) *outbox.ActorRef {
	if actor == nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func normalizeItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	index := make(map[uuid.UUID]int, len(items))
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": item.ProductID, "quantity": item.Quantity})
		}
		if pos, ok := index[item.ProductID]; ok {
			out[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func trimNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
