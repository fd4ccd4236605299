package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/partners"
	product "github.com/grigobio237-eng/Youniqle-sub002/internal/products"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/dbtest"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	gateway "github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/types"
)

const (
	testMerchant = "M-YOUNIQLE"
	testSecret   = "callback-secret"
)

type harness struct {
	conn      *gorm.DB
	orders    orders.Service
	payments  Service
	inventory inventory.Service
	outbox    *outbox.Repository
	partners  *partners.Repository
	products  *product.Repository
	customer  uuid.UUID
	params    ServiceParams
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.NewSQLite(t)
	logg := logger.Nop()
	tx := db.Wrap(conn)

	inv, err := inventory.NewService(inventory.ServiceParams{Store: inventory.NewMemoryStore(), Logger: logg})
	require.NoError(t, err)

	h := &harness{
		conn:      conn,
		inventory: inv,
		outbox:    outbox.NewRepository(conn),
		partners:  partners.NewRepository(conn),
		products:  product.NewRepository(conn),
		customer:  uuid.New(),
	}
	events := outbox.NewService(h.outbox, logg)
	orderRepo := orders.NewRepository(conn)

	commissionSvc, err := commissions.NewService(commissions.ServiceParams{
		Repo:     commissions.NewRepository(conn),
		Tx:       tx,
		Outbox:   events,
		Orders:   orderRepo,
		Partners: h.partners,
		Logger:   logg,
	})
	require.NoError(t, err)

	h.orders, err = orders.NewService(orders.ServiceParams{
		Repo:         orderRepo,
		Tx:           tx,
		Outbox:       events,
		Catalog:      h.products,
		Partners:     h.partners,
		Reservations: inv,
		Commissions:  commissionSvc,
		Logger:       logg,
		MerchantID:   testMerchant,
	})
	require.NoError(t, err)

	gw, err := gateway.NewGateway(config.PaymentsConfig{
		MerchantID:     testMerchant,
		Secret:         testSecret,
		GatewayURL:     "https://pay.test/checkout",
		MaxClockSkew:   5 * time.Minute,
		SuccessResults: []string{"0000"},
	})
	require.NoError(t, err)

	h.params = ServiceParams{
		Orders:      orderRepo,
		Tx:          tx,
		Outbox:      events,
		Stock:       inv,
		Commissions: commissionSvc,
		Gateway:     gw,
		Logger:      logg,
	}
	h.payments, err = NewService(h.params)
	require.NoError(t, err)
	return h
}

func (h *harness) product(t *testing.T, partnerID *uuid.UUID, price int64, stock int) uuid.UUID {
	t.Helper()
	p, err := h.products.CreateProduct(context.Background(), &models.Product{PartnerID: partnerID, Name: "Linen Shirt", PriceCents: price, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, h.inventory.Track(context.Background(), p.ID, ledger.Stock{Stock: stock, MaxStock: 500}))
	return p.ID
}

func (h *harness) checkout(t *testing.T, items ...orders.ItemInput) *orders.OrderDTO {
	t.Helper()
	order, err := h.orders.Create(context.Background(), orders.CreateOrderInput{
		UserID:          h.customer,
		Items:           items,
		ShippingAddress: types.Address{RecipientName: "Jae Kim", Phone: "010-1111-2222", Line1: "1 Gangnam-daero", City: "Seoul", PostalCode: "06000"},
	})
	require.NoError(t, err)
	return order
}

func (h *harness) status(t *testing.T, productID uuid.UUID) *inventory.ItemStatus {
	t.Helper()
	status, err := h.inventory.GetProductInventoryStatus(context.Background(), productID)
	require.NoError(t, err)
	return status
}

func callback(order *orders.OrderDTO, txID, result string) gateway.Callback {
	ts := time.Now().Unix()
	return gateway.Callback{
		OrderNumber:   order.OrderNumber,
		TransactionID: txID,
		ResultCode:    result,
		AmountCents:   order.TotalCents,
		Timestamp:     ts,
		Signature:     gateway.Sign(testSecret, order.TotalCents, testMerchant, ts),
	}
}

func TestHandleCallbackConfirmsPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, err := h.partners.Create(ctx, &models.Partner{UserID: uuid.New(), Name: "Seoul Knit", CommissionRate: decimal.NewFromInt(12)})
	require.NoError(t, err)
	shirt := h.product(t, &p.ID, 25000, 10)
	order := h.checkout(t, orders.ItemInput{ProductID: shirt, Quantity: 2})
	require.Equal(t, testMerchant, order.Payment.MerchantID)

	res, err := h.payments.HandleCallback(ctx, callback(order, "TX-1", "0000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Equal(t, enums.OrderStatusConfirmed, res.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, res.Order.PaymentStatus)

	status := h.status(t, shirt)
	assert.Equal(t, 8, status.Stock)
	assert.Equal(t, 0, status.Reserved)

	stored, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, enums.PaymentStatusPaid, stored.Payment.Status)
	require.NotNil(t, stored.Payment.TransactionID)
	assert.Equal(t, "TX-1", *stored.Payment.TransactionID)
	assert.NotNil(t, stored.Payment.PaidAt)

	var rows []models.Commission
	require.NoError(t, h.conn.Where("order_id = ?", order.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(6000), rows[0].CommissionCents)

	events, err := h.outbox.ListForAggregate(ctx, enums.AggregateOrder, order.ID)
	require.NoError(t, err)
	var kinds []enums.OutboxEventType
	for _, e := range events {
		kinds = append(kinds, e.EventType)
	}
	assert.Contains(t, kinds, enums.EventOrderPaid)

	_, err = h.payments.HandleCallback(ctx, callback(order, "TX-1", "0000"))
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid))
	assert.Equal(t, 8, h.status(t, shirt).Stock, "redelivery must not consume stock again")
}

func TestHandleCallbackRecordsFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shirt := h.product(t, nil, 9000, 3)
	order := h.checkout(t, orders.ItemInput{ProductID: shirt, Quantity: 1})

	cb := callback(order, "TX-9", "4001")
	cb.Message = "card declined"
	res, err := h.payments.HandleCallback(ctx, cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	stored, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
	require.NotNil(t, stored.Payment.FailureReason)
	assert.Equal(t, "card declined", *stored.Payment.FailureReason)
	assert.Equal(t, 1, h.status(t, shirt).Reserved, "hold survives a failed attempt")

	res, err = h.payments.HandleCallback(ctx, callback(order, "TX-10", "0000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Nil(t, res.Order.Payment.FailureReason)
}

func TestHandleCallbackRejectsForgeries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shirt := h.product(t, nil, 9000, 3)
	order := h.checkout(t, orders.ItemInput{ProductID: shirt, Quantity: 1})

	forged := callback(order, "TX-1", "0000")
	forged.Signature = gateway.Sign("wrong-secret", order.TotalCents, testMerchant, forged.Timestamp)
	_, err := h.payments.HandleCallback(ctx, forged)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonInvalidSignature))

	cheap := callback(order, "TX-1", "0000")
	cheap.AmountCents = 100
	cheap.Signature = gateway.Sign(testSecret, 100, testMerchant, cheap.Timestamp)
	_, err = h.payments.HandleCallback(ctx, cheap)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unknown := callback(order, "TX-1", "0000")
	unknown.OrderNumber = "ORD-20260101-ABCDEF"
	_, err = h.payments.HandleCallback(ctx, unknown)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))

	assert.Equal(t, 1, h.status(t, shirt).Reserved)
}

func TestConfirmPaymentRejectsCancelledOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shirt := h.product(t, nil, 9000, 3)
	order := h.checkout(t, orders.ItemInput{ProductID: shirt, Quantity: 2})
	_, err := h.orders.CancelByCustomer(ctx, order.ID, orders.Actor{UserID: h.customer, Role: enums.RoleCustomer})
	require.NoError(t, err)

	_, err = h.payments.ConfirmPayment(ctx, order.ID)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonIllegalTransition), "got %v", err)
	status := h.status(t, shirt)
	assert.Equal(t, 3, status.Stock)
	assert.Equal(t, 0, status.Reserved)

	_, err = h.payments.ConfirmPayment(ctx, uuid.New())
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound))
}

func TestConfirmPaymentStopsAtFirstFailedLine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.product(t, nil, 1000, 5)
	second := h.product(t, nil, 2000, 5)
	order := h.checkout(t,
		orders.ItemInput{ProductID: first, Quantity: 1},
		orders.ItemInput{ProductID: second, Quantity: 2},
	)
	// the second hold disappears underneath the order
	require.NoError(t, h.inventory.Release(ctx, inventory.Line{ProductID: second, Qty: 2, OrderID: order.ID}))

	_, err := h.payments.ConfirmPayment(ctx, order.ID)
	require.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonStockConfirmationFailed), "got %v", err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonNotReserved), "cause must stay reachable")

	stored, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)

	assert.Equal(t, 4, h.status(t, first).Stock, "earlier line stays confirmed")
	assert.Equal(t, 5, h.status(t, second).Stock)
}

// cancellingConfirmer lets the customer cancel after the first line's stock
// is consumed, before the paid write lands.
type cancellingConfirmer struct {
	next   StockConfirmer
	cancel func()
	once   sync.Once
}

func (c *cancellingConfirmer) Confirm(ctx context.Context, line inventory.Line) error {
	if err := c.next.Confirm(ctx, line); err != nil {
		return err
	}
	c.once.Do(c.cancel)
	return nil
}

func TestHandleCallbackPaysOperatorConfirmedOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partnerUser := uuid.New()
	p, err := h.partners.Create(ctx, &models.Partner{UserID: partnerUser, Name: "Busan Denim", CommissionRate: decimal.NewFromInt(10)})
	require.NoError(t, err)
	jeans := h.product(t, &p.ID, 40000, 10)
	order := h.checkout(t, orders.ItemInput{ProductID: jeans, Quantity: 3})

	_, err = h.orders.UpdateStatus(ctx, orders.UpdateStatusInput{
		OrderID: order.ID,
		Target:  enums.OrderStatusConfirmed,
		Actor:   orders.Actor{UserID: partnerUser, Role: enums.RolePartner},
	})
	require.NoError(t, err)

	res, err := h.payments.HandleCallback(ctx, callback(order, "TX-EARLY", "0000"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, res.Outcome)
	assert.Equal(t, enums.OrderStatusConfirmed, res.Order.Status)
	assert.Equal(t, enums.PaymentStatusPaid, res.Order.PaymentStatus)

	status := h.status(t, jeans)
	assert.Equal(t, 7, status.Stock, "reserved units must be consumed")
	assert.Equal(t, 0, status.Reserved)

	stored, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)

	var rows []models.Commission
	require.NoError(t, h.conn.Where("order_id = ?", order.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(12000), rows[0].CommissionCents)

	events, err := h.outbox.ListForAggregate(ctx, enums.AggregateOrder, order.ID)
	require.NoError(t, err)
	var paid, changed int
	for _, e := range events {
		switch e.EventType {
		case enums.EventOrderPaid:
			paid++
		case enums.EventOrderStatusChanged:
			changed++
		}
	}
	assert.Equal(t, 1, paid)
	assert.Equal(t, 1, changed, "payment on a confirmed order is not a second status change")

	_, err = h.payments.HandleCallback(ctx, callback(order, "TX-EARLY", "0000"))
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid), "got %v", err)
}

func TestConfirmPaymentReportsCancelDuringConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shirt := h.product(t, nil, 9000, 10)
	order := h.checkout(t, orders.ItemInput{ProductID: shirt, Quantity: 3})

	params := h.params
	params.Stock = &cancellingConfirmer{
		next: h.params.Stock,
		cancel: func() {
			_, err := h.orders.CancelByCustomer(ctx, order.ID, orders.Actor{UserID: h.customer, Role: enums.RoleCustomer})
			require.NoError(t, err)
		},
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	_, err = svc.HandleCallback(ctx, callback(order, "TX-RACE", "0000"))
	require.Error(t, err)
	assert.False(t, pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyPaid), "lost order must not look like a duplicate")
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonIllegalTransition), "got %v", err)

	stored, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)

	status := h.status(t, shirt)
	assert.Equal(t, 7, status.Stock)
	assert.Equal(t, 0, status.Reserved)
}
