package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigobio237-eng/Youniqle-sub002/api/middleware"
	internalorders "github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/auth"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	pkgerrors "github.com/grigobio237-eng/Youniqle-sub002/pkg/errors"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
)

type stubOrderService struct {
	create       func(context.Context, internalorders.CreateOrderInput) (*internalorders.OrderDTO, error)
	getForActor  func(context.Context, uuid.UUID, internalorders.Actor) (*internalorders.OrderDTO, error)
	listForUser  func(context.Context, uuid.UUID, pagination.Params) (*internalorders.OrderList, error)
	updateStatus func(context.Context, internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error)
	cancel       func(context.Context, uuid.UUID, internalorders.Actor) (*internalorders.OrderDTO, error)
}

func (s *stubOrderService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
	return s.create(ctx, input)
}

func (s *stubOrderService) Get(context.Context, uuid.UUID) (*internalorders.OrderDTO, error) {
	panic("not implemented")
}

func (s *stubOrderService) GetByNumber(context.Context, string) (*internalorders.OrderDTO, error) {
	panic("not implemented")
}

func (s *stubOrderService) GetForActor(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*internalorders.OrderDTO, error) {
	return s.getForActor(ctx, id, actor)
}

func (s *stubOrderService) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	return s.listForUser(ctx, userID, params)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, input internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error) {
	return s.updateStatus(ctx, input)
}

func (s *stubOrderService) CancelByCustomer(ctx context.Context, id uuid.UUID, actor internalorders.Actor) (*internalorders.OrderDTO, error) {
	return s.cancel(ctx, id, actor)
}

func (s *stubOrderService) ExpirePending(context.Context, uuid.UUID) (bool, error) {
	panic("not implemented")
}

type stubSigner struct{}

func (stubSigner) CheckoutRequest(number string, amount int64) payments.CheckoutRequest {
	return payments.CheckoutRequest{MerchantID: "M-TEST", OrderNumber: number, AmountCents: amount, Signature: "sig"}
}

type stubConfirmer struct {
	err   error
	calls int
}

func (s *stubConfirmer) ConfirmPayment(_ context.Context, id uuid.UUID) (*internalorders.OrderDTO, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &internalorders.OrderDTO{ID: id, PaymentStatus: enums.PaymentStatusPaid}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
}

func serve(t *testing.T, pattern, method, target, body string, identity *auth.Identity, handler http.HandlerFunc) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	router := chi.NewRouter()
	router.Method(method, pattern, handler)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if identity != nil {
		req = req.WithContext(middleware.WithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func customer() *auth.Identity {
	return &auth.Identity{UserID: uuid.New(), Role: enums.RoleCustomer}
}

func TestCreateReturnsOrderAndCheckout(t *testing.T) {
	caller := customer()
	product := uuid.New()
	svc := &stubOrderService{create: func(_ context.Context, input internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
		assert.Equal(t, caller.UserID, input.UserID)
		require.Len(t, input.Items, 1)
		assert.Equal(t, product, input.Items[0].ProductID)
		assert.Equal(t, "leave at door", *input.Notes)
		return &internalorders.OrderDTO{ID: uuid.New(), OrderNumber: "YQ260101ABCD1234", TotalCents: 5000, Status: enums.OrderStatusPending}, nil
	}}

	body := `{"items":[{"product_id":"` + product.String() + `","quantity":2}],
		"shipping_address":{"recipient_name":"Kim","phone":"010","line1":"1 Main","city":"Seoul","postal_code":"04524"},
		"notes":"  leave at door "}`
	rec, env := serve(t, "/orders", http.MethodPost, "/orders", body, caller, Create(svc, stubSigner{}, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data createOrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "YQ260101ABCD1234", data.Payment.OrderNumber)
	assert.Equal(t, int64(5000), data.Payment.AmountCents)
	assert.Equal(t, "M-TEST", data.Payment.MerchantID)
}

func TestCreateValidatesBody(t *testing.T) {
	svc := &stubOrderService{create: func(context.Context, internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	body := `{"items":[{"product_id":"` + uuid.NewString() + `","quantity":0}],"shipping_address":{}}`
	rec, env := serve(t, "/orders", http.MethodPost, "/orders", body, customer(), Create(svc, stubSigner{}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), env.Error.Code)

	rec, _ = serve(t, "/orders", http.MethodPost, "/orders", `{}`, nil, Create(svc, stubSigner{}, nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDetailSurfacesOwnershipReason(t *testing.T) {
	svc := &stubOrderService{getForActor: func(context.Context, uuid.UUID, internalorders.Actor) (*internalorders.OrderDTO, error) {
		return nil, pkgerrors.Domain(pkgerrors.ReasonNotOwner, "order belongs to another customer")
	}}
	rec, env := serve(t, "/orders/{orderId}", http.MethodGet, "/orders/"+uuid.NewString(), "", customer(), Detail(svc, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(pkgerrors.ReasonNotOwner), env.Error.Reason)

	rec, _ = serve(t, "/orders/{orderId}", http.MethodGet, "/orders/not-a-uuid", "", customer(), Detail(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPassesPagination(t *testing.T) {
	caller := customer()
	svc := &stubOrderService{listForUser: func(_ context.Context, userID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
		assert.Equal(t, caller.UserID, userID)
		assert.Equal(t, pagination.Params{Limit: 10, Cursor: "c1"}, params)
		return &internalorders.OrderList{NextCursor: "c2"}, nil
	}}
	rec, env := serve(t, "/orders", http.MethodGet, "/orders?limit=10&cursor=c1", "", caller, List(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"next_cursor":"c2"`)
}

func TestCancelUsesCallerIdentity(t *testing.T) {
	caller := customer()
	orderID := uuid.New()
	svc := &stubOrderService{cancel: func(_ context.Context, id uuid.UUID, actor internalorders.Actor) (*internalorders.OrderDTO, error) {
		assert.Equal(t, orderID, id)
		assert.Equal(t, caller.UserID, actor.UserID)
		return nil, pkgerrors.Domain(pkgerrors.ReasonShipmentAlreadyStarted, "order already shipped")
	}}
	rec, env := serve(t, "/orders/{orderId}/cancel", http.MethodPost, "/orders/"+orderID.String()+"/cancel", "", caller, Cancel(svc, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.ReasonShipmentAlreadyStarted), env.Error.Reason)
}

func TestUpdateStatusParsesTarget(t *testing.T) {
	partner := &auth.Identity{UserID: uuid.New(), Role: enums.RolePartner}
	var got internalorders.UpdateStatusInput
	svc := &stubOrderService{updateStatus: func(_ context.Context, input internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error) {
		got = input
		return &internalorders.OrderDTO{ID: input.OrderID, Status: input.Target}, nil
	}}
	orderID := uuid.New()
	rec, _ := serve(t, "/orders/{orderId}/status", http.MethodPost, "/orders/"+orderID.String()+"/status", `{"status":" Shipped "}`, partner, UpdateStatus(svc, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, enums.OrderStatusShipped, got.Target)
	assert.Equal(t, enums.RolePartner, got.Actor.Role)

	rec, _ = serve(t, "/orders/{orderId}/status", http.MethodPost, "/orders/"+orderID.String()+"/status", `{"status":"teleported"}`, partner, UpdateStatus(svc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmPaymentMapsAlreadyPaid(t *testing.T) {
	confirmer := &stubConfirmer{}
	admin := &auth.Identity{UserID: uuid.New(), Role: enums.RoleAdmin}
	target := "/orders/" + uuid.NewString() + "/confirm-payment"

	rec, _ := serve(t, "/orders/{orderId}/confirm-payment", http.MethodPost, target, "", admin, ConfirmPayment(confirmer, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	confirmer.err = pkgerrors.Domain(pkgerrors.ReasonAlreadyPaid, "order already paid")
	rec, env := serve(t, "/orders/{orderId}/confirm-payment", http.MethodPost, target, "", admin, ConfirmPayment(confirmer, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.ReasonAlreadyPaid), env.Error.Reason)
	assert.Equal(t, 2, confirmer.calls)
}
