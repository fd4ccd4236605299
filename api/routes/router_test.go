package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/api/controllers"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/ledger"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	paymentsvc "github.com/grigobio237-eng/Youniqle-sub002/internal/payments"
	paymentwebhook "github.com/grigobio237-eng/Youniqle-sub002/internal/webhooks/payments"
	pkgAuth "github.com/grigobio237-eng/Youniqle-sub002/pkg/auth"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type stubOrders struct {
	orders.Service
}

func (stubOrders) ListForUser(_ context.Context, userID uuid.UUID, _ pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDTO{{ID: uuid.New(), UserID: userID}}}, nil
}

func (stubOrders) CancelByCustomer(_ context.Context, id uuid.UUID, actor orders.Actor) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: id, UserID: actor.UserID, Status: enums.OrderStatusCancelled}, nil
}

type stubPayments struct{}

func (stubPayments) HandleCallback(context.Context, payments.Callback) (*paymentsvc.CallbackResult, error) {
	return &paymentsvc.CallbackResult{Outcome: paymentsvc.OutcomePaid}, nil
}

func (stubPayments) ConfirmPayment(_ context.Context, id uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: id, PaymentStatus: enums.PaymentStatusPaid}, nil
}

type memoryIdempotency struct {
	keys map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test", Port: "0"},
		JWT:       config.JWTConfig{Secret: "router-secret", Issuer: "youniqle", ExpirationMinutes: 60},
		CORS:      config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		RateLimit: config.RateLimitConfig{Window: time.Minute},
	}
}

func newTestRouter(t *testing.T, pingers map[string]controllers.Pinger) (http.Handler, *memoryIdempotency, uuid.UUID) {
	t.Helper()
	cfg := testConfig()
	inv, err := inventory.NewService(inventory.ServiceParams{Store: inventory.NewMemoryStore(), Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	product := uuid.New()
	if err := inv.Track(context.Background(), product, ledger.Stock{Stock: 8, MinStock: 1, MaxStock: 50}); err != nil {
		t.Fatalf("track: %v", err)
	}
	gw, err := payments.NewGateway(config.PaymentsConfig{
		MerchantID:     "M-1",
		Secret:         "gateway-secret",
		GatewayURL:     "https://pay.test/checkout",
		SuccessResults: []string{"0000"},
	})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	store := &memoryIdempotency{keys: map[string]string{}}
	guard, err := paymentwebhook.NewIdempotencyGuard(&memoryIdempotency{keys: map[string]string{}}, time.Hour, paymentwebhook.Scope)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	router := NewRouter(RouterParams{
		Config:      cfg,
		Logger:      logger.Nop(),
		Pingers:     pingers,
		Idempotency: store,
		Orders:      stubOrders{},
		Payments:    stubPayments{},
		Gateway:     gw,
		Callbacks:   guard,
		Inventory:   inv,
	})
	return router, store, product
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(router http.Handler, method, target, authHeader string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}})
	if resp := serve(router, http.MethodGet, "/health/live", "", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/health/ready", "", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}

	down, _, _ := newTestRouter(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}})
	if resp := serve(down, http.MethodGet, "/health/ready", "", "", nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with redis down: expected 503 got %d", resp.Code)
	}
}

func TestCustomerRoutesRequireJWT(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	if resp := serve(router, http.MethodGet, "/api/v1/orders", "", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	resp := serve(router, http.MethodGet, "/api/v1/orders", bearer(t, enums.RoleCustomer), "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPartnerGroupRequiresPartnerRole(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	target := "/api/v1/partner/orders/" + uuid.NewString() + "/status"
	resp := serve(router, http.MethodPost, target, bearer(t, enums.RoleCustomer), `{"status":"preparing"}`, map[string]string{"Idempotency-Key": "k1"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "ROLE_NOT_PERMITTED") {
		t.Fatalf("expected role reason, got %s", resp.Body.String())
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	router, _, product := newTestRouter(t, nil)
	if resp := serve(router, http.MethodGet, "/api/admin/v1/inventory", bearer(t, enums.RolePartner), "", nil); resp.Code != http.StatusForbidden {
		t.Fatalf("partner: expected 403 got %d", resp.Code)
	}
	resp := serve(router, http.MethodGet, "/api/admin/v1/inventory", bearer(t, enums.RoleAdmin), "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("admin: expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), product.String()) {
		t.Fatalf("expected tracked product in listing, got %s", resp.Body.String())
	}
}

func TestInventoryReadableByAnyRole(t *testing.T) {
	router, _, product := newTestRouter(t, nil)
	resp := serve(router, http.MethodGet, "/api/v1/inventory/"+product.String(), bearer(t, enums.RoleCustomer), "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"available":8`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	router, store, _ := newTestRouter(t, nil)
	token := bearer(t, enums.RoleCustomer)
	target := "/api/v1/orders/" + uuid.NewString() + "/cancel"

	if resp := serve(router, http.MethodPost, target, token, "", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400 got %d", resp.Code)
	}
	first := serve(router, http.MethodPost, target, token, "", map[string]string{"Idempotency-Key": "cancel-1"})
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", first.Code, first.Body.String())
	}
	second := serve(router, http.MethodPost, target, token, "", map[string]string{"Idempotency-Key": "cancel-1"})
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed response")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs")
	}
	if len(store.keys) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.keys))
	}
}

func TestAdminConfirmPaymentRoute(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	target := "/api/admin/v1/orders/" + uuid.NewString() + "/confirm-payment"
	resp := serve(router, http.MethodPost, target, bearer(t, enums.RoleAdmin), "", map[string]string{"Idempotency-Key": "confirm-1"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPaymentWebhookSkipsAuth(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	resp := serve(router, http.MethodPost, "/api/v1/webhooks/payments", "", `{}`, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected validation failure without auth, got %d", resp.Code)
	}
}
