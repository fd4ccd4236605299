package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grigobio237-eng/Youniqle-sub002/api/controllers"
	commissioncontrollers "github.com/grigobio237-eng/Youniqle-sub002/api/controllers/commissions"
	inventorycontrollers "github.com/grigobio237-eng/Youniqle-sub002/api/controllers/inventory"
	ordercontrollers "github.com/grigobio237-eng/Youniqle-sub002/api/controllers/orders"
	webhookcontrollers "github.com/grigobio237-eng/Youniqle-sub002/api/controllers/webhooks"
	"github.com/grigobio237-eng/Youniqle-sub002/api/middleware"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/commissions"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/inventory"
	"github.com/grigobio237-eng/Youniqle-sub002/internal/orders"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/payments"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/redis"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type paymentGateway interface {
	CheckoutRequest(orderNumber string, amountCents int64) payments.CheckoutRequest
	Verify(cb payments.Callback) error
}

type paymentService interface {
	webhookcontrollers.PaymentCallbackService
	ConfirmPayment(ctx context.Context, orderID uuid.UUID) (*orders.OrderDTO, error)
}

type callbackGuard interface {
	CheckAndMark(ctx context.Context, transactionID string) (bool, error)
	Forget(ctx context.Context, transactionID string) error
}

type stockAdjuster interface {
	Adjust(ctx context.Context, input inventory.AdjustInput, role enums.Role) (*inventory.ItemStatus, error)
}

type productOwnership interface {
	OwnedByUser(ctx context.Context, productID, userID uuid.UUID) (bool, error)
}

type commissionService interface {
	ListByPartner(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (*commissions.CommissionList, error)
	PartnerSummary(ctx context.Context, partnerID uuid.UUID) (*commissions.Summary, error)
	Approve(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*commissions.CommissionDTO, error)
	MarkPaid(ctx context.Context, id uuid.UUID, actor *outbox.ActorRef) (*commissions.CommissionDTO, error)
	RecomputePending(ctx context.Context, partnerID uuid.UUID) (int, error)
}

type partnerLookup interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Partner, error)
}

// RouterParams carries everything the HTTP surface is built from. Nil
// Idempotency or Limiter disables the corresponding middleware.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Pingers     map[string]controllers.Pinger
	Idempotency redis.IdempotencyStore
	Limiter     rateLimiter
	Orders      orders.Service
	Payments    paymentService
	Gateway     paymentGateway
	Callbacks   callbackGuard
	Inventory   inventory.Service
	Adjuster    stockAdjuster
	Products    productOwnership
	Commissions commissionService
	Partners    partnerLookup
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.Limit)
	webhookPolicy := middleware.NewRateLimitPolicy("webhook", cfg.RateLimit.Window, cfg.RateLimit.Limit)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Pingers))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.RateLimit(webhookPolicy, p.Limiter, logg))
			r.Post("/payments", webhookcontrollers.PaymentCallback(p.Payments, p.Gateway, p.Callbacks, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RateLimit(apiPolicy, p.Limiter, logg))
			r.Use(middleware.Idempotency(p.Idempotency, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(p.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleCustomer)).
					Post("/", ordercontrollers.Create(p.Orders, p.Gateway, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleCustomer)).
					Post("/{orderId}/cancel", ordercontrollers.Cancel(p.Orders, logg))
			})
			r.Get("/inventory/{productId}", inventorycontrollers.Get(p.Inventory, logg))

			r.Route("/partner", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RolePartner))
				r.Post("/orders/{orderId}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
				r.Post("/inventory/{productId}/adjust", inventorycontrollers.Adjust(p.Adjuster, p.Products, logg))
				r.Get("/commissions", commissioncontrollers.List(p.Commissions, p.Partners, logg))
				r.Get("/commissions/summary", commissioncontrollers.Summary(p.Commissions, p.Partners, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.RateLimit(apiPolicy, p.Limiter, logg))
		r.Use(middleware.Idempotency(p.Idempotency, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(p.Orders, logg))
			r.Post("/status", ordercontrollers.UpdateStatus(p.Orders, logg))
			r.Post("/confirm-payment", ordercontrollers.ConfirmPayment(p.Payments, logg))
		})
		r.Get("/inventory", inventorycontrollers.List(p.Inventory, logg))
		r.Post("/inventory/{productId}/adjust", inventorycontrollers.Adjust(p.Adjuster, p.Products, logg))
		r.Post("/commissions/{commissionId}/approve", commissioncontrollers.Approve(p.Commissions, logg))
		r.Post("/commissions/{commissionId}/pay", commissioncontrollers.Pay(p.Commissions, logg))
		r.Post("/partners/{partnerId}/commissions/recompute", commissioncontrollers.Recompute(p.Commissions, logg))
	})

	return r
}
