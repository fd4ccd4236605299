package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/pagination"
)

// Repository defines persistence operations for orders, their lines and payment record.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderLineItems(ctx context.Context, items []models.OrderLineItem) error
	CreatePayment(ctx context.Context, payment *models.OrderPayment) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	FindPendingOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	PartnerHasLines(ctx context.Context, orderID, partnerID uuid.UUID) (bool, error)
	// CompareAndSetStatus applies updates only while the order is still in from.
	CompareAndSetStatus(ctx context.Context, orderID uuid.UUID, from enums.OrderStatus, updates map[string]any) (bool, error)
	// MarkPaid flips payment_status to paid and sets to, only while the order
	// is unpaid and its status is one of from.
	MarkPaid(ctx context.Context, orderID uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus) (bool, error)
	UpdatePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}
