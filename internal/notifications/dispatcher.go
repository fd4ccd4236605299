package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/users"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

const defaultSendTimeout = 10 * time.Second

// ContactResolver looks up where to send a customer's notifications.
type ContactResolver interface {
	ContactFor(ctx context.Context, userID uuid.UUID) (users.Contact, error)
}

// OrderStatusEvent is what the order workflows hand over after a committed change.
type OrderStatusEvent struct {
	OrderNumber string
	UserID      uuid.UUID
	Status      enums.OrderStatus
}

// Dispatcher sends notifications in the background. Failures are logged and
// never reach the caller: the order write has already committed.
type Dispatcher struct {
	sender   Sender
	contacts ContactResolver
	logg     *logger.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(sender Sender, contacts ContactResolver, logg *logger.Logger, timeout time.Duration) (*Dispatcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if contacts == nil {
		return nil, fmt.Errorf("contact resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{sender: sender, contacts: contacts, logg: logg, timeout: timeout}, nil
}

// OrderStatusChanged resolves the customer and dispatches the notification.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, event OrderStatusEvent) {
	d.spawn(ctx, event.OrderNumber, func(ctx context.Context) error {
		contact, err := d.contacts.ContactFor(ctx, event.UserID)
		if err != nil {
			return fmt.Errorf("resolve contact: %w", err)
		}
		return d.sender.NotifyOrderStatus(ctx, OrderStatusNotification{
			OrderNumber:   event.OrderNumber,
			CustomerName:  contact.Name,
			CustomerEmail: contact.Email,
			Status:        event.Status,
		})
	})
}

// Wait blocks until every dispatched send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) spawn(ctx context.Context, orderNumber string, send func(ctx context.Context) error) {
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		if err := send(sendCtx); err != nil {
			logCtx := d.logg.WithField(sendCtx, "order_number", orderNumber)
			d.logg.Error(logCtx, "order notification failed", err)
		}
	}()
}
