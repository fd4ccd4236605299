package notifications

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/grigobio237-eng/Youniqle-sub002/internal/users"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []OrderStatusNotification
	err  error
	ctxs []context.Context
}

func (s *recordingSender) NotifyOrderStatus(ctx context.Context, n OrderStatusNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	s.ctxs = append(s.ctxs, ctx)
	return s.err
}

type stubContacts struct {
	contact users.Contact
	err     error
}

func (s stubContacts) ContactFor(context.Context, uuid.UUID) (users.Contact, error) {
	return s.contact, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestDispatcherResolvesContact(t *testing.T) {
	sender := &recordingSender{}
	d, err := NewDispatcher(sender, stubContacts{contact: users.Contact{Name: "Mina Park", Email: "mina@example.com"}}, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.OrderStatusChanged(ctx, OrderStatusEvent{OrderNumber: "ORD-1", UserID: uuid.New(), Status: enums.OrderStatusShipped})
	cancel()
	d.Wait()

	if len(sender.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(sender.sent))
	}
	got := sender.sent[0]
	if got.CustomerEmail != "mina@example.com" || got.Status != enums.OrderStatusShipped || got.OrderNumber != "ORD-1" {
		t.Fatalf("unexpected notification %+v", got)
	}
	if sender.ctxs[0].Err() != nil {
		t.Fatalf("send must not inherit the caller's cancellation")
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d, err := NewDispatcher(sender, stubContacts{}, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	d.OrderStatusChanged(context.Background(), OrderStatusEvent{OrderNumber: "ORD-2", UserID: uuid.New(), Status: enums.OrderStatusCancelled})
	d.Wait()
	if len(sender.sent) != 1 {
		t.Fatalf("expected the send to be attempted")
	}

	failing, _ := NewDispatcher(sender, stubContacts{err: errors.New("no user")}, testLogger(), time.Second)
	failing.OrderStatusChanged(context.Background(), OrderStatusEvent{OrderNumber: "ORD-3"})
	failing.Wait()
	if len(sender.sent) != 1 {
		t.Fatalf("unresolved contact must not send")
	}
}

type fakeResult struct{ err error }

func (r fakeResult) Get(context.Context) (string, error) { return "id", r.err }

type fakePublisher struct {
	msgs []*pubsub.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	p.msgs = append(p.msgs, msg)
	return fakeResult{err: p.err}
}

func TestPubSubSenderPublishes(t *testing.T) {
	pub := &fakePublisher{}
	sender := &PubSubSender{pub: pub}
	err := sender.NotifyOrderStatus(context.Background(), OrderStatusNotification{OrderNumber: "ORD-9", Status: enums.OrderStatusDelivered})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected a message")
	}
	attrs := pub.msgs[0].Attributes
	if attrs["kind"] != orderStatusKind || attrs["status"] != "delivered" || attrs["order_number"] != "ORD-9" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	pub.err = errors.New("unavailable")
	if err := sender.NotifyOrderStatus(context.Background(), OrderStatusNotification{}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestNewPubSubSenderRequiresPublisher(t *testing.T) {
	if _, err := NewPubSubSender(nil); err == nil {
		t.Fatalf("expected error")
	}
}
