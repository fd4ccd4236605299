package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/redis"
)

const (
	deliveryScope = "notification_delivery"
	deliveryTTL   = 24 * time.Hour
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer drains the notification subscription and hands each message to
// the delivery channel at most once per message id.
type Consumer struct {
	subscription receiver
	deliver      Sender
	store        redis.IdempotencyStore
	logg         *logger.Logger
}

func NewConsumer(subscription *pubsub.Subscriber, deliver Sender, store redis.IdempotencyStore, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	return newConsumer(subscription, deliver, store, logg)
}

func newConsumer(subscription receiver, deliver Sender, store redis.IdempotencyStore, logg *logger.Logger) (*Consumer, error) {
	if deliver == nil {
		return nil, fmt.Errorf("delivery sender required")
	}
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{subscription: subscription, deliver: deliver, store: store, logg: logg}, nil
}

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"kind":       msg.Attributes["kind"],
	})

	if msg.Attributes["kind"] != orderStatusKind {
		c.logg.Info(logCtx, "skipping unknown notification kind")
		return true
	}

	var n OrderStatusNotification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		// redelivery cannot fix a malformed body
		c.logg.Error(logCtx, "failed to decode notification", err)
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_number": n.OrderNumber,
		"status":       n.Status,
	})

	key := c.store.IdempotencyKey(deliveryScope, msg.ID)
	claimed, err := c.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), deliveryTTL)
	if err != nil {
		c.logg.Error(logCtx, "delivery idempotency check failed", err)
		return false
	}
	if !claimed {
		c.logg.Info(logCtx, "notification already delivered")
		return true
	}

	if err := c.deliver.NotifyOrderStatus(ctx, n); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		if delErr := c.store.Del(ctx, key); delErr != nil {
			c.logg.Error(logCtx, "failed to release delivery claim", delErr)
		}
		return false
	}
	return true
}
