package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

const orderStatusKind = "order_status"

// OrderStatusNotification tells a customer their order moved.
type OrderStatusNotification struct {
	OrderNumber   string            `json:"order_number"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	Status        enums.OrderStatus `json:"status"`
}

// Sender delivers a notification to whatever channel renders it.
type Sender interface {
	NotifyOrderStatus(ctx context.Context, n OrderStatusNotification) error
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PubSubSender hands notifications to the delivery service over Pub/Sub.
type PubSubSender struct {
	pub publisher
}

func NewPubSubSender(p *pubsub.Publisher) (*PubSubSender, error) {
	if p == nil {
		return nil, fmt.Errorf("notification publisher required")
	}
	return &PubSubSender{pub: gcpPublisher{p}}, nil
}

func (s *PubSubSender) NotifyOrderStatus(ctx context.Context, n OrderStatusNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"kind":         orderStatusKind,
			"order_number": n.OrderNumber,
			"status":       string(n.Status),
		},
	}
	if _, err := s.pub.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

// LogSender writes notifications to the log; used when Pub/Sub is not configured.
type LogSender struct {
	logg *logger.Logger
}

func NewLogSender(logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg}
}

func (s *LogSender) NotifyOrderStatus(ctx context.Context, n OrderStatusNotification) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": n.OrderNumber,
		"status":       n.Status,
		"recipient":    n.CustomerEmail,
	})
	s.logg.Info(logCtx, "order status notification")
	return nil
}
