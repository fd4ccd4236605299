package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// ErrDeliveryPaused is returned while the breaker is open.
var ErrDeliveryPaused = errors.New("notification delivery paused")

// BreakerSender stops calling a failing channel for a cooldown so dispatch
// goroutines do not pile up behind publish timeouts.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// BreakerOptions tunes when the breaker opens and how long it stays open.
type BreakerOptions struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

func NewBreakerSender(next Sender, opts BreakerOptions, logg *logger.Logger) (*BreakerSender, error) {
	if next == nil {
		return nil, fmt.Errorf("sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	failures := opts.ConsecutiveFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "notification breaker state changed")
		},
	})
	return &BreakerSender{next: next, cb: cb}, nil
}

func (s *BreakerSender) NotifyOrderStatus(ctx context.Context, n OrderStatusNotification) error {
	_, err := s.cb.Execute(func() (struct{}, error) {
		return struct{}{}, s.next.NotifyOrderStatus(ctx, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrDeliveryPaused, err)
	}
	return err
}
