package paymentwebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/redis"
)

// Scope namespaces gateway callback keys in the idempotency store.
const Scope = "payment_callback"

// IdempotencyGuard remembers which gateway transactions were already handled.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark claims the transaction and reports whether it was claimed before.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, transactionID string) (bool, error) {
	key, err := g.key(transactionID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Forget drops the claim so a redelivery of a failed attempt is processed again.
func (g *IdempotencyGuard) Forget(ctx context.Context, transactionID string) error {
	key, err := g.key(transactionID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *IdempotencyGuard) key(transactionID string) (string, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return "", errors.New("transaction id is required")
	}
	return g.store.IdempotencyKey(g.scope, transactionID), nil
}
