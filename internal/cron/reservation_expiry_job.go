package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
)

const (
	defaultPendingTTL  = 30 * time.Minute
	defaultExpiryBatch = 200
	reservationJobName = "reservation-expiry"
)

type pendingOrderReader interface {
	FindPendingOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type processedRecorder interface {
	AddProcessed(job string, n int)
}

// ReservationExpiryJobParams configure the unpaid order sweeper.
type ReservationExpiryJobParams struct {
	Logger  *logger.Logger
	Orders  pendingOrderReader
	Expirer orderExpirer
	Metrics processedRecorder
	TTL     time.Duration
	Batch   int
}

// NewReservationExpiryJob builds the job that cancels unpaid pending orders
// past their TTL so their stock holds return to the shelf.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &reservationExpiryJob{
		logg:    params.Logger,
		orders:  params.Orders,
		expirer: params.Expirer,
		metrics: params.Metrics,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg    *logger.Logger
	orders  pendingOrderReader
	expirer orderExpirer
	metrics processedRecorder
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *reservationExpiryJob) Name() string { return reservationJobName }

// Run expires one batch per cycle; the next tick picks up the remainder.
func (j *reservationExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	pending, err := j.orders.FindPendingOrdersBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders for expiration: %w", err)
	}

	var errs error
	expired, skipped := 0, 0
	for _, order := range pending {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		ok, err := j.expirer.ExpirePending(ctx, order.ID)
		if err != nil {
			orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
			j.logg.Error(orderCtx, "expire pending order", err)
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if ok {
			expired++
		} else {
			skipped++
		}
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(reservationJobName, expired)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(pending),
		"expired":    expired,
		"skipped":    skipped,
	})
	j.logg.Info(logCtx, "reservation expiry loop complete")
	return errs
}
