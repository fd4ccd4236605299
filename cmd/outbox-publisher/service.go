package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/config"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/db/models"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/enums"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/logger"
	"github.com/grigobio237-eng/Youniqle-sub002/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	messageSource         = "youniqle-orders"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// verdict is what one delivery attempt decided for a row.
type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDeadLetter
)

type delivery struct {
	verdict verdict
	topic   string
	reason  enums.OutboxDLQErrorReason
	err     error
}

type RelayParams struct {
	Config           config.OutboxConfig
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
}

// Relay moves committed order, payment, inventory and commission events from
// the outbox table onto their Pub/Sub topics.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	newPublisher publisherFactory
	publishers   map[string]publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			if p := params.PubSub.Publisher(topic); p != nil {
				return gcpPublisher{p}
			}
			return nil
		}
	}

	r := &Relay{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		newPublisher: factory,
		publishers:   map[string]publisher{},
		batchSize:    defaultBatchSize,
		maxAttempts:  defaultMaxAttempts,
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	if params.Config.BatchSize > 0 {
		r.batchSize = params.Config.BatchSize
	}
	if params.Config.MaxAttempts > 0 {
		r.maxAttempts = params.Config.MaxAttempts
	}
	if params.Config.PollIntervalMS > 0 {
		r.pollInterval = time.Duration(params.Config.PollIntervalMS) * time.Millisecond
	}
	return r, nil
}

// Run relays until ctx ends. An empty outbox idles one poll interval; a
// failed batch backs off exponentially until a batch succeeds again.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": r.db.Ping, "pubsub": r.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := newErrorBackoff(r.pollInterval)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay context canceled")
			return err
		}

		moved, err := r.relayBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait, _ = backoff.Next()
		case moved:
			backoff = newErrorBackoff(r.pollInterval)
			continue
		default:
			backoff = newErrorBackoff(r.pollInterval)
			wait = idleDelay(r.pollInterval)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// relayBatch claims one batch inside a transaction and settles every row in
// it. It reports whether any row was claimed.
func (r *Relay) relayBatch(ctx context.Context) (bool, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		for _, event := range events {
			if err := r.settle(ctx, tx, event, r.deliver(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed > 0, err
}

func (r *Relay) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return delivery{verdict: verdictDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	topic := resolved.Descriptor.Topic
	pub := r.publisherFor(topic)
	if pub == nil {
		return delivery{verdict: verdictDeadLetter, topic: topic, reason: enums.OutboxDLQReasonNonRetryable,
			err: fmt.Errorf("no publisher for topic %s", topic)}
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, message(event, resolved))
	if result == nil {
		return delivery{verdict: verdictDeadLetter, topic: topic, reason: enums.OutboxDLQReasonNonRetryable,
			err: fmt.Errorf("publisher for topic %s returned no result", topic)}
	}
	if _, err := result.Get(publishCtx); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return delivery{verdict: verdictDeadLetter, topic: topic, reason: enums.OutboxDLQReasonNonRetryable, err: err}
		}
		if event.AttemptCount+1 >= r.maxAttempts {
			return delivery{verdict: verdictDeadLetter, topic: topic, reason: enums.OutboxDLQReasonMaxAttempts,
				err: fmt.Errorf("max publish attempts reached: %w", err)}
		}
		return delivery{verdict: verdictRetry, topic: topic, err: err}
	}
	return delivery{verdict: verdictPublished, topic: topic}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, d delivery) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"topic":         d.topic,
	})

	switch d.verdict {
	case verdictPublished:
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.logg.Info(logCtx, "outbox event relayed")
		return nil

	case verdictRetry:
		r.logg.Warn(r.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed; will retry")
		if err := r.repo.MarkFailedTx(tx, event.ID, d.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		return nil
	}

	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"error":        d.err.Error(),
		"error_reason": d.reason,
	}), "outbox event dead-lettered")
	msg := d.err.Error()
	if err := r.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   d.reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, d.err, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) publisherFor(topic string) publisher {
	if pub, ok := r.publishers[topic]; ok {
		return pub
	}
	pub := r.newPublisher(topic)
	if pub != nil {
		r.publishers[topic] = pub
	}
	return pub
}

// message carries the stored envelope untouched; attributes let consumers
// filter on event type and aggregate without decoding the body.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"source":         messageSource,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if resolved.Envelope.EventID != "" {
		attrs["event_id"] = resolved.Envelope.EventID
	}
	if resolved.Envelope.Version > 0 {
		attrs["schema_version"] = strconv.Itoa(resolved.Envelope.Version)
	}
	return &gcppubsub.Message{Data: event.Payload, Attributes: attrs}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newErrorBackoff doubles from base up to maxBackoff with jitter; it never stops.
func newErrorBackoff(base time.Duration) retry.Backoff {
	return retry.WithJitter(jitterWindow, retry.WithCappedDuration(maxBackoff, retry.NewExponential(base)))
}

func idleDelay(interval time.Duration) time.Duration {
	delay, _ := retry.WithJitter(jitterWindow, retry.NewConstant(interval)).Next()
	return delay
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
