package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/aurelia-backend/pkg/config"
	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
	"github.com/angelmondragon/aurelia-backend/pkg/metrics"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond

	terminalNonRetryable = "non_retryable"
	terminalMaxAttempts  = "max_attempts"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	PaymentsPublisher() *gcppubsub.Publisher
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	CountPending(maxAttempts int) (int64, error)
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	// ResumePublish unblocks an ordering key after a failed publish.
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service drains outbox_events onto Pub/Sub. Each batch runs in one
// transaction so FOR UPDATE SKIP LOCKED keeps concurrent publishers apart.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	metrics          *metrics.OutboxMetrics
	publisherFactory publisherFactory
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

// outcome is what happened to a single row inside a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeTerminal
)

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
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
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		metrics:          params.Metrics,
		publisherFactory: factory,
		batchSize:        positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"pubsub", s.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	if s.pubsub.PaymentsPublisher() == nil {
		return errors.New("payments topic publisher unavailable")
	}
	return nil
}

// Run polls until ctx is cancelled. Idle polls wait pollInterval plus jitter;
// batch errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	idle := newIdleBackoff(s.pollInterval)
	failures := newErrorBackoff(s.pollInterval)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			delay, _ := failures.Next()
			if err := s.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}
		failures = newErrorBackoff(s.pollInterval)

		if processed {
			continue
		}
		s.reportBacklog(ctx)
		delay, _ := idle.Next()
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// reportBacklog refreshes the pending gauge; rows left behind by a failed
// publish stay visible while the loop idles.
func (s *Service) reportBacklog(ctx context.Context) {
	pending, err := s.repo.CountPending(s.maxAttempts)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "count pending outbox events failed")
		return
	}
	s.metrics.SetPending(pending)
}

func newIdleBackoff(interval time.Duration) retry.Backoff {
	return retry.WithJitter(jitterWindow, retry.NewConstant(interval))
}

func newErrorBackoff(interval time.Duration) retry.Backoff {
	return retry.WithJitter(jitterWindow, retry.WithCappedDuration(maxBackoff, retry.NewExponential(interval)))
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.handleEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// handleEvent publishes one row and records the result. Only bookkeeping
// failures are returned; publish failures are written to the row.
func (s *Service) handleEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	eventType := string(event.EventType)

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		fields := s.eventFields(event, outbox.PayloadEnvelope{}, "")
		return s.handleTerminal(ctx, tx, event, terminalNonRetryable, err, fields)
	}

	fields := s.eventFields(event, resolved.Envelope, resolved.Descriptor.Topic)
	started := time.Now()
	publishErr := s.publishResolved(ctx, event, resolved)
	s.metrics.ObservePublish(eventType, time.Since(started))

	switch result, reason := s.classify(event, publishErr); result {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return nil
	case outcomeTerminal:
		fields["attempt_count"] = event.AttemptCount + 1
		if reason == terminalMaxAttempts {
			publishErr = fmt.Errorf("max publish attempts reached: %w", publishErr)
		}
		return s.handleTerminal(ctx, tx, event, reason, publishErr, fields)
	default:
		fields["attempt_count"] = event.AttemptCount + 1
		fields["error"] = publishErr.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
		s.metrics.IncFailed(eventType, false)
		if err := s.repo.MarkFailedTx(tx, event.ID, publishErr); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		return nil
	}
}

func (s *Service) classify(event models.OutboxEvent, err error) (outcome, string) {
	if err == nil {
		return outcomePublished, ""
	}
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return outcomeTerminal, terminalNonRetryable
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return outcomeTerminal, terminalMaxAttempts
	}
	return outcomeRetry, ""
}

// handleTerminal parks the row at the attempt ceiling so the fetch query
// never selects it again.
func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason string, err error, fields map[string]any) error {
	fields["terminal_reason"] = reason
	fields["error"] = err.Error()
	s.logg.Critical(s.logg.WithFields(ctx, fields), "outbox event will not be retried", err)
	s.metrics.IncFailed(string(event.EventType), true)

	if markErr := s.repo.MarkTerminalTx(tx, event.ID, fmt.Errorf("%s: %w", reason, err), s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publishResolved(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	orderingKey := event.AggregateID.String()
	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: orderingKey,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   orderingKey,
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		pub.ResumePublish(orderingKey)
		return err
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
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

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
