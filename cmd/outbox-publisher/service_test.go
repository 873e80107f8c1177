package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/aurelia-backend/pkg/config"
	"github.com/angelmondragon/aurelia-backend/pkg/db/models"
	"github.com/angelmondragon/aurelia-backend/pkg/enums"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
	"github.com/angelmondragon/aurelia-backend/pkg/metrics"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			paidRow(t, "event-one", 0),
			paidRow(t, "event-two", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	eventRegistry := &fakeRegistry{resolved: paidResolved()}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, pub, eventRegistry, reg, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
	if got := counterValue(t, reg, "outbox_published_total"); got != 1 {
		t.Fatalf("expected one published sample, got %v", got)
	}
	if got := counterValue(t, reg, "outbox_publish_failures_total"); got != 1 {
		t.Fatalf("expected one failure sample, got %v", got)
	}
}

func TestServiceProcessBatchEmptyReportsIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("expected empty batch to report idle")
	}
}

func TestPublishResolvedSetsAttributes(t *testing.T) {
	event := paidRow(t, "paid", 0)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, nil, nil)
	service.publisherFactory = func(topic string) publisher {
		if topic != "payments-topic" {
			t.Fatalf("unexpected topic %q", topic)
		}
		return pub
	}

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderPaid) {
		t.Fatalf("unexpected event_type attribute %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute %q", attrs["aggregate_id"])
	}
	if attrs["event_id"] != event.ID.String() {
		t.Fatalf("unexpected event_id attribute %q", attrs["event_id"])
	}
}

func TestServiceProcessBatchParksNonRetryable(t *testing.T) {
	event := paidRow(t, "nonretryable", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	eventRegistry := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, &fakePublisher{}, eventRegistry, reg, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.terminal); got != 1 {
		t.Fatalf("expected terminal row, got %d", got)
	}
	if repo.terminal[0].id != event.ID {
		t.Fatalf("terminal row mismatch: %s", repo.terminal[0].id)
	}
	if !strings.HasPrefix(repo.terminal[0].reason, terminalNonRetryable) {
		t.Fatalf("unexpected terminal reason: %s", repo.terminal[0].reason)
	}
	if repo.terminal[0].attempts != 5 {
		t.Fatalf("expected attempts pinned to ceiling, got %d", repo.terminal[0].attempts)
	}
	if got := len(repo.published); got != 0 {
		t.Fatalf("expected nothing published, got %d", got)
	}
	if got := counterValue(t, reg, "outbox_publish_failures_total"); got != 1 {
		t.Fatalf("expected one failure sample, got %v", got)
	}
}

func TestServiceProcessBatchParksAtMaxAttempts(t *testing.T) {
	event := paidRow(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, nil, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.terminal); got != 1 {
		t.Fatalf("expected terminal row, got %d", got)
	}
	if !strings.HasPrefix(repo.terminal[0].reason, terminalMaxAttempts) {
		t.Fatalf("unexpected terminal reason: %s", repo.terminal[0].reason)
	}
	if got := len(repo.failed); got != 0 {
		t.Fatalf("expected no retryable failure mark, got %d", got)
	}
}

func TestErrorBackoffIsCapped(t *testing.T) {
	b := newErrorBackoff(100 * time.Millisecond)
	var last time.Duration
	for i := 0; i < 12; i++ {
		delay, stop := b.Next()
		if stop {
			t.Fatalf("error backoff should never stop")
		}
		if delay < 0 || delay > maxBackoff+jitterWindow {
			t.Fatalf("attempt %d delay %s out of range", i, delay)
		}
		last = delay
	}
	if last < maxBackoff-jitterWindow {
		t.Fatalf("expected backoff to reach the cap, got %s", last)
	}
}

func TestPublishFailureResumesOrderingKey(t *testing.T) {
	event := paidRow(t, "ordered", 0)
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: paidResolved()}, nil, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 || pub.messages[0].OrderingKey != event.AggregateID.String() {
		t.Fatalf("expected message keyed by aggregate id")
	}
	if len(pub.resumed) != 1 || pub.resumed[0] != event.AggregateID.String() {
		t.Fatalf("expected ordering key resumed, got %v", pub.resumed)
	}
}

func TestReportBacklogSetsPendingGauge(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{paidRow(t, "a", 0), paidRow(t, "b", 3)}}
	reg := prometheus.NewRegistry()
	service := newTestService(t, repo, &fakePublisher{}, &fakeRegistry{}, reg, nil)

	service.reportBacklog(context.Background())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() == "outbox_pending_events" {
			if got := family.GetMetric()[0].GetGauge().GetValue(); got != 2 {
				t.Fatalf("expected 2 pending, got %v", got)
			}
			return
		}
	}
	t.Fatalf("pending gauge not registered")
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, eventRegistry registryResolver, reg prometheus.Registerer, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         eventRegistry,
		PublisherFactory: func(_ string) publisher { return pub },
		Metrics:          metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func paidRow(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       datatypes.JSON(mustEnvelopePayload(tb, eventID)),
		AttemptCount:  attempts,
	}
}

func paidResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			Topic:         "payments-topic",
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OrderPaidEvent{},
	}
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

type terminalMark struct {
	id       uuid.UUID
	reason   string
	attempts int
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []terminalMark
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, terminalMark{id: id, reason: err.Error(), attempts: terminalAttempts})
	return nil
}

func (f *fakeRepo) CountPending(maxAttempts int) (int64, error) {
	return int64(len(f.events) - len(f.published)), nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) PaymentsPublisher() *gcppubsub.Publisher {
	return &gcppubsub.Publisher{}
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	resumed  []string
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}
