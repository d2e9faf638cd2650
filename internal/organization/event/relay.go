package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	obscontext "github.com/smallbiznis/identity/internal/observability/context"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/db/option"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"github.com/smallbiznis/identity/pkg/repository"
	"github.com/smallbiznis/identity/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultRelayBatchSize   = 100
	DefaultRelayMaxAttempts = 10

	maxLastErrorLength = 1024
)

// Message is a decoded outbox entry handed to handlers.
type Message struct {
	ID             int64
	Topic          string
	OrganizationID domain.OrganizationID
	Event          domain.Event
	CreatedAt      time.Time
	Attempt        int
}

// Handler reacts to delivered events. Each handler sees a row until it
// succeeds once; a crash between Handle and the bookkeeping update can still
// repeat a delivery.
type Handler interface {
	Name() string
	Handle(ctx context.Context, msg Message) error
}

type RelayParams struct {
	fx.In

	DB       *gorm.DB
	Clock    clock.Clock
	Log      *zap.Logger
	Config   config.Config
	Metrics  *metrics.SchedulerMetrics `optional:"true"`
	Handlers []Handler                 `group:"outbox_handlers"`
}

// Relay delivers unpublished outbox rows to every registered handler.
type Relay struct {
	store       repository.Repository[OutboxMessage]
	clock       clock.Clock
	log         *zap.Logger
	metrics     *metrics.SchedulerMetrics
	handlers    []Handler
	batchSize   int
	maxAttempts int
}

func NewRelay(p RelayParams) *Relay {
	batch := p.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = DefaultRelayBatchSize
	}
	attempts := p.Config.Outbox.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultRelayMaxAttempts
	}
	log := p.Log
	if log == nil {
		log = zap.L()
	}
	handlers := make([]Handler, 0, len(p.Handlers))
	for _, h := range p.Handlers {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	return &Relay{
		store:       repository.ProvideStore[OutboxMessage](p.DB),
		clock:       p.Clock,
		log:         log.Named("organization.outbox"),
		metrics:     p.Metrics,
		handlers:    handlers,
		batchSize:   batch,
		maxAttempts: attempts,
	}
}

// RunOnce delivers one batch and reports how many rows were marked published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.store.Find(ctx, nil,
		option.Where("published = ? AND attempts < ?", false, r.maxAttempts),
		option.OrderBy("id ASC"),
		option.Limit(r.batchSize),
	)
	if err != nil {
		return 0, fmt.Errorf("load outbox batch: %w", err)
	}

	delivered := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		ok, err := r.deliver(ctx, row)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// Pending counts rows still eligible for delivery.
func (r *Relay) Pending(ctx context.Context) (int64, error) {
	return r.store.Count(ctx, nil, option.Where("published = ? AND attempts < ?", false, r.maxAttempts))
}

func (r *Relay) deliver(ctx context.Context, row *OutboxMessage) (bool, error) {
	md := make(map[string]string, len(row.Metadata))
	for k, v := range row.Metadata {
		if s, ok := v.(string); ok {
			md[k] = s
		}
	}
	ctx = correlation.ContextFromMetadata(ctx, md)
	if actorType := md[MetadataActorType]; actorType != "" {
		ctx = obscontext.WithActor(ctx, actorType, md[MetadataActorID])
	}
	ctx = ctxlogger.ContextWithEventSubject(ctx, row.Topic)
	log := ctxlogger.WithContext(ctx, r.log).With(
		zap.Int64("outbox_id", row.ID),
		zap.String("org_id", row.OrgID),
	)

	evt, err := Decode(row.Topic, row.Payload)
	if err != nil {
		log.Error("dropping undecodable outbox message", zap.Error(err))
		r.metrics.IncOutboxDispatch("decode", metrics.OutboxResultDropped)
		return false, r.store.Update(ctx, row.ID, map[string]any{
			"attempts":   r.maxAttempts,
			"last_error": truncate(err.Error()),
		})
	}

	msg := Message{
		ID:             row.ID,
		Topic:          row.Topic,
		OrganizationID: evt.AggregateID(),
		Event:          evt,
		CreatedAt:      row.CreatedAt,
		Attempt:        row.Attempts + 1,
	}

	delivered := make(datatypes.JSONMap, len(row.DeliveredHandlers)+len(r.handlers))
	for name, at := range row.DeliveredHandlers {
		delivered[name] = at
	}

	var failures []error
	for _, h := range r.handlers {
		if _, done := delivered[h.Name()]; done {
			continue
		}
		if err := h.Handle(ctx, msg); err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", h.Name(), err))
			r.metrics.IncOutboxDispatch(h.Name(), metrics.OutboxResultFailed)
			continue
		}
		delivered[h.Name()] = r.clock.Now().UTC().Format(time.RFC3339Nano)
		r.metrics.IncOutboxDispatch(h.Name(), metrics.OutboxResultDelivered)
	}

	if len(failures) > 0 {
		joined := errors.Join(failures...)
		attempts := row.Attempts + 1
		if attempts >= r.maxAttempts {
			log.Error("outbox message exhausted its attempts", zap.Int("attempts", attempts), zap.Error(joined))
		} else {
			log.Warn("outbox delivery failed", zap.Int("attempts", attempts), zap.Error(joined))
		}
		return false, r.store.Update(ctx, row.ID, map[string]any{
			"attempts":           attempts,
			"last_error":         truncate(joined.Error()),
			"delivered_handlers": delivered,
		})
	}

	now := r.clock.Now()
	r.metrics.ObserveOutboxLag(now.Sub(row.CreatedAt))
	log.Debug("outbox message delivered", zap.Int("handlers", len(r.handlers)))
	return true, r.store.Update(ctx, row.ID, map[string]any{
		"published":          true,
		"published_at":       now,
		"attempts":           row.Attempts + 1,
		"last_error":         "",
		"delivered_handlers": delivered,
	})
}

func truncate(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > maxLastErrorLength {
		return msg[:maxLastErrorLength]
	}
	return msg
}
