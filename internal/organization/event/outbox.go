package event

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/identity/internal/observability/context"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/repository"
	"github.com/smallbiznis/identity/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Metadata keys carrying the request actor through the outbox.
const (
	MetadataActorType = "actor_type"
	MetadataActorID   = "actor_id"
)

// OutboxMessage is one recorded domain event awaiting delivery.
// DeliveredHandlers maps handler names to the time each accepted the row.
type OutboxMessage struct {
	ID                int64          `gorm:"primaryKey;autoIncrement:false"`
	OrgID             string         `gorm:"type:varchar(36);not null;index"`
	Topic             string         `gorm:"type:text;not null"`
	Payload           datatypes.JSON `gorm:"not null"`
	Metadata          datatypes.JSONMap
	DeliveredHandlers datatypes.JSONMap `gorm:"column:delivered_handlers"`
	Published         bool              `gorm:"not null;default:false;index:ix_organization_outbox_pending,priority:1"`
	Attempts          int               `gorm:"not null;default:0;index:ix_organization_outbox_pending,priority:2"`
	LastError         string            `gorm:"type:text;not null;default:''"`
	CreatedAt         time.Time         `gorm:"not null"`
	PublishedAt       *time.Time
}

func (OutboxMessage) TableName() string { return "organization_outbox" }

// Models lists the outbox persistence models for schema setup in tests.
func Models() []any {
	return []any{&OutboxMessage{}}
}

// Publisher records drained aggregate events. Publish must run inside the
// transaction that saved the aggregate.
type Publisher interface {
	WithTx(tx *gorm.DB) Publisher
	Publish(ctx context.Context, events []domain.Event) error
}

type outboxPublisher struct {
	store   repository.Repository[OutboxMessage]
	genID   *snowflake.Node
	metrics *metrics.Metrics
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node, m *metrics.Metrics) Publisher {
	return &outboxPublisher{
		store:   repository.ProvideStore[OutboxMessage](db),
		genID:   genID,
		metrics: m,
	}
}

func (p *outboxPublisher) WithTx(tx *gorm.DB) Publisher {
	return &outboxPublisher{
		store:   p.store.WithTrx(tx),
		genID:   p.genID,
		metrics: p.metrics,
	}
}

func (p *outboxPublisher) Publish(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	md := datatypes.JSONMap{}
	for k, v := range correlation.Metadata(ctx) {
		md[k] = v
	}
	if actorType, actorID := obscontext.ActorFromContext(ctx); actorType != "" {
		md[MetadataActorType] = actorType
		md[MetadataActorID] = actorID
	}

	rows := make([]*OutboxMessage, 0, len(events))
	for _, evt := range events {
		topic, payload, err := Encode(evt)
		if err != nil {
			return err
		}
		rows = append(rows, &OutboxMessage{
			ID:        p.genID.Generate().Int64(),
			OrgID:     evt.AggregateID().String(),
			Topic:     topic,
			Payload:   datatypes.JSON(payload),
			Metadata:  md,
			CreatedAt: evt.OccurredAt().UTC(),
		})
	}
	if err := p.store.BatchCreate(ctx, rows); err != nil {
		return err
	}
	for _, row := range rows {
		p.metrics.RecordEvent(ctx, row.Topic)
	}
	return nil
}
