package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/identity/internal/observability/context"
	"github.com/smallbiznis/identity/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeUser, "user-1")
	ctx = correlation.ContextWithCorrelationID(ctx, "cid-1")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "cid-1", fields["correlation_id"])
		assert.Equal(t, "user-1", fields["actor_id"])
		assert.NotContains(t, fields, "org_id")
	}
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "SELECT", operationFromSQL("select * from organizations"))
	assert.Equal(t, "UPDATE", operationFromSQL("  update organizations set version = version + 1"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestRedactingCoreMasksSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(NewRedactingCore(core)).With(zap.String("invitee_email", "jane@example.com"))

	log.Info("invitation created",
		zap.String("invitation_token", "tok_abcdefgh"),
		zap.String("organization_id", "org-1"),
		zap.Int("attempt", 1),
	)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "j****@example.com", fields["invitee_email"])
		assert.Equal(t, "tok_****efgh", fields["invitation_token"])
		assert.Equal(t, "org-1", fields["organization_id"])
		assert.Equal(t, int64(1), fields["attempt"])
	}
}

func TestGormLoggerTraceLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	errDuplicate := errors.New("UNIQUE constraint failed: organizations.slug")
	cfg := DefaultGormLoggerConfig()
	cfg.ExpectedError = func(err error) bool { return errors.Is(err, errDuplicate) }
	l := NewGormLogger(cfg)
	query := func() (string, int64) { return "INSERT INTO organizations (slug) VALUES (?)", 0 }
	begin := time.Now()

	l.Trace(context.Background(), begin, query, gormlogger.ErrRecordNotFound)
	l.Trace(context.Background(), begin, query, errDuplicate)
	l.Trace(context.Background(), begin, query, errors.New("connection reset"))
	l.Trace(context.Background(), begin, query, nil)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
		assert.Equal(t, "INSERT", entries[1].ContextMap()["operation"])
	}
}
