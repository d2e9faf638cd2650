package ctxlogger

import (
	"context"

	"github.com/smallbiznis/identity/internal/observability/logger"
	"go.uber.org/zap"
)

type eventSubjectKey struct{}

// ContextWithEventSubject annotates the context with the event being processed.
func ContextWithEventSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, eventSubjectKey{}, subject)
}

// EventSubject returns the subject set by ContextWithEventSubject.
func EventSubject(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	subject, _ := ctx.Value(eventSubjectKey{}).(string)
	return subject
}

// FromContext returns the global logger enriched with request, tracing and event metadata.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches base using metadata in the context.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	log := logger.WithContext(ctx, base)
	if subject := EventSubject(ctx); subject != "" {
		log = log.With(zap.String("event_subject", subject))
	}
	return log
}
