package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "forbidden",
			err:  domain.ErrForbidden,
			want: SchedulerJobReasonForbidden,
		},
		{
			name: "conflict",
			err:  fmt.Errorf("save: %w", domain.ErrConcurrencyConflict),
			want: SchedulerJobReasonConcurrencyConflict,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "identity",
		Environment: "test",
	})

	metrics.AddBatchProcessed("invitation_sweep", "invitations", 3)
	metrics.AddBatchProcessed("invitation_sweep", "invitations", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("invitation_sweep", "invitations"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestOutboxDispatchCounter(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.IncOutboxDispatch("identity_sync", OutboxResultDelivered)
	metrics.IncOutboxDispatch("identity_sync", OutboxResultFailed)
	metrics.IncOutboxDispatch("identity_sync", OutboxResultDelivered)

	got := testutil.ToFloat64(metrics.outboxDispatch.WithLabelValues("identity_sync", OutboxResultDelivered))
	if got != 2 {
		t.Fatalf("expected 2 deliveries, got %v", got)
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflicts to be retryable")
	}
	if IsSchedulerErrorRetryable(domain.ErrRoleNotFound) {
		t.Fatalf("expected business errors to be final")
	}
}
