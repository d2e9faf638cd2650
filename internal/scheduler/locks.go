package scheduler

import (
	"context"
	"errors"

	"github.com/smallbiznis/identity/internal/cache"
	obsmetrics "github.com/smallbiznis/identity/internal/observability/metrics"
	"go.uber.org/zap"
)

const lockKeyPrefix = "identity:scheduler:"

// withLock runs fn only if this instance wins the job lock. Without a locker
// every instance runs every job.
func (s *Scheduler) withLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := lockKeyPrefix + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockNotConfigured) {
			return fn(ctx)
		}
		return err
	}
	if !ok {
		s.metrics.IncJobSkipped(job, obsmetrics.SchedulerSkipReasonLockHeld)
		s.logger(ctx).Debug("scheduler.job.skipped", zap.String("job", job), zap.String("reason", obsmetrics.SchedulerSkipReasonLockHeld))
		return nil
	}
	defer func() {
		// The job context may already be done; release with a fresh one.
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("scheduler.lock.release_failed", zap.String("job", job), zap.Error(err))
		}
	}()
	return fn(ctx)
}
