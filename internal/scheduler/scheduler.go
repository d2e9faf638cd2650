package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/cache"
	"github.com/smallbiznis/identity/internal/clock"
	obsmetrics "github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobInvitationSweep = "invitation_sweep"
	JobOutboxRelay     = "outbox_relay"
	JobPolicyReload    = "policy_reload"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

type expiredInvitationFinder interface {
	ListWithExpiredInvitations(ctx context.Context, now time.Time, after domain.OrganizationID, limit int) ([]domain.OrganizationID, error)
}

type invitationExpirer interface {
	ExpireInvitations(ctx context.Context, orgID domain.OrganizationID) (int, error)
}

type outboxRelay interface {
	RunOnce(ctx context.Context) (int, error)
}

type policyReloader interface {
	Reload(ctx context.Context) error
}

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	OrgSvc  domain.Service
	Relay   *event.Relay
	Authz   authorization.Service        `optional:"true"`
	Locker  *cache.Locker                `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	finder   expiredInvitationFinder
	expirer  invitationExpirer
	relay    outboxRelay
	policies policyReloader
	locker   *cache.Locker
	metrics  *obsmetrics.SchedulerMetrics

	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Repo == nil || p.OrgSvc == nil || p.Relay == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		finder:  p.Repo,
		expirer: p.OrgSvc,
		relay:   p.Relay,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
	if p.Authz != nil {
		s.policies = p.Authz
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := s.withLock(ctx, name, fn)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Deadlines are soft: the next tick picks up the remaining work.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

type job struct {
	name string
	spec string
	run  func(context.Context) error
}

func (s *Scheduler) jobs() []job {
	jobs := []job{
		{JobInvitationSweep, s.cfg.InvitationSweepSpec, func(ctx context.Context) error {
			return s.runJob(ctx, JobInvitationSweep, s.cfg.BatchSize, s.cfg.JobTimeout, s.InvitationSweepJob)
		}},
		{JobOutboxRelay, s.cfg.OutboxRelaySpec, func(ctx context.Context) error {
			return s.runJob(ctx, JobOutboxRelay, s.cfg.BatchSize, s.cfg.JobTimeout, s.OutboxRelayJob)
		}},
	}
	if s.policies != nil {
		jobs = append(jobs, job{JobPolicyReload, s.cfg.PolicyReloadSpec, func(ctx context.Context) error {
			return s.runJob(ctx, JobPolicyReload, 1, s.cfg.JobTimeout, s.PolicyReloadJob)
		}})
	}
	return jobs
}

// RunOnce runs every configured job a single time, in order.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		if strings.TrimSpace(j.spec) == "" {
			continue
		}
		err = errors.Join(err, j.run(parent))
	}
	return err
}

// Start registers jobs with cron and begins ticking. Overlapping runs of the
// same job on this instance are skipped.
func (s *Scheduler) Start() error {
	logger := cronLogger{log: s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	for _, j := range s.jobs() {
		spec := strings.TrimSpace(j.spec)
		if spec == "" {
			s.log.Info("scheduler.job.disabled", zap.String("job", j.name))
			continue
		}
		run := j.run
		name := j.name
		if _, err := c.AddFunc(spec, func() {
			if err := run(ctx); err != nil {
				s.log.Warn("scheduler run failed", zap.String("job", name), zap.Error(err))
			}
		}); err != nil {
			cancel()
			return fmt.Errorf("schedule %s (%q): %w", j.name, spec, err)
		}
	}

	s.cron = c
	s.cancel = cancel
	c.Start()
	s.log.Info("scheduler started", zap.Int("entries", len(c.Entries())))
	return nil
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InvitationSweepJob persists the Expired status for pending invitations past
// their deadline. Reads already treat them as expired; the sweep makes the
// transition durable and emits InvitationExpired.
func (s *Scheduler) InvitationSweepJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobInvitationSweep, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	// The cursor advances past failing organizations too.
	var jobErr error
	var cursor domain.OrganizationID
	now := s.clock.Now().UTC()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		orgIDs, err := s.finder.ListWithExpiredInvitations(ctx, now, cursor, s.cfg.BatchSize)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.invitation_sweep.list_failed", JobInvitationSweep, domain.OrganizationID{}, err)
			return errors.Join(jobErr, err)
		}

		for _, orgID := range orgIDs {
			expired, err := s.expirer.ExpireInvitations(ctx, orgID)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.invitation_sweep.expire_failed", JobInvitationSweep, orgID, err)
				continue
			}
			run.AddProcessed(expired)
			s.metrics.AddBatchProcessed(JobInvitationSweep, "invitations", expired)
		}
		if len(orgIDs) < s.cfg.BatchSize {
			break
		}
		cursor = orgIDs[len(orgIDs)-1]
	}
	return jobErr
}

// OutboxRelayJob drains the outbox until a pass delivers nothing.
func (s *Scheduler) OutboxRelayJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobOutboxRelay, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delivered, err := s.relay.RunOnce(ctx)
		run.AddProcessed(delivered)
		s.metrics.AddBatchProcessed(JobOutboxRelay, "events", delivered)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.outbox_relay.failed", JobOutboxRelay, domain.OrganizationID{}, err)
			return err
		}
		if delivered == 0 {
			return nil
		}
	}
}

// PolicyReloadJob refreshes the in-memory authorization policy from storage so
// instances converge on writes made by their peers.
func (s *Scheduler) PolicyReloadJob(ctx context.Context) error {
	if s.policies == nil {
		return nil
	}
	if err := s.policies.Reload(ctx); err != nil {
		return err
	}
	if run := jobRunFromContext(ctx); run != nil {
		run.AddProcessed(1)
	}
	return nil
}
