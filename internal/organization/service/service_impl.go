package service

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMaxConflictRetries = 3

type Params struct {
	fx.In

	DB        *gorm.DB
	Repo      domain.Repository
	Publisher event.Publisher
	Clock     clock.Clock
	Log       *zap.Logger
	Config    config.Config

	Metrics   *metrics.Metrics                `optional:"true"`
	Catalog   *config.PermissionCatalogHolder `optional:"true"`
	Directory domain.UserDirectory            `optional:"true"`
	Cache     domain.AccessCache              `optional:"true"`
}

type service struct {
	db         *gorm.DB
	repo       domain.Repository
	publisher  event.Publisher
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics
	catalog    *config.PermissionCatalogHolder
	directory  domain.UserDirectory
	cache      domain.AccessCache
	maxRetries int
}

func NewService(p Params) domain.Service {
	log := p.Log
	if log == nil {
		log = zap.L()
	}
	maxRetries := p.Config.MaxConflictRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxConflictRetries
	}
	return &service{
		db:         p.DB,
		repo:       p.Repo,
		publisher:  p.Publisher,
		clock:      p.Clock,
		log:        log.Named("organization.service"),
		metrics:    p.Metrics,
		catalog:    p.Catalog,
		directory:  p.Directory,
		cache:      p.Cache,
		maxRetries: maxRetries,
	}
}

// mutation applies one command to a freshly loaded aggregate. It authorizes
// the caller and calls root methods; it must not perform writes itself.
type mutation func(org *domain.Organization, now time.Time) error

// mutate runs load, mutate and save, retrying the whole cycle when the stored
// version advanced underneath. Commands that record no events are not saved.
func (s *service) mutate(ctx context.Context, command string, orgID domain.OrganizationID, fn mutation) (*domain.Organization, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		org, err := s.repo.Load(ctx, orgID)
		if err != nil {
			return nil, s.fail(ctx, command, err)
		}

		now := s.clock.Now().UTC()
		if err := fn(org, now); err != nil {
			return nil, s.fail(ctx, command, err)
		}

		events := org.PendingEvents()
		if len(events) == 0 {
			s.metrics.RecordCommand(ctx, command, metrics.OutcomeOK)
			return org, nil
		}

		version, err := s.commit(ctx, org, org.Version(), events)
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			lastErr = err
			s.metrics.RecordConflict(ctx, command)
			ctxlogger.WithContext(ctx, s.log).Warn("organization changed concurrently, retrying",
				zap.String("command", command),
				zap.String("org_id", orgID.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, s.fail(ctx, command, err)
		}

		org.MarkPersisted(version)
		s.afterCommit(ctx, org, events)
		s.metrics.RecordCommand(ctx, command, metrics.OutcomeOK)
		return org, nil
	}
	return nil, s.fail(ctx, command, lastErr)
}

// commit saves the aggregate and records its events in one transaction.
func (s *service) commit(ctx context.Context, org *domain.Organization, expectedVersion int64, events []domain.Event) (int64, error) {
	var version int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		saved, err := s.repo.WithTx(tx).Save(ctx, org, expectedVersion)
		if err != nil {
			return err
		}
		if err := s.publisher.WithTx(tx).Publish(ctx, events); err != nil {
			return err
		}
		version = saved
		return nil
	})
	return version, err
}

func (s *service) afterCommit(ctx context.Context, org *domain.Organization, events []domain.Event) {
	if s.cache == nil {
		return
	}
	users := org.AffectedUsers(events)
	if len(users) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, users...); err != nil {
		ctxlogger.WithContext(ctx, s.log).Warn("failed to invalidate access cache",
			zap.String("org_id", org.ID().String()),
			zap.Int("users", len(users)),
			zap.Error(err),
		)
	}
}

func (s *service) fail(ctx context.Context, command string, err error) error {
	outcome := metrics.OutcomeError
	if isRejection(err) {
		outcome = metrics.OutcomeRejected
	} else {
		ctxlogger.WithContext(ctx, s.log).Error("organization command failed",
			zap.String("command", command),
			zap.Error(err),
		)
	}
	s.metrics.RecordCommand(ctx, command, outcome)
	return err
}

func isRejection(err error) bool {
	return domain.IsValidationError(err) ||
		domain.IsNotFound(err) ||
		domain.IsBusinessRuleViolation(err) ||
		errors.Is(err, domain.ErrForbidden)
}

// load reads an aggregate for a query and checks that actor may see it.
func (s *service) load(ctx context.Context, actor domain.UserID, rawOrgID string) (*domain.Organization, error) {
	if actor.IsZero() {
		return nil, domain.ErrInvalidUser
	}
	orgID, err := domain.ParseOrganizationID(rawOrgID)
	if err != nil {
		return nil, err
	}
	org, err := s.repo.Load(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.HasAccess(actor) {
		return nil, domain.ErrForbidden
	}
	return org, nil
}

func parseTarget(actor domain.UserID, rawOrgID string) (domain.OrganizationID, error) {
	if actor.IsZero() {
		return domain.OrganizationID{}, domain.ErrInvalidUser
	}
	return domain.ParseOrganizationID(rawOrgID)
}

// authorize grants the owner, Admin role holders and holders of permission.
func authorize(org *domain.Organization, actor domain.UserID, permission string) error {
	if !org.HasPermission(actor, permission) {
		return domain.ErrForbidden
	}
	return nil
}
