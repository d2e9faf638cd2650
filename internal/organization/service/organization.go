package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

func (s *service) Create(ctx context.Context, actor domain.UserID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	const command = "organization.create"
	if actor.IsZero() {
		return nil, s.fail(ctx, command, domain.ErrInvalidUser)
	}

	now := s.clock.Now().UTC()
	org, err := domain.Create(req.Name, actor, req.Description, now)
	if err != nil {
		return nil, s.fail(ctx, command, err)
	}
	if err := org.UpdateLogo(req.LogoURL, now); err != nil {
		return nil, s.fail(ctx, command, err)
	}
	if err := org.UpdateBanner(req.BannerURL, now); err != nil {
		return nil, s.fail(ctx, command, err)
	}

	exists, err := s.repo.ExistsByName(ctx, org.Name())
	if err != nil {
		return nil, s.fail(ctx, command, err)
	}
	if exists {
		return nil, s.fail(ctx, command, domain.ErrDuplicateOrganization)
	}

	events := org.PendingEvents()
	version, err := s.commit(ctx, org, 0, events)
	if err != nil {
		return nil, s.fail(ctx, command, err)
	}
	org.MarkPersisted(version)
	s.afterCommit(ctx, org, events)
	s.metrics.RecordCommand(ctx, command, metrics.OutcomeOK)

	ctxlogger.WithContext(ctx, s.log).Info("organization created",
		zap.String("org_id", org.ID().String()),
		zap.String("owner_user_id", actor.String()),
	)
	return organizationResponse(org), nil
}

func (s *service) GetByID(ctx context.Context, actor domain.UserID, orgID string) (*domain.OrganizationResponse, error) {
	org, err := s.load(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	return organizationResponse(org), nil
}

func (s *service) Update(ctx context.Context, actor domain.UserID, orgID string, req domain.UpdateOrganizationRequest) (*domain.OrganizationResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}
	org, err := s.mutate(ctx, "organization.update", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionOrganizationManage); err != nil {
			return err
		}
		if err := org.Update(req.Name, req.Description, now); err != nil {
			return err
		}
		if req.LogoURL != nil {
			if err := org.UpdateLogo(*req.LogoURL, now); err != nil {
				return err
			}
		}
		if req.BannerURL != nil {
			if err := org.UpdateBanner(*req.BannerURL, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return organizationResponse(org), nil
}

func (s *service) Activate(ctx context.Context, actor domain.UserID, orgID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, "organization.activate", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionOrganizationManage); err != nil {
			return err
		}
		org.Activate(now)
		return nil
	})
	return err
}

func (s *service) Deactivate(ctx context.Context, actor domain.UserID, orgID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, "organization.deactivate", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionOrganizationManage); err != nil {
			return err
		}
		org.Deactivate(now)
		return nil
	})
	return err
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID domain.UserID) ([]domain.OrganizationListResponseItem, error) {
	if userID.IsZero() {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			IsActive:  item.IsActive,
			IsOwner:   item.IsOwner,
			CreatedAt: item.CreatedAt,
		})
	}
	return resp, nil
}

// HasAccess reports false for unknown organizations instead of failing.
func (s *service) HasAccess(ctx context.Context, orgID string, userID domain.UserID) (bool, error) {
	if userID.IsZero() {
		return false, domain.ErrInvalidUser
	}
	id, err := domain.ParseOrganizationID(orgID)
	if err != nil {
		return false, err
	}
	org, err := s.repo.Load(ctx, id)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return org.HasAccess(userID), nil
}

// HasPermission checks a permission against the authoritative aggregate.
// Unknown organizations and non-members report false.
func (s *service) HasPermission(ctx context.Context, orgID string, userID domain.UserID, permission string) (bool, error) {
	if _, err := domain.NewPermission(permission, ""); err != nil {
		return false, err
	}
	if userID.IsZero() {
		return false, domain.ErrInvalidUser
	}
	id, err := domain.ParseOrganizationID(orgID)
	if err != nil {
		return false, err
	}
	org, err := s.repo.Load(ctx, id)
	if errors.Is(err, domain.ErrOrganizationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return org.HasPermission(userID, permission), nil
}

// AccessFacts collects the user's facts across every organization they
// belong to, served from the access cache when one is configured.
func (s *service) AccessFacts(ctx context.Context, userID domain.UserID) ([]domain.AccessFacts, error) {
	if userID.IsZero() {
		return nil, domain.ErrInvalidUser
	}

	if s.cache != nil {
		facts, ok, err := s.cache.GetFacts(ctx, userID)
		if err != nil {
			ctxlogger.WithContext(ctx, s.log).Warn("access cache read failed", zap.Error(err))
		} else if ok {
			return facts, nil
		}
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	facts := make([]domain.AccessFacts, 0, len(items))
	for _, item := range items {
		org, err := s.repo.Load(ctx, item.ID)
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if f, ok := org.AccessFacts(userID); ok {
			facts = append(facts, f)
		}
	}

	if s.cache != nil {
		if err := s.cache.SetFacts(ctx, userID, facts); err != nil {
			ctxlogger.WithContext(ctx, s.log).Warn("access cache write failed", zap.Error(err))
		}
	}
	return facts, nil
}

// PermissionCatalog lists the built-in permissions followed by any extra
// entries from the operator catalog file.
func (s *service) PermissionCatalog(ctx context.Context) []domain.Permission {
	out := domain.StandardPermissions()
	seen := make(map[string]struct{}, len(out))
	for _, p := range out {
		seen[p.Name] = struct{}{}
	}
	for _, entry := range s.catalog.Get().Permissions {
		p, err := domain.NewPermission(entry.Name, entry.Description)
		if err != nil {
			continue
		}
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out
}

// resolvePermissions builds permission values for names, taking descriptions
// from the catalog when the name is listed there.
func (s *service) resolvePermissions(ctx context.Context, names []string) ([]domain.Permission, error) {
	descriptions := map[string]string{}
	for _, p := range s.PermissionCatalog(ctx) {
		descriptions[p.Name] = p.Description
	}

	out := make([]domain.Permission, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		p, err := domain.NewPermission(name, descriptions[name])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
