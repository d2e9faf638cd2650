package authorization

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Repo     orgdomain.Repository
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	repo     orgdomain.Repository
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) *ServiceImpl {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		repo:     p.Repo,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID orgdomain.UserID, orgID orgdomain.OrganizationID, permission string) error {
	if userID.IsZero() {
		return ErrInvalidActor
	}
	if orgID.IsZero() {
		return ErrInvalidOrganization
	}
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return ErrInvalidPermission
	}

	object, action := splitPermission(permission)
	allowed, err := s.enforcer.Enforce(subjectOf(userID), domainOf(orgID), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// Sync rebuilds the policies of one organization from its current state. A
// missing organization leaves no policies behind.
func (s *ServiceImpl) Sync(ctx context.Context, orgID orgdomain.OrganizationID) error {
	org, err := s.repo.Load(ctx, orgID)
	if err != nil && !errors.Is(err, orgdomain.ErrOrganizationNotFound) {
		return err
	}

	dom := domainOf(orgID)
	if err := s.clear(dom); err != nil {
		return err
	}
	if org == nil {
		ctxlogger.WithContext(ctx, s.log).Info("authorization policies removed", zap.String("org_id", orgID.String()))
		return nil
	}

	policies, groupings := project(org)
	if len(policies) > 0 {
		if _, err := s.enforcer.AddPolicies(policies); err != nil {
			return err
		}
	}
	if len(groupings) > 0 {
		if _, err := s.enforcer.AddGroupingPolicies(groupings); err != nil {
			return err
		}
	}

	ctxlogger.WithContext(ctx, s.log).Debug("authorization policies synced",
		zap.String("org_id", orgID.String()),
		zap.Int("policies", len(policies)),
		zap.Int("groupings", len(groupings)),
	)
	return nil
}

// Reload picks up policy changes written by other instances.
func (s *ServiceImpl) Reload(ctx context.Context) error {
	return s.enforcer.LoadPolicy()
}

func (s *ServiceImpl) clear(dom string) error {
	if _, err := s.enforcer.RemoveFilteredPolicy(1, dom); err != nil {
		return err
	}
	_, err := s.enforcer.RemoveFilteredGroupingPolicy(2, dom)
	return err
}

// project turns an organization into casbin rules. The owner and the Admin
// role are granted everything in the organization's domain.
func project(org *orgdomain.Organization) ([][]string, [][]string) {
	dom := domainOf(org.ID())

	policies := [][]string{{roleOwner, dom, wildcard, wildcard}}
	for _, role := range org.Roles() {
		sub := roleSubject(role.ID)
		if role.Name == orgdomain.RoleAdmin {
			policies = append(policies, []string{sub, dom, wildcard, wildcard})
			continue
		}
		for _, name := range role.PermissionNames() {
			object, action := splitPermission(name)
			policies = append(policies, []string{sub, dom, object, action})
		}
	}

	groupings := [][]string{{subjectOf(org.OwnerUserID()), roleOwner, dom}}
	for _, member := range org.Members() {
		for _, roleID := range member.RoleIDs {
			groupings = append(groupings, []string{subjectOf(member.UserID), roleSubject(roleID), dom})
		}
	}
	return policies, groupings
}
