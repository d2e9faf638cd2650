package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smallbiznis/identity/internal/observability/metrics"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Keycloak user attributes maintained for token mappers.
const (
	AttrOrganizations      = "organizations"
	AttrOwnedOrganizations = "owned_organizations"
	AttrOrganizationRoles  = "organization_roles"
	AttrPermissions        = "permissions"
)

type attributeWriter interface {
	UpdateAttributes(ctx context.Context, id domain.UserID, attrs map[string][]string) error
}

type SyncParams struct {
	fx.In

	Log     *zap.Logger
	Client  *Client `optional:"true"`
	Repo    domain.Repository
	Service domain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

// SyncHandler pushes each affected user's organization memberships and
// permissions to the identity provider after a committed change.
type SyncHandler struct {
	log     *zap.Logger
	writer  attributeWriter
	repo    domain.Repository
	svc     domain.Service
	metrics *metrics.Metrics
}

// NewSyncHandler returns a nil handler when the identity provider is disabled
// so the relay never sees it.
func NewSyncHandler(p SyncParams) event.Handler {
	if p.Client == nil {
		return nil
	}
	return newSyncHandler(p, p.Client)
}

func newSyncHandler(p SyncParams, writer attributeWriter) *SyncHandler {
	return &SyncHandler{
		log:     p.Log.Named("identity.sync"),
		writer:  writer,
		repo:    p.Repo,
		svc:     p.Service,
		metrics: p.Metrics,
	}
}

func (h *SyncHandler) Name() string { return "identity.sync" }

func (h *SyncHandler) Handle(ctx context.Context, msg event.Message) error {
	if msg.Event == nil {
		return nil
	}
	org, err := h.repo.Load(ctx, msg.OrganizationID)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil
		}
		return err
	}

	var failed error
	for _, userID := range org.AffectedUsers([]domain.Event{msg.Event}) {
		if err := h.SyncUser(ctx, userID); err != nil {
			h.log.Warn("identity sync failed",
				zap.String("user_id", userID.String()),
				zap.String("topic", msg.Topic),
				zap.Error(err),
			)
			failed = errors.Join(failed, err)
		}
	}
	return failed
}

// SyncUser recomputes and pushes one user's attributes.
func (h *SyncHandler) SyncUser(ctx context.Context, userID domain.UserID) error {
	facts, err := h.svc.AccessFacts(ctx, userID)
	if err != nil {
		h.metrics.RecordIdentitySync(ctx, metrics.OutcomeError)
		return fmt.Errorf("access facts: %w", err)
	}
	attrs, err := Attributes(facts)
	if err != nil {
		h.metrics.RecordIdentitySync(ctx, metrics.OutcomeError)
		return err
	}
	if err := h.writer.UpdateAttributes(ctx, userID, attrs); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			h.metrics.RecordIdentitySync(ctx, metrics.OutcomeRejected)
			h.log.Info("identity user missing, skipping sync", zap.String("user_id", userID.String()))
			return nil
		}
		h.metrics.RecordIdentitySync(ctx, metrics.OutcomeError)
		return err
	}
	h.metrics.RecordIdentitySync(ctx, metrics.OutcomeOK)
	return nil
}

// Attributes renders access facts as Keycloak attributes. Role and permission
// maps are JSON objects keyed by organization id.
func Attributes(facts []domain.AccessFacts) (map[string][]string, error) {
	orgs := make([]string, 0, len(facts))
	owned := make([]string, 0)
	roles := make(map[string][]string, len(facts))
	perms := make(map[string][]string, len(facts))

	for _, f := range facts {
		id := f.OrganizationID.String()
		orgs = append(orgs, id)
		if f.IsOwner {
			owned = append(owned, id)
		}
		roles[id] = nonNil(f.Roles)
		perms[id] = nonNil(f.Permissions)
	}

	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, err
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return nil, err
	}
	return map[string][]string{
		AttrOrganizations:      orgs,
		AttrOwnedOrganizations: owned,
		AttrOrganizationRoles:  {string(rolesJSON)},
		AttrPermissions:        {string(permsJSON)},
	}, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
