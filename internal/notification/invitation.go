package notification

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"github.com/smallbiznis/identity/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
	Clock  clock.Clock
	Repo   domain.Repository
	Email  email.Provider
}

// InvitationMailer emails the invitee a link carrying the invitation token.
type InvitationMailer struct {
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	email     email.Provider
	acceptURL string
}

func NewInvitationMailer(p Params) *InvitationMailer {
	return &InvitationMailer{
		log:       p.Log.Named("notification.invitation"),
		clock:     p.Clock,
		repo:      p.Repo,
		email:     p.Email,
		acceptURL: p.Config.InvitationAcceptURL,
	}
}

func (m *InvitationMailer) Name() string { return "notification.invitation" }

func (m *InvitationMailer) Handle(ctx context.Context, msg event.Message) error {
	created, ok := msg.Event.(domain.InvitationCreated)
	if !ok {
		return nil
	}

	org, err := m.repo.Load(ctx, msg.OrganizationID)
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotFound) {
			return nil
		}
		return err
	}

	// Skip invitations resolved or expired before delivery.
	inv, found := org.Invitation(created.InvitationID)
	now := m.clock.Now().UTC()
	if !found || inv.Status != domain.InvitationStatusPending || inv.IsExpired(now) {
		m.log.Debug("invitation no longer pending, skipping email",
			zap.String("invitation_id", created.InvitationID.String()))
		return nil
	}

	roleName := ""
	if role, ok := org.Role(inv.RoleID); ok {
		roleName = role.Name
	}

	data := map[string]interface{}{
		"org_name":   org.Name(),
		"role_name":  roleName,
		"accept_url": AcceptURL(m.acceptURL, inv.Token),
		"expires_at": inv.ExpiresAt.Format(time.RFC1123),
	}
	mail, err := email.RenderMessage([]string{inv.Email}, email.TemplateInviteMember, data)
	if err != nil {
		return err
	}
	if err := m.email.Send(ctx, mail); err != nil {
		m.log.Warn("failed to send invitation email",
			zap.String("organization_id", org.ID().String()),
			zap.String("invitation_id", inv.ID.String()),
			zap.Error(err),
		)
		return err
	}
	m.log.Info("invitation email sent",
		zap.String("organization_id", org.ID().String()),
		zap.String("invitation_id", inv.ID.String()),
	)
	return nil
}

// AcceptURL appends the token to the configured accept link, keeping any
// query parameters already present.
func AcceptURL(base, token string) string {
	base = strings.TrimSpace(base)
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
