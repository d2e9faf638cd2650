package service

import (
	"context"
	"time"

	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

func (s *service) CreateInvitation(ctx context.Context, actor domain.UserID, orgID string, req domain.InvitationRequest) (*domain.InvitationResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}
	roleID, err := domain.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, err
	}
	var expiresAt time.Time
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
	}

	var created domain.Invitation
	var at time.Time
	_, err = s.mutate(ctx, "invitation.create", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionInvitationsManage); err != nil {
			return err
		}
		inv, err := org.CreateInvitation(req.Email, roleID, expiresAt, now)
		if err != nil {
			return err
		}
		created, at = inv, now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invitationResponse(created, at), nil
}

func (s *service) AcceptInvitation(ctx context.Context, actor domain.UserID, orgID string, invitationID string) (*domain.MemberResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseInvitationID(invitationID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, actor, id, func(org *domain.Organization) (domain.Invitation, bool) {
		return org.Invitation(target)
	})
}

// AcceptInvitationByToken resolves the organization from the invitation
// token carried by an out-of-band link.
func (s *service) AcceptInvitationByToken(ctx context.Context, actor domain.UserID, token string) (*domain.MemberResponse, error) {
	if actor.IsZero() {
		return nil, domain.ErrInvalidUser
	}
	orgID, err := s.repo.FindByInvitationToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, actor, orgID, func(org *domain.Organization) (domain.Invitation, bool) {
		return org.InvitationByToken(token)
	})
}

func (s *service) accept(ctx context.Context, actor domain.UserID, orgID domain.OrganizationID, find func(*domain.Organization) (domain.Invitation, bool)) (*domain.MemberResponse, error) {
	verified := ""
	org, err := s.mutate(ctx, "invitation.accept", orgID, func(org *domain.Organization, now time.Time) error {
		inv, ok := find(org)
		if !ok {
			return domain.ErrInvitationNotFound
		}
		if verified != inv.Email {
			if err := s.verifyInvitee(ctx, actor, inv.Email); err != nil {
				return err
			}
			verified = inv.Email
		}
		_, err := org.AcceptInvitation(inv.ID, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	member, ok := org.Member(actor)
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return memberResponse(org, member), nil
}

// RejectInvitation is allowed to the invitee and to invitation managers.
func (s *service) RejectInvitation(ctx context.Context, actor domain.UserID, orgID string, invitationID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	target, err := domain.ParseInvitationID(invitationID)
	if err != nil {
		return err
	}

	verified := ""
	_, err = s.mutate(ctx, "invitation.reject", id, func(org *domain.Organization, now time.Time) error {
		inv, ok := org.Invitation(target)
		if !ok {
			return domain.ErrInvitationNotFound
		}
		if !org.HasPermission(actor, domain.PermissionInvitationsManage) && verified != inv.Email {
			if err := s.verifyInvitee(ctx, actor, inv.Email); err != nil {
				return err
			}
			verified = inv.Email
		}
		return org.RejectInvitation(inv.ID, now)
	})
	return err
}

func (s *service) GetInvitation(ctx context.Context, actor domain.UserID, orgID string, invitationID string) (*domain.InvitationResponse, error) {
	target, err := domain.ParseInvitationID(invitationID)
	if err != nil {
		return nil, err
	}
	org, err := s.loadInvitations(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	inv, ok := org.Invitation(target)
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return invitationResponse(inv, s.clock.Now()), nil
}

func (s *service) ListInvitations(ctx context.Context, actor domain.UserID, orgID string) ([]domain.InvitationResponse, error) {
	org, err := s.loadInvitations(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	invitations := org.Invitations()
	resp := make([]domain.InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		resp = append(resp, *invitationResponse(inv, now))
	}
	return resp, nil
}

// ExpireInvitations persists the Expired status of every overdue pending
// invitation in the organization. It runs without a caller.
func (s *service) ExpireInvitations(ctx context.Context, orgID domain.OrganizationID) (int, error) {
	var expired int
	_, err := s.mutate(ctx, "invitation.expire", orgID, func(org *domain.Organization, now time.Time) error {
		expired = len(org.ExpireInvitations(now))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		ctxlogger.WithContext(ctx, s.log).Info("invitations expired",
			zap.String("org_id", orgID.String()),
			zap.Int("count", expired),
		)
	}
	return expired, nil
}

func (s *service) loadInvitations(ctx context.Context, actor domain.UserID, orgID string) (*domain.Organization, error) {
	org, err := s.load(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	if !org.HasPermission(actor, domain.PermissionInvitationsView) &&
		!org.HasPermission(actor, domain.PermissionInvitationsManage) {
		return nil, domain.ErrForbidden
	}
	return org, nil
}

// verifyInvitee checks the caller's directory e-mail against the invitation.
// Without a directory the invitation id or token is the only proof required.
func (s *service) verifyInvitee(ctx context.Context, actor domain.UserID, email string) error {
	if s.directory == nil {
		return nil
	}
	profile, err := s.directory.GetUser(ctx, actor)
	if err != nil {
		return err
	}
	normalized, err := domain.NormalizeEmail(profile.Email)
	if err != nil || normalized != email {
		return domain.ErrForbidden
	}
	return nil
}
