package service

import (
	"context"
	"time"

	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/db/pagination"
)

func (s *service) AddMember(ctx context.Context, actor domain.UserID, orgID string, req domain.AddMemberRequest) (*domain.MemberResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		return nil, err
	}
	roleID, err := domain.ParseRoleID(req.RoleID)
	if err != nil {
		return nil, err
	}

	org, err := s.mutate(ctx, "member.add", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionMembersManage); err != nil {
			return err
		}
		_, err := org.AddMember(userID, roleID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	member, ok := org.Member(userID)
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return memberResponse(org, member), nil
}

func (s *service) RemoveMember(ctx context.Context, actor domain.UserID, orgID string, userID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	target, err := domain.ParseUserID(userID)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, "member.remove", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionMembersManage); err != nil {
			return err
		}
		return org.RemoveMember(target, now)
	})
	return err
}

func (s *service) AssignRole(ctx context.Context, actor domain.UserID, orgID string, userID string, roleID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	target, err := domain.ParseUserID(userID)
	if err != nil {
		return err
	}
	role, err := domain.ParseRoleID(roleID)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, "member.assign_role", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionMembersManage); err != nil {
			return err
		}
		return org.AssignRoleToMember(target, role, now)
	})
	return err
}

func (s *service) RevokeRole(ctx context.Context, actor domain.UserID, orgID string, userID string, roleID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	target, err := domain.ParseUserID(userID)
	if err != nil {
		return err
	}
	role, err := domain.ParseRoleID(roleID)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, "member.revoke_role", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionMembersManage); err != nil {
			return err
		}
		return org.RevokeRoleFromMember(target, role, now)
	})
	return err
}

func (s *service) GetMember(ctx context.Context, actor domain.UserID, orgID string, userID string) (*domain.MemberResponse, error) {
	target, err := domain.ParseUserID(userID)
	if err != nil {
		return nil, err
	}
	org, err := s.load(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	member, ok := org.Member(target)
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return memberResponse(org, member), nil
}

// ListMembers pages members in join order.
func (s *service) ListMembers(ctx context.Context, actor domain.UserID, orgID string, req domain.ListMembersRequest) (*domain.ListMembersResponse, error) {
	org, err := s.load(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}

	page, info, err := pagination.Slice(org.Members(), pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  req.PageSize,
	}, func(m domain.Member) pagination.Cursor {
		return pagination.Cursor{
			ID:        m.ID.String(),
			CreatedAt: m.JoinedAt.Format(time.RFC3339),
		}
	})
	if err != nil {
		return nil, err
	}

	members := make([]domain.MemberResponse, 0, len(page))
	for _, m := range page {
		members = append(members, *memberResponse(org, m))
	}
	return &domain.ListMembersResponse{Members: members, PageInfo: info}, nil
}
