package service

import (
	"time"

	"github.com/smallbiznis/identity/internal/organization/domain"
)

func organizationResponse(org *domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:          org.ID().String(),
		Name:        org.Name(),
		Description: org.Description(),
		OwnerUserID: org.OwnerUserID().String(),
		IsActive:    org.IsActive(),
		LogoURL:     org.LogoURL(),
		BannerURL:   org.BannerURL(),
		Version:     org.Version(),
		CreatedAt:   org.CreatedAt(),
		UpdatedAt:   org.UpdatedAt(),
	}
}

func memberResponse(org *domain.Organization, m domain.Member) *domain.MemberResponse {
	roles := org.MemberRoles(m.UserID)
	out := make([]domain.RoleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleResponse(r))
	}
	return &domain.MemberResponse{
		ID:       m.ID.String(),
		UserID:   m.UserID.String(),
		Roles:    out,
		IsOwner:  org.IsOwner(m.UserID),
		JoinedAt: m.JoinedAt,
	}
}

func roleResponse(r domain.Role) domain.RoleResponse {
	return domain.RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		IsSystem:    r.IsSystem(),
		Permissions: r.PermissionNames(),
	}
}

func invitationResponse(inv domain.Invitation, now time.Time) *domain.InvitationResponse {
	return &domain.InvitationResponse{
		ID:        inv.ID.String(),
		Email:     inv.Email,
		RoleID:    inv.RoleID.String(),
		Status:    string(inv.Status),
		IsExpired: inv.IsExpired(now),
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}
