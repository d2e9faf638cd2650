package service

import (
	"context"
	"time"

	"github.com/smallbiznis/identity/internal/organization/domain"
)

func (s *service) CreateRole(ctx context.Context, actor domain.UserID, orgID string, req domain.RoleRequest) (*domain.RoleResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}

	var roleID domain.RoleID
	org, err := s.mutate(ctx, "role.create", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionRolesManage); err != nil {
			return err
		}
		role, err := org.AddRole(req.Name, req.Description, req.Color, now)
		if err != nil {
			return err
		}
		roleID = role.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.roleResponseOf(org, roleID)
}

func (s *service) UpdateRole(ctx context.Context, actor domain.UserID, orgID string, roleID string, req domain.RoleRequest) (*domain.RoleResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseRoleID(roleID)
	if err != nil {
		return nil, err
	}

	org, err := s.mutate(ctx, "role.update", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionRolesManage); err != nil {
			return err
		}
		_, err := org.UpdateRole(target, req.Name, req.Description, req.Color, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.roleResponseOf(org, target)
}

func (s *service) DeleteRole(ctx context.Context, actor domain.UserID, orgID string, roleID string) error {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return err
	}
	target, err := domain.ParseRoleID(roleID)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, "role.delete", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionRolesManage); err != nil {
			return err
		}
		return org.RemoveRole(target, now)
	})
	return err
}

// UpdateRolePermissions replaces the role's permission set with names.
func (s *service) UpdateRolePermissions(ctx context.Context, actor domain.UserID, orgID string, roleID string, permissions []string) (*domain.RoleResponse, error) {
	id, err := parseTarget(actor, orgID)
	if err != nil {
		return nil, err
	}
	target, err := domain.ParseRoleID(roleID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolvePermissions(ctx, permissions)
	if err != nil {
		return nil, err
	}

	org, err := s.mutate(ctx, "role.update_permissions", id, func(org *domain.Organization, now time.Time) error {
		if err := authorize(org, actor, domain.PermissionRolesManage); err != nil {
			return err
		}
		return org.UpdateRolePermissions(target, resolved, now)
	})
	if err != nil {
		return nil, err
	}
	return s.roleResponseOf(org, target)
}

func (s *service) GetRole(ctx context.Context, actor domain.UserID, orgID string, roleID string) (*domain.RoleResponse, error) {
	target, err := domain.ParseRoleID(roleID)
	if err != nil {
		return nil, err
	}
	org, err := s.load(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	return s.roleResponseOf(org, target)
}

func (s *service) ListRoles(ctx context.Context, actor domain.UserID, orgID string) ([]domain.RoleResponse, error) {
	org, err := s.load(ctx, actor, orgID)
	if err != nil {
		return nil, err
	}
	roles := org.Roles()
	resp := make([]domain.RoleResponse, 0, len(roles))
	for _, r := range roles {
		resp = append(resp, roleResponse(r))
	}
	return resp, nil
}

func (s *service) roleResponseOf(org *domain.Organization, roleID domain.RoleID) (*domain.RoleResponse, error) {
	role, ok := org.Role(roleID)
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	resp := roleResponse(role)
	return &resp, nil
}
