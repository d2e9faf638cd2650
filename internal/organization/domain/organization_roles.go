package domain

import (
	"slices"
	"time"
)

// AddRole creates a role. Names are unique within the organization (exact match).
func (o *Organization) AddRole(name, description, color string, now time.Time) (Role, error) {
	role, err := newRole(o.id, name, description, color)
	if err != nil {
		return Role{}, err
	}
	if _, exists := o.roleByName(role.Name); exists {
		return Role{}, ErrDuplicateRoleName
	}

	o.roles = append(o.roles, role)
	o.touch(now)
	o.record(RoleCreated{
		EventHeader: header(o.id, now),
		RoleID:      role.ID,
		Name:        role.Name,
	})
	return role.clone(), nil
}

// RemoveRole deletes an unused, non-seeded role.
func (o *Organization) RemoveRole(roleID RoleID, now time.Time) error {
	if roleID.IsZero() {
		return ErrInvalidRole
	}
	idx := o.roleIndex(roleID)
	if idx < 0 {
		return ErrRoleNotFound
	}
	role := o.roles[idx]
	for _, member := range o.members {
		if member.HasRole(roleID) {
			return ErrRoleInUse
		}
	}
	if role.IsSystem() {
		return ErrSystemRoleImmutable
	}

	o.roles = append(o.roles[:idx], o.roles[idx+1:]...)
	o.touch(now)
	o.record(RoleDeleted{
		EventHeader: header(o.id, now),
		RoleID:      roleID,
		Name:        role.Name,
	})
	return nil
}

// UpdateRole changes a role's presentation. Seeded roles keep their names.
func (o *Organization) UpdateRole(roleID RoleID, name, description, color string, now time.Time) (Role, error) {
	if roleID.IsZero() {
		return Role{}, ErrInvalidRole
	}
	name, description, color, err := normalizeRoleFields(name, description, color)
	if err != nil {
		return Role{}, err
	}
	idx := o.roleIndex(roleID)
	if idx < 0 {
		return Role{}, ErrRoleNotFound
	}
	role := &o.roles[idx]
	if role.Name != name {
		if role.IsSystem() {
			return Role{}, ErrSystemRoleImmutable
		}
		if _, exists := o.roleByName(name); exists {
			return Role{}, ErrDuplicateRoleName
		}
	}
	if role.Name == name && role.Description == description && role.Color == color {
		return role.clone(), nil
	}

	role.Name = name
	role.Description = description
	role.Color = color
	o.touch(now)
	o.record(RoleUpdated{
		EventHeader: header(o.id, now),
		RoleID:      roleID,
		Name:        name,
		Description: description,
		Color:       color,
	})
	return role.clone(), nil
}

// GrantPermission adds p to a role. Already granted is a no-op.
func (o *Organization) GrantPermission(roleID RoleID, p Permission, now time.Time) error {
	role, err := o.mutableRole(roleID)
	if err != nil {
		return err
	}
	p, err = NewPermission(p.Name, p.Description)
	if err != nil {
		return err
	}
	if role.AddPermission(p) {
		o.recordPermissions(role, now)
	}
	return nil
}

// RevokePermission removes name from a role. Not granted is a no-op.
func (o *Organization) RevokePermission(roleID RoleID, name string, now time.Time) error {
	role, err := o.mutableRole(roleID)
	if err != nil {
		return err
	}
	if role.RemovePermission(name) {
		o.recordPermissions(role, now)
	}
	return nil
}

// UpdateRolePermissions replaces the permission set of a role.
func (o *Organization) UpdateRolePermissions(roleID RoleID, permissions []Permission, now time.Time) error {
	role, err := o.mutableRole(roleID)
	if err != nil {
		return err
	}
	normalized := make([]Permission, 0, len(permissions))
	for _, p := range permissions {
		p, err := NewPermission(p.Name, p.Description)
		if err != nil {
			return err
		}
		normalized = append(normalized, p)
	}

	before := role.PermissionNames()
	role.ClearPermissions()
	for _, p := range normalized {
		role.AddPermission(p)
	}
	if !slices.Equal(before, role.PermissionNames()) {
		o.recordPermissions(role, now)
	}
	return nil
}

func (o *Organization) mutableRole(roleID RoleID) (*Role, error) {
	if roleID.IsZero() {
		return nil, ErrInvalidRole
	}
	idx := o.roleIndex(roleID)
	if idx < 0 {
		return nil, ErrRoleNotFound
	}
	return &o.roles[idx], nil
}

func (o *Organization) recordPermissions(role *Role, now time.Time) {
	o.touch(now)
	o.record(RolePermissionsUpdated{
		EventHeader: header(o.id, now),
		RoleID:      role.ID,
		Permissions: role.PermissionNames(),
	})
}

func (o *Organization) roleIndex(roleID RoleID) int {
	for i := range o.roles {
		if o.roles[i].ID == roleID {
			return i
		}
	}
	return -1
}

func (o *Organization) roleByName(name string) (Role, bool) {
	for _, role := range o.roles {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}
