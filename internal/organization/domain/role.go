package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	RoleAdmin  = "Admin"
	RoleMember = "Member"
	RoleGuest  = "Guest"
)

const (
	maxRoleNameLength        = 100
	maxRoleDescriptionLength = 500
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

type seedRole struct {
	name        string
	description string
	color       string
}

var seedRoles = []seedRole{
	{name: RoleAdmin, description: "Organization administrator", color: "#FF0000"},
	{name: RoleMember, description: "Organization member", color: "#00FF00"},
	{name: RoleGuest, description: "Organization guest", color: "#0000FF"},
}

// IsSystemRoleName reports whether name belongs to a seeded role.
func IsSystemRoleName(name string) bool {
	for _, seed := range seedRoles {
		if seed.name == name {
			return true
		}
	}
	return false
}

// Role is a named set of permissions scoped to one organization.
type Role struct {
	ID             RoleID         `json:"id"`
	OrganizationID OrganizationID `json:"organization_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	Color          string         `json:"color,omitempty"`
	Permissions    []Permission   `json:"permissions"`
}

func newRole(orgID OrganizationID, name, description, color string) (Role, error) {
	name, description, color, err := normalizeRoleFields(name, description, color)
	if err != nil {
		return Role{}, err
	}
	return Role{
		ID:             NewRoleID(),
		OrganizationID: orgID,
		Name:           name,
		Description:    description,
		Color:          color,
		Permissions:    []Permission{},
	}, nil
}

func normalizeRoleFields(name, description, color string) (string, string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoleNameLength {
		return "", "", "", ErrInvalidName
	}
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxRoleDescriptionLength {
		return "", "", "", ErrInvalidDescription
	}
	color = strings.TrimSpace(color)
	if color != "" && !hexColorPattern.MatchString(color) {
		return "", "", "", ErrInvalidColor
	}
	return name, description, color, nil
}

// IsSystem reports whether the role is one of the seeded roles.
func (r Role) IsSystem() bool { return IsSystemRoleName(r.Name) }

// HasPermission reports whether the role grants name.
func (r Role) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p.Name == name {
			return true
		}
	}
	return false
}

// PermissionNames returns the granted permission names in insertion order.
func (r Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// AddPermission grants p. Returns false when it was already granted.
func (r *Role) AddPermission(p Permission) bool {
	if r.HasPermission(p.Name) {
		return false
	}
	r.Permissions = append(r.Permissions, p)
	return true
}

// RemovePermission revokes name. Returns false when it was not granted.
func (r *Role) RemovePermission(name string) bool {
	for i, p := range r.Permissions {
		if p.Name == name {
			r.Permissions = append(r.Permissions[:i], r.Permissions[i+1:]...)
			return true
		}
	}
	return false
}

// ClearPermissions revokes every permission.
func (r *Role) ClearPermissions() {
	r.Permissions = []Permission{}
}

func (r Role) clone() Role {
	perms := make([]Permission, len(r.Permissions))
	copy(perms, r.Permissions)
	r.Permissions = perms
	return r
}
