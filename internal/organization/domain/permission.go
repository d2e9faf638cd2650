package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	PermissionOrganizationManage = "organization.manage"
	PermissionOrganizationView   = "organization.view"
	PermissionMembersManage      = "members.manage"
	PermissionMembersView        = "members.view"
	PermissionRolesManage        = "roles.manage"
	PermissionRolesView          = "roles.view"
	PermissionInvitationsManage  = "invitations.manage"
	PermissionInvitationsView    = "invitations.view"
)

const maxPermissionNameLength = 100

// Permission is a named capability. The name is its identity.
type Permission struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewPermission validates and builds a permission value.
func NewPermission(name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxPermissionNameLength {
		return Permission{}, ErrInvalidPermission
	}
	return Permission{Name: name, Description: strings.TrimSpace(description)}, nil
}

var standardPermissions = []Permission{
	{Name: PermissionOrganizationManage, Description: "Manage organization settings"},
	{Name: PermissionOrganizationView, Description: "View organization details"},
	{Name: PermissionMembersManage, Description: "Manage organization members"},
	{Name: PermissionMembersView, Description: "View organization members"},
	{Name: PermissionRolesManage, Description: "Manage organization roles"},
	{Name: PermissionRolesView, Description: "View organization roles"},
	{Name: PermissionInvitationsManage, Description: "Manage organization invitations"},
	{Name: PermissionInvitationsView, Description: "View organization invitations"},
}

// StandardPermissions returns the built-in permission catalog.
func StandardPermissions() []Permission {
	out := make([]Permission, len(standardPermissions))
	copy(out, standardPermissions)
	return out
}

// LookupStandardPermission returns the catalog entry for name.
func LookupStandardPermission(name string) (Permission, bool) {
	for _, p := range standardPermissions {
		if p.Name == name {
			return p, true
		}
	}
	return Permission{}, false
}
