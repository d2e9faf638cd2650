package domain

import (
	"sort"
	"time"
)

// AccessFacts is the plain view of a user's access inside one organization,
// handed to the identity provider for token enrichment.
type AccessFacts struct {
	OrganizationID   OrganizationID `json:"organization_id"`
	OrganizationName string         `json:"organization_name"`
	IsOwner          bool           `json:"is_owner"`
	Roles            []string       `json:"roles"`
	Permissions      []string       `json:"permissions"`
}

// Members returns copies of all memberships.
func (o *Organization) Members() []Member {
	out := make([]Member, 0, len(o.members))
	for _, m := range o.members {
		out = append(out, m.clone())
	}
	return out
}

// Roles returns copies of all roles.
func (o *Organization) Roles() []Role {
	out := make([]Role, 0, len(o.roles))
	for _, r := range o.roles {
		out = append(out, r.clone())
	}
	return out
}

// Invitations returns copies of all invitations.
func (o *Organization) Invitations() []Invitation {
	out := make([]Invitation, len(o.invitations))
	copy(out, o.invitations)
	return out
}

func (o *Organization) Member(userID UserID) (Member, bool) {
	idx := o.memberIndex(userID)
	if idx < 0 {
		return Member{}, false
	}
	return o.members[idx].clone(), true
}

func (o *Organization) Role(roleID RoleID) (Role, bool) {
	idx := o.roleIndex(roleID)
	if idx < 0 {
		return Role{}, false
	}
	return o.roles[idx].clone(), true
}

func (o *Organization) RoleByName(name string) (Role, bool) {
	role, ok := o.roleByName(name)
	if !ok {
		return Role{}, false
	}
	return role.clone(), true
}

func (o *Organization) Invitation(invitationID InvitationID) (Invitation, bool) {
	idx := o.invitationIndex(invitationID)
	if idx < 0 {
		return Invitation{}, false
	}
	return o.invitations[idx], true
}

func (o *Organization) InvitationByToken(token string) (Invitation, bool) {
	if token == "" {
		return Invitation{}, false
	}
	for _, inv := range o.invitations {
		if inv.Token == token {
			return inv, true
		}
	}
	return Invitation{}, false
}

// PendingInvitations returns invitations that can still be resolved at now.
func (o *Organization) PendingInvitations(now time.Time) []Invitation {
	var out []Invitation
	for _, inv := range o.invitations {
		if inv.IsPending(now) {
			out = append(out, inv)
		}
	}
	return out
}

// MemberRoles resolves a member's role ids against the role collection.
func (o *Organization) MemberRoles(userID UserID) []Role {
	idx := o.memberIndex(userID)
	if idx < 0 {
		return nil
	}
	roles := make([]Role, 0, len(o.members[idx].RoleIDs))
	for _, roleID := range o.members[idx].RoleIDs {
		if role, ok := o.Role(roleID); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// MemberPermissions returns the sorted union of permissions granted through a member's roles.
func (o *Organization) MemberPermissions(userID UserID) []string {
	seen := map[string]struct{}{}
	for _, role := range o.MemberRoles(userID) {
		for _, p := range role.Permissions {
			seen[p.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasPermission reports whether userID may exercise permission. The owner and
// holders of the Admin role are granted everything.
func (o *Organization) HasPermission(userID UserID, permission string) bool {
	if userID.IsZero() {
		return false
	}
	if o.ownerUserID == userID {
		return true
	}
	for _, role := range o.MemberRoles(userID) {
		if role.Name == RoleAdmin || role.HasPermission(permission) {
			return true
		}
	}
	return false
}

// AccessFacts returns the structured access view of userID, or false when the
// user has no access.
func (o *Organization) AccessFacts(userID UserID) (AccessFacts, bool) {
	if !o.HasAccess(userID) {
		return AccessFacts{}, false
	}
	roles := o.MemberRoles(userID)
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return AccessFacts{
		OrganizationID:   o.id,
		OrganizationName: o.name,
		IsOwner:          o.IsOwner(userID),
		Roles:            names,
		Permissions:      o.MemberPermissions(userID),
	}, true
}

// AffectedUsers lists, without duplicates, the users whose access facts may
// differ after events. Role and organization level changes touch every member.
func (o *Organization) AffectedUsers(events []Event) []UserID {
	var out []UserID
	seen := map[UserID]struct{}{}
	add := func(u UserID) {
		if u.IsZero() {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	everyone := func() {
		for _, m := range o.members {
			add(m.UserID)
		}
	}

	for _, evt := range events {
		switch e := evt.(type) {
		case MemberAdded:
			add(e.UserID)
		case MemberRemoved:
			add(e.UserID)
		case MemberRoleAssigned:
			add(e.UserID)
		case MemberRoleRevoked:
			add(e.UserID)
		case InvitationAccepted:
			add(e.UserID)
		case OrganizationCreated:
			add(e.OwnerUserID)
		case RoleUpdated, RoleDeleted, RolePermissionsUpdated, OrganizationUpdated,
			OrganizationActivated, OrganizationDeactivated:
			everyone()
		}
	}
	return out
}
