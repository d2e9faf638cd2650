package domain

import (
	"fmt"
	"time"
)

// Snapshot is the full persisted state of an organization.
type Snapshot struct {
	ID          OrganizationID
	Name        string
	Description string
	OwnerUserID UserID
	Active      bool
	LogoURL     string
	BannerURL   string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Members     []Member
	Roles       []Role
	Invitations []Invitation
}

// Snapshot exports the aggregate state for persistence.
func (o *Organization) Snapshot() Snapshot {
	return Snapshot{
		ID:          o.id,
		Name:        o.name,
		Description: o.description,
		OwnerUserID: o.ownerUserID,
		Active:      o.active,
		LogoURL:     o.logoURL,
		BannerURL:   o.bannerURL,
		Version:     o.version,
		CreatedAt:   o.createdAt,
		UpdatedAt:   o.updatedAt,
		Members:     o.Members(),
		Roles:       o.Roles(),
		Invitations: o.Invitations(),
	}
}

// Rehydrate rebuilds an organization from storage. It is the only way to
// reconstruct an existing aggregate and rejects graphs that were not loaded in
// full, since every invariant check depends on the complete child collections.
func Rehydrate(s Snapshot) (*Organization, error) {
	if s.ID.IsZero() {
		return nil, incomplete("missing id")
	}
	name, err := normalizeOrganizationName(s.Name)
	if err != nil {
		return nil, incomplete("invalid name")
	}
	if s.OwnerUserID.IsZero() {
		return nil, incomplete("missing owner")
	}

	org := &Organization{
		id:          s.ID,
		name:        name,
		description: s.Description,
		ownerUserID: s.OwnerUserID,
		active:      s.Active,
		logoURL:     s.LogoURL,
		bannerURL:   s.BannerURL,
		version:     s.Version,
		createdAt:   s.CreatedAt.UTC(),
		updatedAt:   s.UpdatedAt.UTC(),
	}

	roleNames := map[string]struct{}{}
	for _, role := range s.Roles {
		if role.ID.IsZero() || role.OrganizationID != s.ID {
			return nil, incomplete("foreign or unidentified role")
		}
		if _, dup := roleNames[role.Name]; dup || org.roleIndex(role.ID) >= 0 {
			return nil, incomplete("duplicate role " + role.Name)
		}
		roleNames[role.Name] = struct{}{}
		if role.Permissions == nil {
			role.Permissions = []Permission{}
		}
		org.roles = append(org.roles, role.clone())
	}
	for _, seed := range seedRoles {
		if _, ok := roleNames[seed.name]; !ok {
			return nil, incomplete("missing seed role " + seed.name)
		}
	}

	for _, member := range s.Members {
		if member.ID.IsZero() || member.UserID.IsZero() || member.OrganizationID != s.ID {
			return nil, incomplete("foreign or unidentified member")
		}
		if org.memberIndex(member.UserID) >= 0 {
			return nil, incomplete("duplicate member")
		}
		if len(member.RoleIDs) == 0 {
			return nil, incomplete("member without roles")
		}
		seen := map[RoleID]struct{}{}
		for _, roleID := range member.RoleIDs {
			if org.roleIndex(roleID) < 0 {
				return nil, incomplete("member references unknown role")
			}
			if _, dup := seen[roleID]; dup {
				return nil, incomplete("member holds duplicate role")
			}
			seen[roleID] = struct{}{}
		}
		org.members = append(org.members, member.clone())
	}

	admin, _ := org.roleByName(RoleAdmin)
	owner, ok := org.Member(s.OwnerUserID)
	if !ok || !owner.HasRole(admin.ID) {
		return nil, incomplete("owner is not an admin member")
	}

	for _, inv := range s.Invitations {
		if inv.ID.IsZero() || inv.OrganizationID != s.ID || !inv.Status.Valid() {
			return nil, incomplete("invalid invitation")
		}
		org.invitations = append(org.invitations, inv)
	}

	return org, nil
}

func incomplete(reason string) error {
	return fmt.Errorf("%w: %s", ErrIncompleteAggregate, reason)
}
