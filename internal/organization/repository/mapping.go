package repository

import (
	"encoding/json"
	"fmt"

	"github.com/smallbiznis/identity/internal/organization/domain"
	"gorm.io/datatypes"
)

func toSnapshot(org organizationRow, roles []roleRow, members []memberRow, invitations []invitationRow) (domain.Snapshot, error) {
	id, err := domain.ParseOrganizationID(org.ID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("organization id %q: %w", org.ID, err)
	}
	owner, err := domain.ParseUserID(org.OwnerUserID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("owner id %q: %w", org.OwnerUserID, err)
	}

	snap := domain.Snapshot{
		ID:          id,
		Name:        org.Name,
		Description: org.Description,
		OwnerUserID: owner,
		Active:      org.IsActive,
		LogoURL:     org.LogoURL,
		BannerURL:   org.BannerURL,
		Version:     org.Version,
		CreatedAt:   org.CreatedAt.UTC(),
		UpdatedAt:   org.UpdatedAt.UTC(),
	}

	for _, row := range roles {
		roleID, err := domain.ParseRoleID(row.ID)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("role id %q: %w", row.ID, err)
		}
		var perms []domain.Permission
		if len(row.Permissions) > 0 {
			if err := json.Unmarshal(row.Permissions, &perms); err != nil {
				return domain.Snapshot{}, fmt.Errorf("role %s permissions: %w", row.ID, err)
			}
		}
		if perms == nil {
			perms = []domain.Permission{}
		}
		snap.Roles = append(snap.Roles, domain.Role{
			ID:             roleID,
			OrganizationID: id,
			Name:           row.Name,
			Description:    row.Description,
			Color:          row.Color,
			Permissions:    perms,
		})
	}

	for _, row := range members {
		memberID, err := domain.ParseMemberID(row.ID)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("member id %q: %w", row.ID, err)
		}
		userID, err := domain.ParseUserID(row.UserID)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("member user id %q: %w", row.UserID, err)
		}
		var rawRoleIDs []string
		if err := json.Unmarshal(row.RoleIDs, &rawRoleIDs); err != nil {
			return domain.Snapshot{}, fmt.Errorf("member %s roles: %w", row.ID, err)
		}
		roleIDs := make([]domain.RoleID, 0, len(rawRoleIDs))
		for _, raw := range rawRoleIDs {
			roleID, err := domain.ParseRoleID(raw)
			if err != nil {
				return domain.Snapshot{}, fmt.Errorf("member %s role id %q: %w", row.ID, raw, err)
			}
			roleIDs = append(roleIDs, roleID)
		}
		snap.Members = append(snap.Members, domain.Member{
			ID:             memberID,
			UserID:         userID,
			OrganizationID: id,
			RoleIDs:        roleIDs,
			JoinedAt:       row.JoinedAt.UTC(),
		})
	}

	for _, row := range invitations {
		invitationID, err := domain.ParseInvitationID(row.ID)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("invitation id %q: %w", row.ID, err)
		}
		roleID, err := domain.ParseRoleID(row.RoleID)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("invitation %s role id %q: %w", row.ID, row.RoleID, err)
		}
		snap.Invitations = append(snap.Invitations, domain.Invitation{
			ID:             invitationID,
			OrganizationID: id,
			Email:          row.Email,
			Token:          row.Token,
			RoleID:         roleID,
			Status:         domain.InvitationStatus(row.Status),
			ExpiresAt:      row.ExpiresAt.UTC(),
			CreatedAt:      row.CreatedAt.UTC(),
		})
	}

	return snap, nil
}

func toRoleRows(snap domain.Snapshot) ([]roleRow, error) {
	rows := make([]roleRow, 0, len(snap.Roles))
	for i, role := range snap.Roles {
		perms, err := json.Marshal(role.Permissions)
		if err != nil {
			return nil, err
		}
		rows = append(rows, roleRow{
			ID:          role.ID.String(),
			OrgID:       snap.ID.String(),
			Name:        role.Name,
			Description: role.Description,
			Color:       role.Color,
			Permissions: datatypes.JSON(perms),
			Position:    i,
		})
	}
	return rows, nil
}

func toMemberRows(snap domain.Snapshot) ([]memberRow, error) {
	rows := make([]memberRow, 0, len(snap.Members))
	for i, member := range snap.Members {
		roleIDs := make([]string, 0, len(member.RoleIDs))
		for _, id := range member.RoleIDs {
			roleIDs = append(roleIDs, id.String())
		}
		raw, err := json.Marshal(roleIDs)
		if err != nil {
			return nil, err
		}
		rows = append(rows, memberRow{
			ID:       member.ID.String(),
			OrgID:    snap.ID.String(),
			UserID:   member.UserID.String(),
			RoleIDs:  datatypes.JSON(raw),
			JoinedAt: member.JoinedAt.UTC(),
			Position: i,
		})
	}
	return rows, nil
}

func toInvitationRows(snap domain.Snapshot) []invitationRow {
	rows := make([]invitationRow, 0, len(snap.Invitations))
	for i, inv := range snap.Invitations {
		rows = append(rows, invitationRow{
			ID:        inv.ID.String(),
			OrgID:     snap.ID.String(),
			Email:     inv.Email,
			Token:     inv.Token,
			RoleID:    inv.RoleID.String(),
			Status:    string(inv.Status),
			ExpiresAt: inv.ExpiresAt.UTC(),
			CreatedAt: inv.CreatedAt.UTC(),
			Position:  i,
		})
	}
	return rows
}
