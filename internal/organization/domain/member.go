package domain

import "time"

// Member is a user's membership inside one organization.
type Member struct {
	ID             MemberID       `json:"id"`
	UserID         UserID         `json:"user_id"`
	OrganizationID OrganizationID `json:"organization_id"`
	RoleIDs        []RoleID       `json:"role_ids"`
	JoinedAt       time.Time      `json:"joined_at"`
}

func newMember(orgID OrganizationID, userID UserID, roleID RoleID, now time.Time) Member {
	return Member{
		ID:             NewMemberID(),
		UserID:         userID,
		OrganizationID: orgID,
		RoleIDs:        []RoleID{roleID},
		JoinedAt:       now.UTC(),
	}
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID RoleID) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func (m *Member) addRole(roleID RoleID) bool {
	if m.HasRole(roleID) {
		return false
	}
	m.RoleIDs = append(m.RoleIDs, roleID)
	return true
}

func (m *Member) removeRole(roleID RoleID) {
	for i, id := range m.RoleIDs {
		if id == roleID {
			m.RoleIDs = append(m.RoleIDs[:i], m.RoleIDs[i+1:]...)
			return
		}
	}
}

func (m Member) clone() Member {
	ids := make([]RoleID, len(m.RoleIDs))
	copy(ids, m.RoleIDs)
	m.RoleIDs = ids
	return m
}
