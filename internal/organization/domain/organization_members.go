package domain

import "time"

// AddMember adds userID with roleID. When userID is already a member the role
// is assigned to the existing membership instead.
func (o *Organization) AddMember(userID UserID, roleID RoleID, now time.Time) (Member, error) {
	if userID.IsZero() {
		return Member{}, ErrInvalidUser
	}
	if roleID.IsZero() {
		return Member{}, ErrInvalidRole
	}
	if o.roleIndex(roleID) < 0 {
		return Member{}, ErrRoleNotFound
	}

	if idx := o.memberIndex(userID); idx >= 0 {
		o.assignRole(idx, roleID, now)
		return o.members[idx].clone(), nil
	}

	member := newMember(o.id, userID, roleID, now)
	o.members = append(o.members, member)
	o.touch(now)
	o.record(MemberAdded{
		EventHeader: header(o.id, now),
		MemberID:    member.ID,
		UserID:      userID,
		RoleID:      roleID,
	})
	return member.clone(), nil
}

// RemoveMember removes userID. The owner can never be removed.
func (o *Organization) RemoveMember(userID UserID, now time.Time) error {
	if userID.IsZero() {
		return ErrInvalidUser
	}
	if o.ownerUserID == userID {
		return ErrOwnerCannotBeRemoved
	}
	idx := o.memberIndex(userID)
	if idx < 0 {
		return ErrMemberNotFound
	}

	member := o.members[idx]
	o.members = append(o.members[:idx], o.members[idx+1:]...)
	o.touch(now)
	o.record(MemberRemoved{
		EventHeader: header(o.id, now),
		MemberID:    member.ID,
		UserID:      userID,
	})
	return nil
}

// AssignRoleToMember grants roleID to an existing member. Assigning a role the
// member already holds is a no-op.
func (o *Organization) AssignRoleToMember(userID UserID, roleID RoleID, now time.Time) error {
	idx, err := o.memberForRoleChange(userID, roleID)
	if err != nil {
		return err
	}
	o.assignRole(idx, roleID, now)
	return nil
}

// RevokeRoleFromMember removes roleID from a member, who must keep at least one role.
func (o *Organization) RevokeRoleFromMember(userID UserID, roleID RoleID, now time.Time) error {
	idx, err := o.memberForRoleChange(userID, roleID)
	if err != nil {
		return err
	}

	member := &o.members[idx]
	if !member.HasRole(roleID) {
		return ErrRoleNotAssigned
	}
	if len(member.RoleIDs) == 1 {
		return ErrLastRoleCannotBeRevoked
	}
	if o.ownerUserID == userID {
		if admin, ok := o.roleByName(RoleAdmin); ok && admin.ID == roleID {
			return ErrOwnerMustRemainAdmin
		}
	}

	member.removeRole(roleID)
	o.touch(now)
	o.record(MemberRoleRevoked{
		EventHeader: header(o.id, now),
		MemberID:    member.ID,
		UserID:      userID,
		RoleID:      roleID,
	})
	return nil
}

func (o *Organization) memberForRoleChange(userID UserID, roleID RoleID) (int, error) {
	if userID.IsZero() {
		return -1, ErrInvalidUser
	}
	if roleID.IsZero() {
		return -1, ErrInvalidRole
	}
	if o.roleIndex(roleID) < 0 {
		return -1, ErrRoleNotFound
	}
	idx := o.memberIndex(userID)
	if idx < 0 {
		return -1, ErrMemberNotFound
	}
	return idx, nil
}

func (o *Organization) assignRole(idx int, roleID RoleID, now time.Time) bool {
	member := &o.members[idx]
	if !member.addRole(roleID) {
		return false
	}
	o.touch(now)
	o.record(MemberRoleAssigned{
		EventHeader: header(o.id, now),
		MemberID:    member.ID,
		UserID:      member.UserID,
		RoleID:      roleID,
	})
	return true
}

func (o *Organization) memberIndex(userID UserID) int {
	for i := range o.members {
		if o.members[i].UserID == userID {
			return i
		}
	}
	return -1
}
