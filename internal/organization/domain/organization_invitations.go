package domain

import "time"

// CreateInvitation offers membership with roleID to email. A zero expiresAt
// applies DefaultInvitationTTL. An expiresAt already in the past is stored as
// given and the invitation can never be accepted.
func (o *Organization) CreateInvitation(email string, roleID RoleID, expiresAt time.Time, now time.Time) (Invitation, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Invitation{}, err
	}
	if roleID.IsZero() {
		return Invitation{}, ErrInvalidRole
	}
	if o.roleIndex(roleID) < 0 {
		return Invitation{}, ErrRoleNotFound
	}
	for _, existing := range o.invitations {
		if existing.Email == email && !existing.IsExpired(now) {
			return Invitation{}, ErrDuplicateInvitation
		}
	}
	if expiresAt.IsZero() {
		expiresAt = now.Add(DefaultInvitationTTL)
	}

	invitation, err := newInvitation(o.id, email, roleID, expiresAt, now)
	if err != nil {
		return Invitation{}, err
	}
	o.invitations = append(o.invitations, invitation)
	o.touch(now)
	o.record(InvitationCreated{
		EventHeader:  header(o.id, now),
		InvitationID: invitation.ID,
		Email:        email,
		RoleID:       roleID,
		Token:        invitation.Token,
		ExpiresAt:    invitation.ExpiresAt,
	})
	return invitation, nil
}

// AcceptInvitation resolves a pending invitation and grants its role to userID,
// creating the membership when needed. Both happen or neither does.
func (o *Organization) AcceptInvitation(invitationID InvitationID, userID UserID, now time.Time) (Member, error) {
	if invitationID.IsZero() {
		return Member{}, ErrInvalidInvitation
	}
	if userID.IsZero() {
		return Member{}, ErrInvalidUser
	}
	idx := o.invitationIndex(invitationID)
	if idx < 0 {
		return Member{}, ErrInvitationNotFound
	}
	invitation := &o.invitations[idx]
	if err := invitation.checkResolvable(now); err != nil {
		return Member{}, err
	}
	if o.roleIndex(invitation.RoleID) < 0 {
		return Member{}, ErrRoleNotFound
	}

	invitation.Status = InvitationStatusAccepted
	o.touch(now)
	o.record(InvitationAccepted{
		EventHeader:  header(o.id, now),
		InvitationID: invitation.ID,
		UserID:       userID,
		RoleID:       invitation.RoleID,
	})

	if memberIdx := o.memberIndex(userID); memberIdx >= 0 {
		o.assignRole(memberIdx, invitation.RoleID, now)
		return o.members[memberIdx].clone(), nil
	}

	member := newMember(o.id, userID, invitation.RoleID, now)
	o.members = append(o.members, member)
	o.record(MemberAdded{
		EventHeader: header(o.id, now),
		MemberID:    member.ID,
		UserID:      userID,
		RoleID:      invitation.RoleID,
	})
	return member.clone(), nil
}

// RejectInvitation resolves a pending invitation as rejected.
func (o *Organization) RejectInvitation(invitationID InvitationID, now time.Time) error {
	if invitationID.IsZero() {
		return ErrInvalidInvitation
	}
	idx := o.invitationIndex(invitationID)
	if idx < 0 {
		return ErrInvitationNotFound
	}
	invitation := &o.invitations[idx]
	if err := invitation.checkResolvable(now); err != nil {
		return err
	}

	invitation.Status = InvitationStatusRejected
	o.touch(now)
	o.record(InvitationRejected{
		EventHeader:  header(o.id, now),
		InvitationID: invitation.ID,
	})
	return nil
}

// ExpireInvitation applies the explicit Pending to Expired transition to one
// invitation, regardless of its deadline. Non-pending invitations are left as is.
func (o *Organization) ExpireInvitation(invitationID InvitationID, now time.Time) error {
	if invitationID.IsZero() {
		return ErrInvalidInvitation
	}
	idx := o.invitationIndex(invitationID)
	if idx < 0 {
		return ErrInvitationNotFound
	}
	o.markExpired(idx, now)
	return nil
}

// ExpireInvitations transitions every pending invitation whose deadline has
// passed. It returns the ids that changed.
func (o *Organization) ExpireInvitations(now time.Time) []InvitationID {
	var expired []InvitationID
	for i := range o.invitations {
		inv := o.invitations[i]
		if inv.Status != InvitationStatusPending || !now.After(inv.ExpiresAt) {
			continue
		}
		if o.markExpired(i, now) {
			expired = append(expired, inv.ID)
		}
	}
	return expired
}

func (o *Organization) markExpired(idx int, now time.Time) bool {
	invitation := &o.invitations[idx]
	if !invitation.MarkAsExpired() {
		return false
	}
	o.touch(now)
	o.record(InvitationExpired{
		EventHeader:  header(o.id, now),
		InvitationID: invitation.ID,
	})
	return true
}

func (o *Organization) invitationIndex(invitationID InvitationID) int {
	for i := range o.invitations {
		if o.invitations[i].ID == invitationID {
			return i
		}
	}
	return -1
}
