package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var errNilID = errors.New("nil id")

// OrganizationID identifies an organization aggregate.
type OrganizationID struct{ uuid.UUID }

// MemberID identifies a membership record inside one organization.
type MemberID struct{ uuid.UUID }

// RoleID identifies a role inside one organization.
type RoleID struct{ uuid.UUID }

// InvitationID identifies an invitation inside one organization.
type InvitationID struct{ uuid.UUID }

// UserID is the identity-provider identifier of a user.
type UserID struct{ uuid.UUID }

func NewOrganizationID() OrganizationID { return OrganizationID{uuid.New()} }
func NewMemberID() MemberID             { return MemberID{uuid.New()} }
func NewRoleID() RoleID                 { return RoleID{uuid.New()} }
func NewInvitationID() InvitationID     { return InvitationID{uuid.New()} }

func (id OrganizationID) IsZero() bool { return id.UUID == uuid.Nil }
func (id MemberID) IsZero() bool       { return id.UUID == uuid.Nil }
func (id RoleID) IsZero() bool         { return id.UUID == uuid.Nil }
func (id InvitationID) IsZero() bool   { return id.UUID == uuid.Nil }
func (id UserID) IsZero() bool         { return id.UUID == uuid.Nil }

func ParseOrganizationID(raw string) (OrganizationID, error) {
	parsed, err := parseID(raw)
	if err != nil {
		return OrganizationID{}, ErrInvalidOrganization
	}
	return OrganizationID{parsed}, nil
}

func ParseRoleID(raw string) (RoleID, error) {
	parsed, err := parseID(raw)
	if err != nil {
		return RoleID{}, ErrInvalidRole
	}
	return RoleID{parsed}, nil
}

func ParseInvitationID(raw string) (InvitationID, error) {
	parsed, err := parseID(raw)
	if err != nil {
		return InvitationID{}, ErrInvalidInvitation
	}
	return InvitationID{parsed}, nil
}

func ParseMemberID(raw string) (MemberID, error) {
	parsed, err := parseID(raw)
	if err != nil {
		return MemberID{}, ErrInvalidMember
	}
	return MemberID{parsed}, nil
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseID(raw)
	if err != nil {
		return UserID{}, ErrInvalidUser
	}
	return UserID{parsed}, nil
}

func parseID(raw string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, err
	}
	if parsed == uuid.Nil {
		return uuid.Nil, errNilID
	}
	return parsed, nil
}
