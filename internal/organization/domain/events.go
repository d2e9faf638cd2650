package domain

import "time"

const (
	EventOrganizationCreated       = "organization.created"
	EventOrganizationUpdated       = "organization.updated"
	EventOrganizationActivated     = "organization.activated"
	EventOrganizationDeactivated   = "organization.deactivated"
	EventOrganizationLogoUpdated   = "organization.logo_updated"
	EventOrganizationBannerUpdated = "organization.banner_updated"
	EventMemberAdded               = "organization.member_added"
	EventMemberRemoved             = "organization.member_removed"
	EventMemberRoleAssigned        = "organization.member_role_assigned"
	EventMemberRoleRevoked         = "organization.member_role_revoked"
	EventRoleCreated               = "organization.role_created"
	EventRoleUpdated               = "organization.role_updated"
	EventRoleDeleted               = "organization.role_deleted"
	EventRolePermissionsUpdated    = "organization.role_permissions_updated"
	EventInvitationCreated         = "organization.invitation_created"
	EventInvitationAccepted        = "organization.invitation_accepted"
	EventInvitationRejected        = "organization.invitation_rejected"
	EventInvitationExpired         = "organization.invitation_expired"
)

// Event is a notification emitted by the aggregate for external consumers.
// The aggregate never reads its own events back.
type Event interface {
	EventType() string
	AggregateID() OrganizationID
	OccurredAt() time.Time
}

// EventHeader carries the fields shared by every event.
type EventHeader struct {
	OrganizationID OrganizationID `json:"organization_id"`
	At             time.Time      `json:"occurred_at"`
}

func header(orgID OrganizationID, now time.Time) EventHeader {
	return EventHeader{OrganizationID: orgID, At: now.UTC()}
}

func (h EventHeader) AggregateID() OrganizationID { return h.OrganizationID }
func (h EventHeader) OccurredAt() time.Time       { return h.At }

type OrganizationCreated struct {
	EventHeader
	Name        string `json:"name"`
	OwnerUserID UserID `json:"owner_user_id"`
}

type OrganizationUpdated struct {
	EventHeader
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type OrganizationActivated struct{ EventHeader }

type OrganizationDeactivated struct{ EventHeader }

type OrganizationLogoUpdated struct {
	EventHeader
	LogoURL string `json:"logo_url"`
}

type OrganizationBannerUpdated struct {
	EventHeader
	BannerURL string `json:"banner_url"`
}

type MemberAdded struct {
	EventHeader
	MemberID MemberID `json:"member_id"`
	UserID   UserID   `json:"user_id"`
	RoleID   RoleID   `json:"role_id"`
}

type MemberRemoved struct {
	EventHeader
	MemberID MemberID `json:"member_id"`
	UserID   UserID   `json:"user_id"`
}

type MemberRoleAssigned struct {
	EventHeader
	MemberID MemberID `json:"member_id"`
	UserID   UserID   `json:"user_id"`
	RoleID   RoleID   `json:"role_id"`
}

type MemberRoleRevoked struct {
	EventHeader
	MemberID MemberID `json:"member_id"`
	UserID   UserID   `json:"user_id"`
	RoleID   RoleID   `json:"role_id"`
}

type RoleCreated struct {
	EventHeader
	RoleID RoleID `json:"role_id"`
	Name   string `json:"name"`
}

type RoleUpdated struct {
	EventHeader
	RoleID      RoleID `json:"role_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

type RoleDeleted struct {
	EventHeader
	RoleID RoleID `json:"role_id"`
	Name   string `json:"name"`
}

type RolePermissionsUpdated struct {
	EventHeader
	RoleID      RoleID   `json:"role_id"`
	Permissions []string `json:"permissions"`
}

type InvitationCreated struct {
	EventHeader
	InvitationID InvitationID `json:"invitation_id"`
	Email        string       `json:"email"`
	RoleID       RoleID       `json:"role_id"`
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

type InvitationAccepted struct {
	EventHeader
	InvitationID InvitationID `json:"invitation_id"`
	UserID       UserID       `json:"user_id"`
	RoleID       RoleID       `json:"role_id"`
}

type InvitationRejected struct {
	EventHeader
	InvitationID InvitationID `json:"invitation_id"`
}

type InvitationExpired struct {
	EventHeader
	InvitationID InvitationID `json:"invitation_id"`
}

func (OrganizationCreated) EventType() string       { return EventOrganizationCreated }
func (OrganizationUpdated) EventType() string       { return EventOrganizationUpdated }
func (OrganizationActivated) EventType() string     { return EventOrganizationActivated }
func (OrganizationDeactivated) EventType() string   { return EventOrganizationDeactivated }
func (OrganizationLogoUpdated) EventType() string   { return EventOrganizationLogoUpdated }
func (OrganizationBannerUpdated) EventType() string { return EventOrganizationBannerUpdated }
func (MemberAdded) EventType() string               { return EventMemberAdded }
func (MemberRemoved) EventType() string             { return EventMemberRemoved }
func (MemberRoleAssigned) EventType() string        { return EventMemberRoleAssigned }
func (MemberRoleRevoked) EventType() string         { return EventMemberRoleRevoked }
func (RoleCreated) EventType() string               { return EventRoleCreated }
func (RoleUpdated) EventType() string               { return EventRoleUpdated }
func (RoleDeleted) EventType() string               { return EventRoleDeleted }
func (RolePermissionsUpdated) EventType() string    { return EventRolePermissionsUpdated }
func (InvitationCreated) EventType() string         { return EventInvitationCreated }
func (InvitationAccepted) EventType() string        { return EventInvitationAccepted }
func (InvitationRejected) EventType() string        { return EventInvitationRejected }
func (InvitationExpired) EventType() string         { return EventInvitationExpired }
