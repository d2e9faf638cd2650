package domain

import (
	"crypto/rand"
	"encoding/base64"
	"net/mail"
	"strings"
	"time"
)

type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "PENDING"
	InvitationStatusAccepted InvitationStatus = "ACCEPTED"
	InvitationStatusRejected InvitationStatus = "REJECTED"
	InvitationStatusExpired  InvitationStatus = "EXPIRED"
)

// DefaultInvitationTTL is applied when no explicit expiry is requested.
const DefaultInvitationTTL = 7 * 24 * time.Hour

const invitationTokenBytes = 32

// Valid reports whether s is a known status.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusRejected, InvitationStatusExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition may leave s.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationStatusPending
}

// Invitation is a time-bounded offer of membership.
type Invitation struct {
	ID             InvitationID     `json:"id"`
	OrganizationID OrganizationID   `json:"organization_id"`
	Email          string           `json:"email"`
	Token          string           `json:"-"`
	RoleID         RoleID           `json:"role_id"`
	Status         InvitationStatus `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	CreatedAt      time.Time        `json:"created_at"`
}

func newInvitation(orgID OrganizationID, email string, roleID RoleID, expiresAt, now time.Time) (Invitation, error) {
	token, err := newInvitationToken()
	if err != nil {
		return Invitation{}, err
	}
	return Invitation{
		ID:             NewInvitationID(),
		OrganizationID: orgID,
		Email:          email,
		Token:          token,
		RoleID:         roleID,
		Status:         InvitationStatusPending,
		ExpiresAt:      expiresAt.UTC(),
		CreatedAt:      now.UTC(),
	}, nil
}

// NormalizeEmail validates raw and returns its canonical lower-case form.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func newInvitationToken() (string, error) {
	buf := make([]byte, invitationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsExpired reports whether the invitation is expired at now.
// It is evaluated lazily and does not change the stored status.
func (i Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationStatusExpired || now.After(i.ExpiresAt)
}

// IsPending reports whether the invitation can still be accepted or rejected at now.
func (i Invitation) IsPending(now time.Time) bool {
	return i.Status == InvitationStatusPending && !i.IsExpired(now)
}

// MarkAsExpired moves a pending invitation to Expired. Returns false otherwise.
func (i *Invitation) MarkAsExpired() bool {
	if i.Status != InvitationStatusPending {
		return false
	}
	i.Status = InvitationStatusExpired
	return true
}

func (i Invitation) checkResolvable(now time.Time) error {
	if i.Status == InvitationStatusExpired {
		return ErrInvitationExpired
	}
	if i.Status.Terminal() {
		return ErrInvitationAlreadyResolved
	}
	if i.IsExpired(now) {
		return ErrInvitationExpired
	}
	return nil
}
