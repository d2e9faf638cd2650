package domain

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxOrganizationNameLength        = 100
	maxOrganizationDescriptionLength = 1000
)

// Organization is the consistency boundary owning members, roles and invitations.
// Every mutation goes through its methods; callers only ever see copies of children.
type Organization struct {
	id          OrganizationID
	name        string
	description string
	ownerUserID UserID
	active      bool
	logoURL     string
	bannerURL   string
	members     []Member
	roles       []Role
	invitations []Invitation
	version     int64
	createdAt   time.Time
	updatedAt   time.Time

	events []Event
}

// Create builds a new organization with the seed roles and the owner as its first member.
func Create(name string, ownerUserID UserID, description string, now time.Time) (*Organization, error) {
	name, err := normalizeOrganizationName(name)
	if err != nil {
		return nil, err
	}
	description, err = normalizeOrganizationDescription(description)
	if err != nil {
		return nil, err
	}
	if ownerUserID.IsZero() {
		return nil, ErrInvalidUser
	}

	now = now.UTC()
	org := &Organization{
		id:          NewOrganizationID(),
		name:        name,
		description: description,
		ownerUserID: ownerUserID,
		active:      true,
		createdAt:   now,
		updatedAt:   now,
	}

	for _, seed := range seedRoles {
		role, err := newRole(org.id, seed.name, seed.description, seed.color)
		if err != nil {
			return nil, err
		}
		org.roles = append(org.roles, role)
	}

	admin, _ := org.roleByName(RoleAdmin)
	org.members = append(org.members, newMember(org.id, ownerUserID, admin.ID, now))

	org.record(OrganizationCreated{
		EventHeader: header(org.id, now),
		Name:        name,
		OwnerUserID: ownerUserID,
	})
	return org, nil
}

func (o *Organization) ID() OrganizationID    { return o.id }
func (o *Organization) Name() string          { return o.name }
func (o *Organization) Description() string   { return o.description }
func (o *Organization) OwnerUserID() UserID   { return o.ownerUserID }
func (o *Organization) IsActive() bool        { return o.active }
func (o *Organization) LogoURL() string       { return o.logoURL }
func (o *Organization) BannerURL() string     { return o.bannerURL }
func (o *Organization) Version() int64        { return o.version }
func (o *Organization) CreatedAt() time.Time  { return o.createdAt }
func (o *Organization) UpdatedAt() time.Time  { return o.updatedAt }
func (o *Organization) IsOwner(u UserID) bool { return !u.IsZero() && o.ownerUserID == u }

// Update replaces name and description.
func (o *Organization) Update(name, description string, now time.Time) error {
	name, err := normalizeOrganizationName(name)
	if err != nil {
		return err
	}
	description, err = normalizeOrganizationDescription(description)
	if err != nil {
		return err
	}

	o.name = name
	o.description = description
	o.touch(now)
	o.record(OrganizationUpdated{
		EventHeader: header(o.id, now),
		Name:        name,
		Description: description,
	})
	return nil
}

// UpdateLogo sets or clears the logo URL. Unchanged values are a no-op.
func (o *Organization) UpdateLogo(rawURL string, now time.Time) error {
	logoURL, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	if logoURL == o.logoURL {
		return nil
	}
	o.logoURL = logoURL
	o.touch(now)
	o.record(OrganizationLogoUpdated{EventHeader: header(o.id, now), LogoURL: logoURL})
	return nil
}

// UpdateBanner sets or clears the banner URL. Unchanged values are a no-op.
func (o *Organization) UpdateBanner(rawURL string, now time.Time) error {
	bannerURL, err := normalizeURL(rawURL)
	if err != nil {
		return err
	}
	if bannerURL == o.bannerURL {
		return nil
	}
	o.bannerURL = bannerURL
	o.touch(now)
	o.record(OrganizationBannerUpdated{EventHeader: header(o.id, now), BannerURL: bannerURL})
	return nil
}

// Activate marks the organization active. Already active is a no-op.
func (o *Organization) Activate(now time.Time) {
	if o.active {
		return
	}
	o.active = true
	o.touch(now)
	o.record(OrganizationActivated{EventHeader: header(o.id, now)})
}

// Deactivate marks the organization inactive. Already inactive is a no-op.
func (o *Organization) Deactivate(now time.Time) {
	if !o.active {
		return
	}
	o.active = false
	o.touch(now)
	o.record(OrganizationDeactivated{EventHeader: header(o.id, now)})
}

// HasAccess reports whether userID is the owner or a current member.
func (o *Organization) HasAccess(userID UserID) bool {
	if userID.IsZero() {
		return false
	}
	if o.ownerUserID == userID {
		return true
	}
	return o.memberIndex(userID) >= 0
}

// PendingEvents returns the events recorded since the last persist.
func (o *Organization) PendingEvents() []Event {
	out := make([]Event, len(o.events))
	copy(out, o.events)
	return out
}

// MarkPersisted drains the event buffer and adopts the stored version.
// Called by the persistence layer after a successful commit.
func (o *Organization) MarkPersisted(version int64) {
	o.version = version
	o.events = nil
}

func (o *Organization) record(evt Event) {
	o.events = append(o.events, evt)
}

func (o *Organization) touch(now time.Time) {
	o.updatedAt = now.UTC()
}

func normalizeOrganizationName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxOrganizationNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

func normalizeOrganizationDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > maxOrganizationDescriptionLength {
		return "", ErrInvalidDescription
	}
	return description, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil || parsed.Host == "" {
		return "", ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrInvalidURL
	}
	return raw, nil
}
