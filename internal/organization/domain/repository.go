package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        OrganizationID
	Name      string
	IsActive  bool
	IsOwner   bool
	CreatedAt time.Time
}

// Repository persists whole aggregates. Load always returns the full child
// graph; Save applies optimistic concurrency against expectedVersion and
// returns the new stored version.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Load(ctx context.Context, id OrganizationID) (*Organization, error)
	Save(ctx context.Context, org *Organization, expectedVersion int64) (int64, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ListOrganizationsByUser(ctx context.Context, userID UserID) ([]OrganizationListItem, error)
	ListMemberUserIDs(ctx context.Context) ([]UserID, error)
	FindByInvitationToken(ctx context.Context, token string) (OrganizationID, error)
	ListWithExpiredInvitations(ctx context.Context, now time.Time, after OrganizationID, limit int) ([]OrganizationID, error)
}

// UserProfile is the identity-provider view of a user.
type UserProfile struct {
	ID        UserID `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UserDirectory resolves user profiles from the identity provider.
type UserDirectory interface {
	GetUser(ctx context.Context, id UserID) (UserProfile, error)
}

// AccessCache memoizes AccessFacts per user. A miss reports false.
type AccessCache interface {
	GetFacts(ctx context.Context, userID UserID) ([]AccessFacts, bool, error)
	SetFacts(ctx context.Context, userID UserID, facts []AccessFacts) error
	Invalidate(ctx context.Context, userIDs ...UserID) error
}
