package identity

import (
	"context"

	"github.com/smallbiznis/identity/internal/organization/domain"
)

type directory struct {
	client *Client
}

// NewDirectory exposes Keycloak users as profiles. Without a client it
// returns a nil directory and invitee checks fall back to token possession.
func NewDirectory(client *Client) domain.UserDirectory {
	if client == nil {
		return nil
	}
	return &directory{client: client}
}

func (d *directory) GetUser(ctx context.Context, id domain.UserID) (domain.UserProfile, error) {
	user, err := d.client.GetUser(ctx, id)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return domain.UserProfile{
		ID:        id,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}
