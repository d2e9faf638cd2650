package authorization

import (
	"context"
	"errors"
	"fmt"
	"strings"

	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPermission   = errors.New("invalid_permission")
	ErrForbidden           = errors.New("forbidden")
)

const (
	wildcard  = "*"
	roleOwner = "role:owner"
)

// Service answers permission checks from the policy projection.
type Service interface {
	Authorize(ctx context.Context, userID orgdomain.UserID, orgID orgdomain.OrganizationID, permission string) error
	Sync(ctx context.Context, orgID orgdomain.OrganizationID) error
	Reload(ctx context.Context) error
}

func subjectOf(userID orgdomain.UserID) string {
	return fmt.Sprintf("user:%s", userID.String())
}

func roleSubject(roleID orgdomain.RoleID) string {
	return fmt.Sprintf("role:%s", roleID.String())
}

func domainOf(orgID orgdomain.OrganizationID) string {
	return fmt.Sprintf("org:%s", orgID.String())
}

// splitPermission maps "members.manage" to object "members" and action
// "manage". Names without a dot become an object with a wildcard action.
func splitPermission(name string) (string, string) {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return name, wildcard
	}
	return name[:idx], name[idx+1:]
}
