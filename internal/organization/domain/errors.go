package domain

import "errors"

// Validation errors. Reported before any state is touched.
var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidDescription  = errors.New("invalid_description")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidMember       = errors.New("invalid_member")
	ErrInvalidInvitation   = errors.New("invalid_invitation")
	ErrInvalidToken        = errors.New("invalid_token")
	ErrInvalidColor        = errors.New("invalid_color")
	ErrInvalidPermission   = errors.New("invalid_permission")
	ErrInvalidURL          = errors.New("invalid_url")
)

// Business rule violations. The aggregate is left unchanged.
var (
	ErrRoleNotFound              = errors.New("role_not_found")
	ErrRoleInUse                 = errors.New("role_in_use")
	ErrDuplicateRoleName         = errors.New("duplicate_role_name")
	ErrSystemRoleImmutable       = errors.New("system_role_immutable")
	ErrMemberNotFound            = errors.New("member_not_found")
	ErrOwnerCannotBeRemoved      = errors.New("owner_cannot_be_removed")
	ErrLastRoleCannotBeRevoked   = errors.New("last_role_cannot_be_revoked")
	ErrRoleNotAssigned           = errors.New("role_not_assigned")
	ErrOwnerMustRemainAdmin      = errors.New("owner_must_remain_admin")
	ErrInvitationNotFound        = errors.New("invitation_not_found")
	ErrInvitationExpired         = errors.New("invitation_expired")
	ErrInvitationAlreadyResolved = errors.New("invitation_already_resolved")
	ErrDuplicateInvitation       = errors.New("duplicate_invitation")
)

// Persistence and access errors.
var (
	ErrOrganizationNotFound  = errors.New("organization_not_found")
	ErrDuplicateOrganization = errors.New("duplicate_organization")
	ErrConcurrencyConflict   = errors.New("concurrency_conflict")
	ErrIncompleteAggregate   = errors.New("incomplete_aggregate")
	ErrForbidden             = errors.New("forbidden")
)

var validationErrors = []error{
	ErrInvalidName,
	ErrInvalidDescription,
	ErrInvalidUser,
	ErrInvalidOrganization,
	ErrInvalidEmail,
	ErrInvalidRole,
	ErrInvalidMember,
	ErrInvalidInvitation,
	ErrInvalidToken,
	ErrInvalidColor,
	ErrInvalidPermission,
	ErrInvalidURL,
}

var notFoundErrors = []error{
	ErrOrganizationNotFound,
	ErrRoleNotFound,
	ErrMemberNotFound,
	ErrInvitationNotFound,
}

var businessErrors = []error{
	ErrRoleInUse,
	ErrDuplicateRoleName,
	ErrSystemRoleImmutable,
	ErrOwnerCannotBeRemoved,
	ErrLastRoleCannotBeRevoked,
	ErrRoleNotAssigned,
	ErrOwnerMustRemainAdmin,
	ErrInvitationExpired,
	ErrInvitationAlreadyResolved,
	ErrDuplicateInvitation,
	ErrDuplicateOrganization,
}

// IsValidationError reports whether err is malformed input.
func IsValidationError(err error) bool { return isOneOf(err, validationErrors) }

// IsNotFound reports whether err names a missing aggregate or child.
func IsNotFound(err error) bool { return isOneOf(err, notFoundErrors) }

// IsBusinessRuleViolation reports whether err is a named domain rule failure.
func IsBusinessRuleViolation(err error) bool { return isOneOf(err, businessErrors) }

func isOneOf(err error, targets []error) bool {
	if err == nil {
		return false
	}
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
