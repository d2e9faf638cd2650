package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/identity/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, actor UserID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, actor UserID, orgID string) (*OrganizationResponse, error)
	Update(ctx context.Context, actor UserID, orgID string, req UpdateOrganizationRequest) (*OrganizationResponse, error)
	Activate(ctx context.Context, actor UserID, orgID string) error
	Deactivate(ctx context.Context, actor UserID, orgID string) error
	ListOrganizationsByUser(ctx context.Context, userID UserID) ([]OrganizationListResponseItem, error)
	HasAccess(ctx context.Context, orgID string, userID UserID) (bool, error)
	HasPermission(ctx context.Context, orgID string, userID UserID, permission string) (bool, error)
	AccessFacts(ctx context.Context, userID UserID) ([]AccessFacts, error)
	PermissionCatalog(ctx context.Context) []Permission

	AddMember(ctx context.Context, actor UserID, orgID string, req AddMemberRequest) (*MemberResponse, error)
	RemoveMember(ctx context.Context, actor UserID, orgID string, userID string) error
	AssignRole(ctx context.Context, actor UserID, orgID string, userID string, roleID string) error
	RevokeRole(ctx context.Context, actor UserID, orgID string, userID string, roleID string) error
	GetMember(ctx context.Context, actor UserID, orgID string, userID string) (*MemberResponse, error)
	ListMembers(ctx context.Context, actor UserID, orgID string, req ListMembersRequest) (*ListMembersResponse, error)

	CreateRole(ctx context.Context, actor UserID, orgID string, req RoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actor UserID, orgID string, roleID string, req RoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, actor UserID, orgID string, roleID string) error
	UpdateRolePermissions(ctx context.Context, actor UserID, orgID string, roleID string, permissions []string) (*RoleResponse, error)
	GetRole(ctx context.Context, actor UserID, orgID string, roleID string) (*RoleResponse, error)
	ListRoles(ctx context.Context, actor UserID, orgID string) ([]RoleResponse, error)

	CreateInvitation(ctx context.Context, actor UserID, orgID string, req InvitationRequest) (*InvitationResponse, error)
	AcceptInvitation(ctx context.Context, actor UserID, orgID string, invitationID string) (*MemberResponse, error)
	AcceptInvitationByToken(ctx context.Context, actor UserID, token string) (*MemberResponse, error)
	RejectInvitation(ctx context.Context, actor UserID, orgID string, invitationID string) error
	GetInvitation(ctx context.Context, actor UserID, orgID string, invitationID string) (*InvitationResponse, error)
	ListInvitations(ctx context.Context, actor UserID, orgID string) ([]InvitationResponse, error)
	ExpireInvitations(ctx context.Context, orgID OrganizationID) (int, error)
}

type CreateOrganizationRequest struct {
	Name        string
	Description string
	LogoURL     string
	BannerURL   string
}

// UpdateOrganizationRequest replaces name and description. Logo and banner are
// only touched when set.
type UpdateOrganizationRequest struct {
	Name        string
	Description string
	LogoURL     *string
	BannerURL   *string
}

type AddMemberRequest struct {
	UserID string
	RoleID string
}

type ListMembersRequest struct {
	PageToken string
	PageSize  int
}

type RoleRequest struct {
	Name        string
	Description string
	Color       string
}

type InvitationRequest struct {
	Email     string
	RoleID    string
	ExpiresAt *time.Time
}

type OrganizationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerUserID string    `json:"owner_user_id"`
	IsActive    bool      `json:"is_active"`
	LogoURL     string    `json:"logo_url,omitempty"`
	BannerURL   string    `json:"banner_url,omitempty"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type OrganizationListResponseItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
}

type MemberResponse struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	Roles    []RoleResponse `json:"roles"`
	IsOwner  bool           `json:"is_owner"`
	JoinedAt time.Time      `json:"joined_at"`
}

type ListMembersResponse struct {
	Members  []MemberResponse    `json:"members"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type RoleResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	IsSystem    bool     `json:"is_system"`
	Permissions []string `json:"permissions"`
}

type InvitationResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	RoleID    string    `json:"role_id"`
	Status    string    `json:"status"`
	IsExpired bool      `json:"is_expired"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
