package repository

import (
	"time"

	"gorm.io/datatypes"
)

type organizationRow struct {
	ID          string    `gorm:"type:varchar(36);primaryKey"`
	Name        string    `gorm:"type:text;not null;uniqueIndex:ux_organizations_name"`
	Slug        string    `gorm:"type:text;not null;index:idx_organizations_slug"`
	Description string    `gorm:"type:text;not null;default:''"`
	OwnerUserID string    `gorm:"type:varchar(36);not null;index"`
	IsActive    bool      `gorm:"not null;default:true"`
	LogoURL     string    `gorm:"type:text;not null;default:''"`
	BannerURL   string    `gorm:"type:text;not null;default:''"`
	Version     int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (organizationRow) TableName() string { return "organizations" }

type roleRow struct {
	ID          string         `gorm:"type:varchar(36);primaryKey"`
	OrgID       string         `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_organization_roles_name,priority:1"`
	Name        string         `gorm:"type:text;not null;uniqueIndex:ux_organization_roles_name,priority:2"`
	Description string         `gorm:"type:text;not null;default:''"`
	Color       string         `gorm:"type:text;not null;default:''"`
	Permissions datatypes.JSON `gorm:"not null"`
	Position    int            `gorm:"not null"`
}

func (roleRow) TableName() string { return "organization_roles" }

type memberRow struct {
	ID       string         `gorm:"type:varchar(36);primaryKey"`
	OrgID    string         `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_organization_members_user,priority:1"`
	UserID   string         `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_organization_members_user,priority:2"`
	RoleIDs  datatypes.JSON `gorm:"column:role_ids;not null"`
	JoinedAt time.Time      `gorm:"not null"`
	Position int            `gorm:"not null"`
}

func (memberRow) TableName() string { return "organization_members" }

type invitationRow struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	OrgID     string    `gorm:"type:varchar(36);not null;index"`
	Email     string    `gorm:"type:text;not null"`
	Token     string    `gorm:"type:text;not null;uniqueIndex:ux_organization_invitations_token"`
	RoleID    string    `gorm:"type:varchar(36);not null"`
	Status    string    `gorm:"type:text;not null;index"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	Position  int       `gorm:"not null"`
}

func (invitationRow) TableName() string { return "organization_invitations" }

// Models lists the persistence models for schema setup in tests and tooling.
func Models() []any {
	return []any{&organizationRow{}, &roleRow{}, &memberRow{}, &invitationRow{}}
}
