package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Load(ctx context.Context, id domain.OrganizationID) (*domain.Organization, error) {
	if id.IsZero() {
		return nil, domain.ErrInvalidOrganization
	}
	conn := r.db.WithContext(ctx)

	var org organizationRow
	if err := conn.Where("id = ?", id.String()).Take(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}

	var roles []roleRow
	if err := conn.Where("org_id = ?", org.ID).Order("position ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	var members []memberRow
	if err := conn.Where("org_id = ?", org.ID).Order("position ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	var invitations []invitationRow
	if err := conn.Where("org_id = ?", org.ID).Order("position ASC").Find(&invitations).Error; err != nil {
		return nil, err
	}

	snap, err := toSnapshot(org, roles, members, invitations)
	if err != nil {
		return nil, err
	}
	return domain.Rehydrate(snap)
}

func (r *repository) Save(ctx context.Context, org *domain.Organization, expectedVersion int64) (int64, error) {
	if org == nil {
		return 0, domain.ErrInvalidOrganization
	}
	snap := org.Snapshot()
	roles, err := toRoleRows(snap)
	if err != nil {
		return 0, err
	}
	members, err := toMemberRows(snap)
	if err != nil {
		return 0, err
	}
	invitations := toInvitationRows(snap)

	var version int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			version = 1
			row := organizationRow{
				ID:          snap.ID.String(),
				Name:        snap.Name,
				Slug:        organizationSlug(snap.Name, snap.ID),
				Description: snap.Description,
				OwnerUserID: snap.OwnerUserID.String(),
				IsActive:    snap.Active,
				LogoURL:     snap.LogoURL,
				BannerURL:   snap.BannerURL,
				Version:     version,
				CreatedAt:   snap.CreatedAt.UTC(),
				UpdatedAt:   snap.UpdatedAt.UTC(),
			}
			if err := tx.Create(&row).Error; err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrDuplicateOrganization
				}
				return err
			}
		} else {
			version = expectedVersion + 1
			res := tx.Model(&organizationRow{}).
				Where("id = ? AND version = ?", snap.ID.String(), expectedVersion).
				Updates(map[string]any{
					"name":        snap.Name,
					"slug":        organizationSlug(snap.Name, snap.ID),
					"description": snap.Description,
					"is_active":   snap.Active,
					"logo_url":    snap.LogoURL,
					"banner_url":  snap.BannerURL,
					"version":     gorm.Expr("version + 1"),
					"updated_at":  snap.UpdatedAt.UTC(),
				})
			if res.Error != nil {
				if db.IsDuplicateKeyErr(res.Error) {
					return domain.ErrDuplicateOrganization
				}
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrConcurrencyConflict
			}
			if err := deleteChildren(tx, snap.ID.String()); err != nil {
				return err
			}
		}
		return insertChildren(tx, roles, members, invitations)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// organizationSlug derives the URL handle stored next to the name. Names that
// slugify to nothing fall back to the id.
func organizationSlug(name string, id domain.OrganizationID) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return id.String()
}

func deleteChildren(tx *gorm.DB, orgID string) error {
	for _, model := range []any{&invitationRow{}, &memberRow{}, &roleRow{}} {
		if err := tx.Where("org_id = ?", orgID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertChildren(tx *gorm.DB, roles []roleRow, members []memberRow, invitations []invitationRow) error {
	if len(roles) > 0 {
		if err := tx.Create(&roles).Error; err != nil {
			return err
		}
	}
	if len(members) > 0 {
		if err := tx.Create(&members).Error; err != nil {
			return err
		}
	}
	if len(invitations) > 0 {
		if err := tx.Create(&invitations).Error; err != nil {
			return err
		}
	}
	return nil
}

// ExistsByName matches the trimmed name exactly, case included.
func (r *repository) ExistsByName(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&organizationRow{}).
		Where("name = ?", name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

type organizationListRow struct {
	ID          string
	Name        string
	IsActive    bool
	OwnerUserID string
	CreatedAt   time.Time
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID domain.UserID) ([]domain.OrganizationListItem, error) {
	var rows []organizationListRow
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.is_active, o.owner_user_id, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC, o.id ASC`,
		userID.String(),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrganizationListItem, 0, len(rows))
	for _, row := range rows {
		id, err := domain.ParseOrganizationID(row.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrganizationListItem{
			ID:        id,
			Name:      row.Name,
			IsActive:  row.IsActive,
			IsOwner:   row.OwnerUserID == userID.String(),
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

func (r *repository) ListMemberUserIDs(ctx context.Context) ([]domain.UserID, error) {
	var raw []string
	err := r.db.WithContext(ctx).
		Model(&memberRow{}).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &raw).Error
	if err != nil {
		return nil, err
	}

	ids := make([]domain.UserID, 0, len(raw))
	for _, value := range raw {
		id, err := domain.ParseUserID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *repository) FindByInvitationToken(ctx context.Context, token string) (domain.OrganizationID, error) {
	if token == "" {
		return domain.OrganizationID{}, domain.ErrInvalidToken
	}
	var row invitationRow
	err := r.db.WithContext(ctx).Select("org_id").Where("token = ?", token).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.OrganizationID{}, domain.ErrInvitationNotFound
		}
		return domain.OrganizationID{}, err
	}
	return domain.ParseOrganizationID(row.OrgID)
}

// ListWithExpiredInvitations pages organizations holding overdue pending
// invitations in org_id order, starting after the given id.
func (r *repository) ListWithExpiredInvitations(ctx context.Context, now time.Time, after domain.OrganizationID, limit int) ([]domain.OrganizationID, error) {
	if limit <= 0 {
		limit = 100
	}
	stmt := r.db.WithContext(ctx).
		Model(&invitationRow{}).
		Distinct("org_id").
		Where("status = ? AND expires_at < ?", string(domain.InvitationStatusPending), now.UTC())
	if !after.IsZero() {
		stmt = stmt.Where("org_id > ?", after.String())
	}

	var raw []string
	err := stmt.
		Order("org_id ASC").
		Limit(limit).
		Pluck("org_id", &raw).Error
	if err != nil {
		return nil, err
	}

	ids := make([]domain.OrganizationID, 0, len(raw))
	for _, value := range raw {
		id, err := domain.ParseOrganizationID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
