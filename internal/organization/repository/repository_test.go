package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupRepo(t *testing.T) (*gorm.DB, domain.Repository) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(Models()...))
	return conn, NewRepository(conn)
}

func newUser() domain.UserID { return domain.UserID{UUID: uuid.New()} }

func createOrg(t *testing.T, repo domain.Repository, name string) (*domain.Organization, domain.UserID) {
	t.Helper()
	owner := newUser()
	org, err := domain.Create(name, owner, "desc", testNow)
	require.NoError(t, err)
	version, err := repo.Save(context.Background(), org, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), version)
	org.MarkPersisted(version)
	return org, owner
}

func TestSaveAndLoadFullGraph(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	org, owner := createOrg(t, repo, "Acme")

	billing, err := org.AddRole("Billing", "Billing team", "#123456", testNow)
	require.NoError(t, err)
	perm, err := domain.NewPermission("billing.manage", "Manage billing")
	require.NoError(t, err)
	require.NoError(t, org.GrantPermission(billing.ID, perm, testNow))

	member := newUser()
	_, err = org.AddMember(member, billing.ID, testNow)
	require.NoError(t, err)
	inv, err := org.CreateInvitation("Guest@Example.com", billing.ID, time.Time{}, testNow)
	require.NoError(t, err)

	version, err := repo.Save(ctx, org, org.Version())
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	loaded, err := repo.Load(ctx, org.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version())
	assert.Equal(t, "Acme", loaded.Name())
	assert.Equal(t, owner, loaded.OwnerUserID())
	assert.Len(t, loaded.Roles(), 4)
	assert.Len(t, loaded.Members(), 2)
	assert.Empty(t, loaded.PendingEvents())

	role, ok := loaded.Role(billing.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"billing.manage"}, role.PermissionNames())
	assert.True(t, loaded.HasPermission(member, "billing.manage"))

	got, ok := loaded.Invitation(inv.ID)
	require.True(t, ok)
	assert.Equal(t, "guest@example.com", got.Email)
	assert.Equal(t, inv.Token, got.Token)
	assert.True(t, got.ExpiresAt.Equal(inv.ExpiresAt))
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	org, _ := createOrg(t, repo, "Acme")

	first, err := repo.Load(ctx, org.ID())
	require.NoError(t, err)
	second, err := repo.Load(ctx, org.ID())
	require.NoError(t, err)

	require.NoError(t, first.Update("Acme One", "", testNow))
	_, err = repo.Save(ctx, first, first.Version())
	require.NoError(t, err)

	require.NoError(t, second.Update("Acme Two", "", testNow))
	_, err = repo.Save(ctx, second, second.Version())
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	loaded, err := repo.Load(ctx, org.ID())
	require.NoError(t, err)
	assert.Equal(t, "Acme One", loaded.Name())
}

func TestSaveRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	createOrg(t, repo, "Acme Corp")

	other, err := domain.Create(" Acme Corp ", newUser(), "", testNow)
	require.NoError(t, err)
	_, err = repo.Save(ctx, other, 0)
	assert.ErrorIs(t, err, domain.ErrDuplicateOrganization)

	exists, err := repo.ExistsByName(ctx, "  Acme Corp")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByName(ctx, "Globex")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNameUniquenessIsExact(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	createOrg(t, repo, "Acme")

	for _, name := range []string{"acme", "Acme!", "ACME"} {
		exists, err := repo.ExistsByName(ctx, name)
		require.NoError(t, err)
		assert.False(t, exists, name)

		org, err := domain.Create(name, newUser(), "", testNow)
		require.NoError(t, err)
		_, err = repo.Save(ctx, org, 0)
		assert.NoError(t, err, name)
	}
}

func TestLoadMissingOrganization(t *testing.T) {
	_, repo := setupRepo(t)
	_, err := repo.Load(context.Background(), domain.NewOrganizationID())
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestLoadRejectsPartialGraph(t *testing.T) {
	ctx := context.Background()
	conn, repo := setupRepo(t)
	org, _ := createOrg(t, repo, "Acme")

	require.NoError(t, conn.Where("org_id = ?", org.ID().String()).Delete(&memberRow{}).Error)

	_, err := repo.Load(ctx, org.ID())
	assert.ErrorIs(t, err, domain.ErrIncompleteAggregate)
}

func TestRemovedChildrenAreDeleted(t *testing.T) {
	ctx := context.Background()
	conn, repo := setupRepo(t)
	org, _ := createOrg(t, repo, "Acme")

	member := newUser()
	memberRole, _ := org.RoleByName(domain.RoleMember)
	_, err := org.AddMember(member, memberRole.ID, testNow)
	require.NoError(t, err)
	version, err := repo.Save(ctx, org, org.Version())
	require.NoError(t, err)
	org.MarkPersisted(version)

	require.NoError(t, org.RemoveMember(member, testNow))
	_, err = repo.Save(ctx, org, org.Version())
	require.NoError(t, err)

	var count int64
	require.NoError(t, conn.Model(&memberRow{}).Where("org_id = ?", org.ID().String()).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestListOrganizationsByUser(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	acme, owner := createOrg(t, repo, "Acme")
	globex, _ := createOrg(t, repo, "Globex")
	createOrg(t, repo, "Initech")

	memberRole, _ := globex.RoleByName(domain.RoleMember)
	_, err := globex.AddMember(owner, memberRole.ID, testNow)
	require.NoError(t, err)
	_, err = repo.Save(ctx, globex, globex.Version())
	require.NoError(t, err)

	items, err := repo.ListOrganizationsByUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[domain.OrganizationID]domain.OrganizationListItem{}
	for _, item := range items {
		byID[item.ID] = item
	}
	assert.True(t, byID[acme.ID()].IsOwner)
	assert.False(t, byID[globex.ID()].IsOwner)
	assert.True(t, byID[globex.ID()].IsActive)

	ids, err := repo.ListMemberUserIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestFindByInvitationToken(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	org, _ := createOrg(t, repo, "Acme")

	guest, _ := org.RoleByName(domain.RoleGuest)
	inv, err := org.CreateInvitation("guest@example.com", guest.ID, time.Time{}, testNow)
	require.NoError(t, err)
	_, err = repo.Save(ctx, org, org.Version())
	require.NoError(t, err)

	found, err := repo.FindByInvitationToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, org.ID(), found)

	_, err = repo.FindByInvitationToken(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrInvitationNotFound)
	_, err = repo.FindByInvitationToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestListWithExpiredInvitations(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepo(t)
	stale, _ := createOrg(t, repo, "Stale")
	fresh, _ := createOrg(t, repo, "Fresh")

	for _, org := range []*domain.Organization{stale, fresh} {
		guest, _ := org.RoleByName(domain.RoleGuest)
		expiresAt := testNow.Add(time.Hour)
		if org == fresh {
			expiresAt = testNow.Add(30 * 24 * time.Hour)
		}
		_, err := org.CreateInvitation("guest@example.com", guest.ID, expiresAt, testNow)
		require.NoError(t, err)
		_, err = repo.Save(ctx, org, org.Version())
		require.NoError(t, err)
	}

	ids, err := repo.ListWithExpiredInvitations(ctx, testNow.Add(2*time.Hour), domain.OrganizationID{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.OrganizationID{stale.ID()}, ids)

	ids, err = repo.ListWithExpiredInvitations(ctx, testNow.Add(2*time.Hour), stale.ID(), 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
