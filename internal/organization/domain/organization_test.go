package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newUser() UserID { return UserID{uuid.New()} }

func newTestOrg(t *testing.T) (*Organization, UserID) {
	t.Helper()
	owner := newUser()
	org, err := Create("Acme", owner, "rockets", testNow)
	require.NoError(t, err)
	return org, owner
}

func eventTypes(org *Organization) []string {
	var types []string
	for _, evt := range org.PendingEvents() {
		types = append(types, evt.EventType())
	}
	return types
}

func roleID(t *testing.T, org *Organization, name string) RoleID {
	t.Helper()
	role, ok := org.RoleByName(name)
	require.True(t, ok, "role %s", name)
	return role.ID
}

func TestCreateSeedsRolesAndOwner(t *testing.T) {
	org, owner := newTestOrg(t)

	roles := org.Roles()
	require.Len(t, roles, 3)
	names := []string{roles[0].Name, roles[1].Name, roles[2].Name}
	assert.ElementsMatch(t, []string{RoleAdmin, RoleMember, RoleGuest}, names)
	for _, role := range roles {
		assert.Empty(t, role.Permissions)
		assert.True(t, role.IsSystem())
	}
	admin, _ := org.RoleByName(RoleAdmin)
	assert.Equal(t, "#FF0000", admin.Color)

	members := org.Members()
	require.Len(t, members, 1)
	assert.Equal(t, owner, members[0].UserID)
	assert.Equal(t, []RoleID{admin.ID}, members[0].RoleIDs)

	assert.True(t, org.IsActive())
	assert.Equal(t, int64(0), org.Version())
	assert.Equal(t, []string{EventOrganizationCreated}, eventTypes(org))
}

func TestCreateValidation(t *testing.T) {
	_, err := Create("   ", newUser(), "", testNow)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = Create("Acme", UserID{}, "", testNow)
	assert.ErrorIs(t, err, ErrInvalidUser)

	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	_, err = Create(string(long), newUser(), "", testNow)
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.True(t, IsValidationError(err))
}

func TestUpdateAndActivation(t *testing.T) {
	org, _ := newTestOrg(t)
	org.MarkPersisted(1)

	require.NoError(t, org.Update("Acme Corp", "new", testNow))
	assert.Equal(t, "Acme Corp", org.Name())
	assert.ErrorIs(t, org.Update("", "x", testNow), ErrInvalidName)
	assert.Equal(t, "Acme Corp", org.Name())

	org.Activate(testNow)
	org.Deactivate(testNow)
	org.Deactivate(testNow)
	assert.False(t, org.IsActive())
	org.Activate(testNow)

	assert.Equal(t, []string{
		EventOrganizationUpdated,
		EventOrganizationDeactivated,
		EventOrganizationActivated,
	}, eventTypes(org))
}

func TestLogoAndBanner(t *testing.T) {
	org, _ := newTestOrg(t)
	org.MarkPersisted(1)

	require.NoError(t, org.UpdateLogo("https://cdn.example.com/logo.png", testNow))
	require.NoError(t, org.UpdateLogo("https://cdn.example.com/logo.png", testNow))
	assert.ErrorIs(t, org.UpdateBanner("ftp://nope", testNow), ErrInvalidURL)
	require.NoError(t, org.UpdateBanner("https://cdn.example.com/banner.png", testNow))
	require.NoError(t, org.UpdateLogo("", testNow))

	assert.Empty(t, org.LogoURL())
	assert.Equal(t, "https://cdn.example.com/banner.png", org.BannerURL())
	assert.Equal(t, []string{
		EventOrganizationLogoUpdated,
		EventOrganizationBannerUpdated,
		EventOrganizationLogoUpdated,
	}, eventTypes(org))
}

func TestBillingRoleScenario(t *testing.T) {
	org, _ := newTestOrg(t)
	u2 := newUser()

	billing, err := org.AddRole("Billing", "", "", testNow)
	require.NoError(t, err)

	_, err = org.AddMember(u2, billing.ID, testNow)
	require.NoError(t, err)
	require.Len(t, org.Members(), 2)
	m2, ok := org.Member(u2)
	require.True(t, ok)
	assert.Equal(t, []RoleID{billing.ID}, m2.RoleIDs)

	assert.ErrorIs(t, org.RemoveRole(billing.ID, testNow), ErrRoleInUse)
	_, stillThere := org.Role(billing.ID)
	assert.True(t, stillThere)

	require.NoError(t, org.RemoveMember(u2, testNow))
	require.NoError(t, org.RemoveRole(billing.ID, testNow))
	assert.Len(t, org.Roles(), 3)
}

func TestAddMemberMergesIntoExistingMembership(t *testing.T) {
	org, _ := newTestOrg(t)
	u3 := newUser()
	_, err := org.AddMember(u3, roleID(t, org, RoleAdmin), testNow)
	require.NoError(t, err)
	org.MarkPersisted(1)

	member, err := org.AddMember(u3, roleID(t, org, RoleGuest), testNow)
	require.NoError(t, err)

	assert.Len(t, org.Members(), 2)
	assert.ElementsMatch(t, []RoleID{roleID(t, org, RoleAdmin), roleID(t, org, RoleGuest)}, member.RoleIDs)
	assert.Equal(t, []string{EventMemberRoleAssigned}, eventTypes(org))
}

func TestAddMemberRequiresRole(t *testing.T) {
	org, _ := newTestOrg(t)
	_, err := org.AddMember(newUser(), NewRoleID(), testNow)
	assert.ErrorIs(t, err, ErrRoleNotFound)
	_, err = org.AddMember(UserID{}, roleID(t, org, RoleGuest), testNow)
	assert.ErrorIs(t, err, ErrInvalidUser)
	assert.Len(t, org.Members(), 1)
}

func TestRemoveMemberRules(t *testing.T) {
	org, owner := newTestOrg(t)
	assert.ErrorIs(t, org.RemoveMember(owner, testNow), ErrOwnerCannotBeRemoved)
	assert.ErrorIs(t, org.RemoveMember(newUser(), testNow), ErrMemberNotFound)
	assert.True(t, org.HasAccess(owner))
}

func TestAssignRoleIsIdempotent(t *testing.T) {
	org, _ := newTestOrg(t)
	user := newUser()
	guest := roleID(t, org, RoleGuest)
	_, err := org.AddMember(user, guest, testNow)
	require.NoError(t, err)
	org.MarkPersisted(1)

	require.NoError(t, org.AssignRoleToMember(user, guest, testNow))
	assert.Empty(t, org.PendingEvents())

	assert.ErrorIs(t, org.AssignRoleToMember(newUser(), guest, testNow), ErrMemberNotFound)
	assert.ErrorIs(t, org.AssignRoleToMember(user, NewRoleID(), testNow), ErrRoleNotFound)
}

func TestRevokeRoleKeepsLastRole(t *testing.T) {
	org, owner := newTestOrg(t)
	user := newUser()
	guest := roleID(t, org, RoleGuest)
	member := roleID(t, org, RoleMember)
	_, err := org.AddMember(user, guest, testNow)
	require.NoError(t, err)

	assert.ErrorIs(t, org.RevokeRoleFromMember(user, guest, testNow), ErrLastRoleCannotBeRevoked)
	m, _ := org.Member(user)
	assert.Equal(t, []RoleID{guest}, m.RoleIDs)

	assert.ErrorIs(t, org.RevokeRoleFromMember(user, member, testNow), ErrRoleNotAssigned)

	require.NoError(t, org.AssignRoleToMember(user, member, testNow))
	org.MarkPersisted(1)
	require.NoError(t, org.RevokeRoleFromMember(user, guest, testNow))
	m, _ = org.Member(user)
	assert.Equal(t, []RoleID{member}, m.RoleIDs)
	assert.Equal(t, []string{EventMemberRoleRevoked}, eventTypes(org))

	admin := roleID(t, org, RoleAdmin)
	assert.ErrorIs(t, org.RevokeRoleFromMember(owner, admin, testNow), ErrLastRoleCannotBeRevoked)
	require.NoError(t, org.AssignRoleToMember(owner, guest, testNow))
	assert.ErrorIs(t, org.RevokeRoleFromMember(owner, admin, testNow), ErrOwnerMustRemainAdmin)
}

func TestRoleManagement(t *testing.T) {
	org, _ := newTestOrg(t)

	_, err := org.AddRole("Admin", "", "", testNow)
	assert.ErrorIs(t, err, ErrDuplicateRoleName)
	_, err = org.AddRole("Ops", "", "red", testNow)
	assert.ErrorIs(t, err, ErrInvalidColor)

	ops, err := org.AddRole("Ops", "operations", "#123abc", testNow)
	require.NoError(t, err)
	_, err = org.AddRole("ops", "", "", testNow)
	assert.NoError(t, err, "names are case sensitive")

	_, err = org.UpdateRole(ops.ID, "ops", "", "", testNow)
	assert.ErrorIs(t, err, ErrDuplicateRoleName)
	_, err = org.UpdateRole(roleID(t, org, RoleGuest), "Visitor", "", "", testNow)
	assert.ErrorIs(t, err, ErrSystemRoleImmutable)
	guest, err := org.UpdateRole(roleID(t, org, RoleGuest), RoleGuest, "read only", "#00F", testNow)
	require.NoError(t, err)
	assert.Equal(t, "#00F", guest.Color)

	updated, err := org.UpdateRole(ops.ID, "Operations", "", "", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Operations", updated.Name)

	assert.ErrorIs(t, org.RemoveRole(roleID(t, org, RoleGuest), testNow), ErrSystemRoleImmutable)
	assert.ErrorIs(t, org.RemoveRole(NewRoleID(), testNow), ErrRoleNotFound)
}

func TestRoleRoundTrip(t *testing.T) {
	org, _ := newTestOrg(t)
	before := org.Roles()

	role, err := org.AddRole("Temp", "", "", testNow)
	require.NoError(t, err)
	require.NoError(t, org.RemoveRole(role.ID, testNow))

	assert.Equal(t, before, org.Roles())
}

func TestRolePermissions(t *testing.T) {
	org, _ := newTestOrg(t)
	role, err := org.AddRole("Auditor", "", "", testNow)
	require.NoError(t, err)
	org.MarkPersisted(1)

	view, _ := LookupStandardPermission(PermissionMembersView)
	require.NoError(t, org.GrantPermission(role.ID, view, testNow))
	require.NoError(t, org.GrantPermission(role.ID, view, testNow))
	require.NoError(t, org.RevokePermission(role.ID, "absent.permission", testNow))
	assert.Equal(t, []string{EventRolePermissionsUpdated}, eventTypes(org))

	err = org.UpdateRolePermissions(role.ID, []Permission{
		{Name: PermissionRolesView},
		{Name: "reports.export"},
		{Name: PermissionRolesView},
	}, testNow)
	require.NoError(t, err)
	got, _ := org.Role(role.ID)
	assert.Equal(t, []string{PermissionRolesView, "reports.export"}, got.PermissionNames())

	err = org.UpdateRolePermissions(role.ID, []Permission{{Name: " "}}, testNow)
	assert.ErrorIs(t, err, ErrInvalidPermission)
	got, _ = org.Role(role.ID)
	assert.Len(t, got.Permissions, 2)
}

func TestRoleCopiesAreDetached(t *testing.T) {
	org, _ := newTestOrg(t)
	role, err := org.AddRole("Auditor", "", "", testNow)
	require.NoError(t, err)

	role.AddPermission(Permission{Name: PermissionMembersManage})
	stored, _ := org.Role(role.ID)
	assert.Empty(t, stored.Permissions)

	members := org.Members()
	members[0].RoleIDs[0] = NewRoleID()
	assert.Equal(t, roleID(t, org, RoleAdmin), org.Members()[0].RoleIDs[0])
}

func TestInvitationAcceptCreatesMember(t *testing.T) {
	org, _ := newTestOrg(t)
	member := roleID(t, org, RoleMember)

	inv, err := org.CreateInvitation(" New@Example.com ", member, time.Time{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", inv.Email)
	assert.Equal(t, testNow.Add(DefaultInvitationTTL), inv.ExpiresAt)
	assert.NotEmpty(t, inv.Token)
	assert.Equal(t, InvitationStatusPending, inv.Status)
	org.MarkPersisted(1)

	user := newUser()
	m, err := org.AcceptInvitation(inv.ID, user, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []RoleID{member}, m.RoleIDs)
	assert.Equal(t, []string{EventInvitationAccepted, EventMemberAdded}, eventTypes(org))

	stored, _ := org.Invitation(inv.ID)
	assert.Equal(t, InvitationStatusAccepted, stored.Status)
}

func TestInvitationAcceptMergesExistingMember(t *testing.T) {
	org, owner := newTestOrg(t)
	guest := roleID(t, org, RoleGuest)

	inv, err := org.CreateInvitation("owner@example.com", guest, time.Time{}, testNow)
	require.NoError(t, err)
	org.MarkPersisted(1)

	m, err := org.AcceptInvitation(inv.ID, owner, testNow)
	require.NoError(t, err)
	assert.Len(t, org.Members(), 1)
	assert.Contains(t, m.RoleIDs, guest)
	assert.Equal(t, []string{EventInvitationAccepted, EventMemberRoleAssigned}, eventTypes(org))
}

func TestInvitationExpiredCannotBeAccepted(t *testing.T) {
	org, _ := newTestOrg(t)
	inv, err := org.CreateInvitation("a@b.com", roleID(t, org, RoleMember), testNow.Add(-time.Second), testNow)
	require.NoError(t, err)

	_, err = org.AcceptInvitation(inv.ID, newUser(), testNow)
	assert.ErrorIs(t, err, ErrInvitationExpired)
	assert.Len(t, org.Members(), 1)
	stored, _ := org.Invitation(inv.ID)
	assert.Equal(t, InvitationStatusPending, stored.Status, "expiry is evaluated lazily")

	assert.ErrorIs(t, org.RejectInvitation(inv.ID, testNow), ErrInvitationExpired)
}

func TestInvitationTerminalStates(t *testing.T) {
	org, _ := newTestOrg(t)
	member := roleID(t, org, RoleMember)

	accepted, err := org.CreateInvitation("one@example.com", member, time.Time{}, testNow)
	require.NoError(t, err)
	_, err = org.AcceptInvitation(accepted.ID, newUser(), testNow)
	require.NoError(t, err)

	rejected, err := org.CreateInvitation("two@example.com", member, time.Time{}, testNow)
	require.NoError(t, err)
	require.NoError(t, org.RejectInvitation(rejected.ID, testNow))

	expired, err := org.CreateInvitation("three@example.com", member, time.Time{}, testNow)
	require.NoError(t, err)
	require.NoError(t, org.ExpireInvitation(expired.ID, testNow))

	for _, id := range []InvitationID{accepted.ID, rejected.ID} {
		_, err := org.AcceptInvitation(id, newUser(), testNow)
		assert.ErrorIs(t, err, ErrInvitationAlreadyResolved)
		assert.ErrorIs(t, org.RejectInvitation(id, testNow), ErrInvitationAlreadyResolved)
	}
	_, err = org.AcceptInvitation(expired.ID, newUser(), testNow)
	assert.ErrorIs(t, err, ErrInvitationExpired)

	org.MarkPersisted(1)
	require.NoError(t, org.ExpireInvitation(accepted.ID, testNow))
	assert.Empty(t, org.PendingEvents(), "only pending invitations can expire")

	_, err = org.AcceptInvitation(NewInvitationID(), newUser(), testNow)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestCreateInvitationRules(t *testing.T) {
	org, _ := newTestOrg(t)
	member := roleID(t, org, RoleMember)

	_, err := org.CreateInvitation("", member, time.Time{}, testNow)
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = org.CreateInvitation("not-an-email", member, time.Time{}, testNow)
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = org.CreateInvitation("a@b.com", NewRoleID(), time.Time{}, testNow)
	assert.ErrorIs(t, err, ErrRoleNotFound)

	_, err = org.CreateInvitation("a@b.com", member, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)
	_, err = org.CreateInvitation("A@B.com", member, time.Time{}, testNow)
	assert.ErrorIs(t, err, ErrDuplicateInvitation)

	_, err = org.CreateInvitation("a@b.com", member, time.Time{}, testNow.Add(2*time.Hour))
	assert.NoError(t, err, "a lapsed invitation does not block a new one")
}

func TestExpireInvitationsSweep(t *testing.T) {
	org, _ := newTestOrg(t)
	member := roleID(t, org, RoleMember)
	old, err := org.CreateInvitation("old@example.com", member, testNow.Add(time.Hour), testNow)
	require.NoError(t, err)
	fresh, err := org.CreateInvitation("fresh@example.com", member, testNow.Add(48*time.Hour), testNow)
	require.NoError(t, err)
	org.MarkPersisted(1)

	later := testNow.Add(2 * time.Hour)
	assert.Equal(t, []InvitationID{old.ID}, org.ExpireInvitations(later))
	assert.Empty(t, org.ExpireInvitations(later))
	assert.Equal(t, []string{EventInvitationExpired}, eventTypes(org))

	pending := org.PendingInvitations(later)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.ID, pending[0].ID)
}

func TestAccessHelpers(t *testing.T) {
	org, owner := newTestOrg(t)
	user := newUser()
	auditor, err := org.AddRole("Auditor", "", "", testNow)
	require.NoError(t, err)
	require.NoError(t, org.GrantPermission(auditor.ID, Permission{Name: PermissionMembersView}, testNow))
	_, err = org.AddMember(user, auditor.ID, testNow)
	require.NoError(t, err)

	assert.True(t, org.HasAccess(owner))
	assert.True(t, org.HasAccess(user))
	assert.False(t, org.HasAccess(newUser()))
	assert.False(t, org.HasAccess(UserID{}))

	assert.True(t, org.HasPermission(owner, PermissionRolesManage))
	assert.True(t, org.HasPermission(user, PermissionMembersView))
	assert.False(t, org.HasPermission(user, PermissionMembersManage))

	facts, ok := org.AccessFacts(user)
	require.True(t, ok)
	assert.Equal(t, org.ID(), facts.OrganizationID)
	assert.Equal(t, []string{"Auditor"}, facts.Roles)
	assert.Equal(t, []string{PermissionMembersView}, facts.Permissions)
	assert.False(t, facts.IsOwner)

	_, ok = org.AccessFacts(newUser())
	assert.False(t, ok)
}

func TestSnapshotRehydrateRoundTrip(t *testing.T) {
	org, owner := newTestOrg(t)
	_, err := org.AddMember(newUser(), roleID(t, org, RoleGuest), testNow)
	require.NoError(t, err)
	_, err = org.CreateInvitation("x@example.com", roleID(t, org, RoleMember), time.Time{}, testNow)
	require.NoError(t, err)

	restored, err := Rehydrate(org.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, org.Snapshot(), restored.Snapshot())
	assert.True(t, restored.IsOwner(owner))
	assert.Empty(t, restored.PendingEvents())
}

func TestRehydrateRejectsPartialGraphs(t *testing.T) {
	org, _ := newTestOrg(t)
	_, err := org.AddMember(newUser(), roleID(t, org, RoleGuest), testNow)
	require.NoError(t, err)

	noMembers := org.Snapshot()
	noMembers.Members = nil
	_, err = Rehydrate(noMembers)
	assert.ErrorIs(t, err, ErrIncompleteAggregate)

	noRoles := org.Snapshot()
	noRoles.Roles = nil
	_, err = Rehydrate(noRoles)
	assert.ErrorIs(t, err, ErrIncompleteAggregate)

	dangling := org.Snapshot()
	dangling.Roles = dangling.Roles[:1]
	_, err = Rehydrate(dangling)
	assert.True(t, errors.Is(err, ErrIncompleteAggregate))
}

func TestMarkPersistedDrainsEvents(t *testing.T) {
	org, _ := newTestOrg(t)
	require.Len(t, org.PendingEvents(), 1)

	org.MarkPersisted(1)
	assert.Empty(t, org.PendingEvents())
	assert.Equal(t, int64(1), org.Version())
}

func TestAffectedUsers(t *testing.T) {
	org, owner := newTestOrg(t)
	assert.Equal(t, []UserID{owner}, org.AffectedUsers(org.PendingEvents()))
	org.MarkPersisted(1)

	alice := newUser()
	_, err := org.AddMember(alice, roleID(t, org, RoleMember), testNow)
	require.NoError(t, err)
	_, err = org.CreateInvitation("bob@example.com", roleID(t, org, RoleGuest), time.Time{}, testNow)
	require.NoError(t, err)
	assert.Equal(t, []UserID{alice}, org.AffectedUsers(org.PendingEvents()))
	org.MarkPersisted(2)

	perm, err := NewPermission("reports.view", "")
	require.NoError(t, err)
	require.NoError(t, org.GrantPermission(roleID(t, org, RoleMember), perm, testNow))
	assert.ElementsMatch(t, []UserID{owner, alice}, org.AffectedUsers(org.PendingEvents()))
}
