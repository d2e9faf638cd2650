package audit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/audit/repository"
	"github.com/smallbiznis/identity/internal/audit/service"
	"github.com/smallbiznis/identity/internal/clock"
	obscontext "github.com/smallbiznis/identity/internal/observability/context"
	orgdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/smallbiznis/identity/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) auditdomain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(auditdomain.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return service.NewService(service.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(testNow),
		Repo:  repository.Provide(),
	})
}

func header(orgID orgdomain.OrganizationID, at time.Time) orgdomain.EventHeader {
	return orgdomain.EventHeader{OrganizationID: orgID, At: at}
}

func TestRecorderWritesMaskedEntries(t *testing.T) {
	svc := setup(t)
	rec := NewRecorder(svc)
	assert.Equal(t, "audit.recorder", rec.Name())

	orgID := orgdomain.NewOrganizationID()
	actor := uuid.NewString()
	ctx := obscontext.WithActor(context.Background(), obscontext.ActorTypeUser, actor)

	invitationID := orgdomain.NewInvitationID()
	msg := event.Message{
		ID:             1001,
		Topic:          orgdomain.EventInvitationCreated,
		OrganizationID: orgID,
		Event: orgdomain.InvitationCreated{
			EventHeader:  header(orgID, testNow),
			InvitationID: invitationID,
			Email:        "dana@example.com",
			RoleID:       orgdomain.NewRoleID(),
			Token:        "f3a9c2d17be04a55",
			ExpiresAt:    testNow.Add(72 * time.Hour),
		},
	}
	require.NoError(t, rec.Handle(ctx, msg))
	// Redelivery of the same outbox row is absorbed.
	require.NoError(t, rec.Handle(ctx, msg))

	resp, err := svc.List(context.Background(), orgID, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, snowflake.ID(1001), entry.ID)
	assert.Equal(t, orgdomain.EventInvitationCreated, entry.Action)
	assert.Equal(t, TargetInvitation, entry.TargetType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, invitationID.String(), *entry.TargetID)
	assert.Equal(t, obscontext.ActorTypeUser, entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, actor, *entry.ActorID)
	assert.Equal(t, "d****@example.com", entry.Metadata["email"])
	assert.Equal(t, "****4a55", entry.Metadata["token"])
	assert.NotContains(t, entry.Metadata, "organization_id")
	assert.True(t, entry.CreatedAt.Equal(testNow))
}

func TestRecorderTargets(t *testing.T) {
	orgID := orgdomain.NewOrganizationID()
	userID := orgdomain.UserID{UUID: uuid.New()}
	roleID := orgdomain.NewRoleID()

	kind, id := target(orgdomain.MemberAdded{EventHeader: header(orgID, testNow), UserID: userID, RoleID: roleID})
	assert.Equal(t, TargetMember, kind)
	assert.Equal(t, userID.String(), id)

	kind, id = target(orgdomain.RoleDeleted{EventHeader: header(orgID, testNow), RoleID: roleID})
	assert.Equal(t, TargetRole, kind)
	assert.Equal(t, roleID.String(), id)

	kind, id = target(orgdomain.OrganizationDeactivated{EventHeader: header(orgID, testNow)})
	assert.Equal(t, TargetOrganization, kind)
	assert.Equal(t, orgID.String(), id)
}

func TestListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	orgID := orgdomain.NewOrganizationID()

	for i := 0; i < 5; i++ {
		action := orgdomain.EventMemberAdded
		if i%2 == 1 {
			action = orgdomain.EventRoleCreated
		}
		require.NoError(t, svc.Record(ctx, auditdomain.RecordRequest{
			OrgID:      orgID,
			Action:     action,
			TargetType: TargetMember,
			OccurredAt: testNow.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, svc.Record(ctx, auditdomain.RecordRequest{
		OrgID:  orgdomain.NewOrganizationID(),
		Action: orgdomain.EventMemberAdded,
	}))

	first, err := svc.List(ctx, orgID, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))
	assert.Equal(t, string(auditdomain.ActorTypeSystem), first.AuditLogs[0].ActorType)

	seen := map[snowflake.ID]bool{}
	token := first.NextPageToken
	for _, l := range first.AuditLogs {
		seen[l.ID] = true
	}
	for token != "" {
		page, err := svc.List(ctx, orgID, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: token}})
		require.NoError(t, err)
		for _, l := range page.AuditLogs {
			assert.False(t, seen[l.ID])
			seen[l.ID] = true
		}
		token = page.NextPageToken
	}
	assert.Len(t, seen, 5)

	filtered, err := svc.List(ctx, orgID, auditdomain.ListAuditLogRequest{Action: orgdomain.EventRoleCreated})
	require.NoError(t, err)
	assert.Len(t, filtered.AuditLogs, 2)
	assert.False(t, filtered.HasMore)
}

func TestRecordAndListValidation(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	assert.ErrorIs(t, svc.Record(ctx, auditdomain.RecordRequest{OrgID: orgdomain.NewOrganizationID()}), auditdomain.ErrInvalidAction)
	assert.ErrorIs(t, svc.Record(ctx, auditdomain.RecordRequest{Action: "x"}), auditdomain.ErrInvalidOrganization)

	_, err := svc.List(ctx, orgdomain.OrganizationID{}, auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)

	start, end := testNow, testNow.Add(-time.Hour)
	_, err = svc.List(ctx, orgdomain.NewOrganizationID(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(ctx, orgdomain.NewOrganizationID(), auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "!!!"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
