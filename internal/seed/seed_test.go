package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/organization/event"
	"github.com/smallbiznis/identity/internal/organization/repository"
	"github.com/smallbiznis/identity/internal/organization/service"
	"github.com/smallbiznis/identity/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) organizationdomain.Service {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(repository.Models()...))
	require.NoError(t, conn.AutoMigrate(event.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return service.NewService(service.Params{
		DB:        conn,
		Repo:      repository.NewRepository(conn),
		Publisher: event.NewOutboxPublisher(conn, node, nil),
		Clock:     clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		Log:       zap.NewNop(),
		Config:    config.Config{MaxConflictRetries: 3},
	})
}

func TestEnsureMainOrgIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	owner := uuid.NewString()
	cfg := config.BootstrapConfig{OwnerUserID: owner}

	first, created, err := EnsureMainOrg(ctx, svc, cfg)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, defaultOrgName, first.Name)

	second, created, err := EnsureMainOrg(ctx, svc, cfg)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	userID, err := organizationdomain.ParseUserID(owner)
	require.NoError(t, err)
	items, err := svc.ListOrganizationsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestEnsureMainOrgRejectsBadOwner(t *testing.T) {
	_, _, err := EnsureMainOrg(context.Background(), newService(t), config.BootstrapConfig{OwnerUserID: "root"})
	assert.ErrorIs(t, err, organizationdomain.ErrInvalidUser)
}
