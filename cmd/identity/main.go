package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/audit"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/cache"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/identity"
	"github.com/smallbiznis/identity/internal/migration"
	"github.com/smallbiznis/identity/internal/notification"
	"github.com/smallbiznis/identity/internal/observability"
	"github.com/smallbiznis/identity/internal/organization"
	"github.com/smallbiznis/identity/internal/providers/email"
	"github.com/smallbiznis/identity/internal/ratelimit"
	"github.com/smallbiznis/identity/internal/scheduler"
	"github.com/smallbiznis/identity/internal/seed"
	"github.com/smallbiznis/identity/internal/server"
	"github.com/smallbiznis/identity/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		migration.Module,

		// Functional Domains
		organization.Module,
		authorization.Module,
		audit.Module,
		identity.Module,
		email.Module,
		notification.Module,
		scheduler.Module,
		seed.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
