package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/audit"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/cache"
	"github.com/smallbiznis/identity/internal/clock"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/identity"
	"github.com/smallbiznis/identity/internal/notification"
	"github.com/smallbiznis/identity/internal/observability"
	"github.com/smallbiznis/identity/internal/organization"
	"github.com/smallbiznis/identity/internal/providers/email"
	"github.com/smallbiznis/identity/internal/scheduler"
	"github.com/smallbiznis/identity/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		// Outbox handlers delivered by the relay job
		organization.Module,
		authorization.Module,
		audit.Module,
		identity.Module,
		email.Module,
		notification.Module,

		// No server module!
		scheduler.Module,
		fx.Decorate(forceScheduler),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

// forceScheduler keeps the worker useful even when the shared environment
// disables the in-process scheduler for the API.
func forceScheduler(cfg config.Config) config.Config {
	cfg.Scheduler.Enabled = true
	return cfg
}
