package identity

import (
	"github.com/smallbiznis/identity/internal/organization/event"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(NewClient),
	fx.Provide(NewDirectory),
	fx.Provide(
		fx.Annotate(
			NewSyncHandler,
			fx.ResultTags(`group:"outbox_handlers"`),
		),
	),
)

var _ event.Handler = (*SyncHandler)(nil)
