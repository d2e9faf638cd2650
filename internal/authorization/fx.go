package authorization

import (
	"github.com/smallbiznis/identity/internal/organization/event"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(fx.Annotate(NewService, fx.As(new(Service)))),
	fx.Provide(fx.Annotate(NewProjectionHandler,
		fx.As(new(event.Handler)),
		fx.ResultTags(`group:"outbox_handlers"`),
	)),
)
