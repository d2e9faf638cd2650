package notification

import (
	"github.com/smallbiznis/identity/internal/organization/event"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(fx.Annotate(NewInvitationMailer,
		fx.As(new(event.Handler)),
		fx.ResultTags(`group:"outbox_handlers"`),
	)),
)
