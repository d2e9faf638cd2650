package audit

import (
	"github.com/smallbiznis/identity/internal/audit/repository"
	"github.com/smallbiznis/identity/internal/audit/service"
	"github.com/smallbiznis/identity/internal/organization/event"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(fx.Annotate(NewRecorder,
		fx.As(new(event.Handler)),
		fx.ResultTags(`group:"outbox_handlers"`),
	)),
)
