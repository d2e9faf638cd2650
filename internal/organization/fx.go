package organization

import (
	"github.com/smallbiznis/identity/internal/organization/event"
	"github.com/smallbiznis/identity/internal/organization/repository"
	"github.com/smallbiznis/identity/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(event.NewOutboxPublisher),
	fx.Provide(event.NewRelay),
	fx.Provide(service.NewService),
)
