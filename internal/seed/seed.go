package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/identity/internal/config"
	obscontext "github.com/smallbiznis/identity/internal/observability/context"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultOrgName = "Main"

var Module = fx.Module("seed",
	fx.Invoke(registerBootstrap),
)

func registerBootstrap(lc fx.Lifecycle, cfg config.Config, svc organizationdomain.Service, log *zap.Logger) {
	if strings.TrimSpace(cfg.Bootstrap.OwnerUserID) == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			org, created, err := EnsureMainOrg(ctx, svc, cfg.Bootstrap)
			if err != nil {
				return err
			}
			log.Info("bootstrap organization ready",
				zap.String("org_id", org.ID),
				zap.Bool("created", created),
			)
			return nil
		},
	})
}

// EnsureMainOrg creates the bootstrap organization for the configured owner
// unless the owner already owns one with that name.
func EnsureMainOrg(ctx context.Context, svc organizationdomain.Service, cfg config.BootstrapConfig) (organizationdomain.OrganizationListResponseItem, bool, error) {
	owner, err := organizationdomain.ParseUserID(cfg.OwnerUserID)
	if err != nil {
		return organizationdomain.OrganizationListResponseItem{}, false, fmt.Errorf("bootstrap owner: %w", err)
	}
	name := strings.TrimSpace(cfg.OrganizationName)
	if name == "" {
		name = defaultOrgName
	}

	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeSystem, "seed")
	existing, err := svc.ListOrganizationsByUser(ctx, owner)
	if err != nil {
		return organizationdomain.OrganizationListResponseItem{}, false, err
	}
	for _, item := range existing {
		if item.IsOwner && strings.EqualFold(item.Name, name) {
			return item, false, nil
		}
	}

	org, err := svc.Create(ctx, owner, organizationdomain.CreateOrganizationRequest{Name: name})
	if err != nil {
		return organizationdomain.OrganizationListResponseItem{}, false, err
	}
	return organizationdomain.OrganizationListResponseItem{
		ID:        org.ID,
		Name:      org.Name,
		IsActive:  org.IsActive,
		IsOwner:   true,
		CreatedAt: org.CreatedAt,
	}, true, nil
}
