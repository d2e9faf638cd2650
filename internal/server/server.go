package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/identity/internal/audit/domain"
	"github.com/smallbiznis/identity/internal/authorization"
	"github.com/smallbiznis/identity/internal/config"
	"github.com/smallbiznis/identity/internal/observability"
	obsmiddleware "github.com/smallbiznis/identity/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/identity/internal/observability/metrics"
	obstracing "github.com/smallbiznis/identity/internal/observability/tracing"
	organizationdomain "github.com/smallbiznis/identity/internal/organization/domain"
	"github.com/smallbiznis/identity/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	OrganizationSvc organizationdomain.Service
	AuthzSvc        authorization.Service        `optional:"true"`
	AuditSvc        auditdomain.Service          `optional:"true"`
	AcceptLimiter   *ratelimit.InvitationLimiter `optional:"true"`
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	organizationSvc organizationdomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	acceptLimiter   *ratelimit.InvitationLimiter
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		organizationSvc: p.OrganizationSvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		acceptLimiter:   p.AcceptLimiter,
	}
	svc.RegisterRoutes()
	return svc
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.ActorRequired())

	api.GET("/permissions", s.ListPermissions)
	api.GET("/me/access", s.GetMyAccess)
	api.POST("/invitations/accept", s.AcceptInvitationByToken)

	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations", s.ListOrganizations)

	org := api.Group("/organizations/:id")
	org.GET("", s.GetOrganization)
	org.PATCH("", s.UpdateOrganization)
	org.POST("/activate", s.ActivateOrganization)
	org.POST("/deactivate", s.DeactivateOrganization)
	org.GET("/access", s.CheckPermission)
	org.GET("/audit-logs", s.ListAuditLogs)

	org.GET("/members", s.ListMembers)
	org.POST("/members", s.AddMember)
	org.GET("/members/:user_id", s.GetMember)
	org.DELETE("/members/:user_id", s.RemoveMember)
	org.POST("/members/:user_id/roles", s.AssignRole)
	org.DELETE("/members/:user_id/roles/:role_id", s.RevokeRole)

	org.GET("/roles", s.ListRoles)
	org.POST("/roles", s.CreateRole)
	org.GET("/roles/:role_id", s.GetRole)
	org.PATCH("/roles/:role_id", s.UpdateRole)
	org.DELETE("/roles/:role_id", s.DeleteRole)
	org.PUT("/roles/:role_id/permissions", s.UpdateRolePermissions)

	org.GET("/invitations", s.ListInvitations)
	org.POST("/invitations", s.CreateInvitation)
	org.GET("/invitations/:invitation_id", s.GetInvitation)
	org.POST("/invitations/:invitation_id/accept", s.AcceptInvitation)
	org.POST("/invitations/:invitation_id/reject", s.RejectInvitation)
}
