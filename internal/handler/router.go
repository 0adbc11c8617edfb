package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-behavior-api/internal/middleware"
	"github.com/noah-isme/sma-behavior-api/internal/models"
	"github.com/noah-isme/sma-behavior-api/internal/service"
	"github.com/noah-isme/sma-behavior-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-behavior-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-behavior-api/pkg/middleware/requestid"
)

// RouterConfig carries the HTTP surface settings.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
}

// RouterDeps are the collaborators mounted on the router.
type RouterDeps struct {
	Incidents *IncidentHandler
	Health    *MetricsHandler
	Metrics   *service.MetricsService
	Tokens    middleware.TokenValidator
	Audit     middleware.AuditWriter
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig, deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.Health.Health)
	r.GET("/ready", deps.Health.Ready)
	r.GET("/metrics", deps.Health.Prometheus)
	if cfg.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.Tokens), middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin))

	incidents := api.Group("/incidents")
	incidents.GET("", deps.Incidents.List)
	incidents.POST("", deps.Incidents.Create)
	incidents.POST("/validate", deps.Incidents.ValidateNew)
	incidents.GET("/export", middleware.Audit(deps.Audit, models.AuditActionIncidentExport, models.AuditResourceIncident, deps.Logger), deps.Incidents.Export)
	incidents.GET("/:id", deps.Incidents.Get)
	incidents.PUT("/:id", deps.Incidents.Update)
	incidents.POST("/:id/validate", deps.Incidents.ValidateEdit)

	api.GET("/students/:id/incidents/summary", deps.Incidents.StudentSummary)
	return r
}
