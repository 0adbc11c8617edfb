package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-behavior-api/api/swagger"
	"github.com/noah-isme/sma-behavior-api/internal/handler"
	"github.com/noah-isme/sma-behavior-api/internal/incident"
	"github.com/noah-isme/sma-behavior-api/internal/repository"
	"github.com/noah-isme/sma-behavior-api/internal/service"
	"github.com/noah-isme/sma-behavior-api/pkg/cache"
	"github.com/noah-isme/sma-behavior-api/pkg/config"
	"github.com/noah-isme/sma-behavior-api/pkg/database"
	"github.com/noah-isme/sma-behavior-api/pkg/jobs"
	"github.com/noah-isme/sma-behavior-api/pkg/logger"
)

// @title School Behavior Incident API
// @version 1.0.0
// @description Records and tracks student behaviour incidents through their lifecycle.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	loc, err := cfg.Incidents.Location()
	if err != nil {
		logr.Warn("falling back to UTC", zap.Error(err))
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB, logr); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("cache disabled, redis unreachable", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Incidents.CacheTTL, logr, redisClient != nil)

	incidentRepo := repository.NewIncidentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	queue := jobs.NewQueue("notifications", jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.Retries,
		Logger:     logr,
		Observer:   metrics.ObserveNotificationJob,
	})
	notifications := service.NewNotificationService(queue, service.NewLogNotifier(logr), logr)
	queue.Start(ctx)
	defer queue.Stop()

	validate := incident.NewValidator()
	assembler := incident.NewAssembler(
		incident.WithLocation(loc),
		incident.WithMinAcademicYear(cfg.Incidents.MinAcademicYear),
		incident.WithValidator(validate),
	)
	incidents := service.NewIncidentService(incidentRepo, studentRepo, assembler, validate,
		service.IncidentServiceConfig{
			InstitutionID: cfg.Incidents.InstitutionID,
			Location:      loc,
			CacheTTL:      cfg.Incidents.CacheTTL,
		},
		logr,
		service.WithIncidentAudit(auditRepo),
		service.WithIncidentCache(cacheSvc),
		service.WithIncidentMetrics(metrics),
		service.WithGraveNotifier(notifications),
	)

	if cfg.FollowUp.Enabled {
		scheduler := service.NewFollowUpScheduler(incidentRepo, notifications, metrics, loc, logr)
		if err := scheduler.Start(ctx, cfg.FollowUp.Schedule); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
	}, handler.RouterDeps{
		Incidents: handler.NewIncidentHandler(incidents),
		Health: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}),
		Metrics: metrics,
		Tokens:  service.NewTokenService(cfg.JWT.Secret),
		Audit:   auditRepo,
		Logger:  logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
