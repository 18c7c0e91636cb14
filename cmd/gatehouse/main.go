package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-app/gatehouse/internal/app"
	"github.com/gatehouse-app/gatehouse/internal/auth"
	"github.com/gatehouse-app/gatehouse/internal/dashboard"
	"github.com/gatehouse-app/gatehouse/internal/observability"
	"github.com/gatehouse-app/gatehouse/internal/permissions"
	"github.com/gatehouse-app/gatehouse/internal/platform/cache"
	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/profile"
	"github.com/gatehouse-app/gatehouse/internal/rbac"
	"github.com/gatehouse-app/gatehouse/internal/roles"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/users"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "gatehouse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	rbacService := rbac.NewService(rbac.NewRepository(dbpool))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Denied: metrics}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	dashboardService := dashboard.NewService(rbacService, dashboard.NewRepository(dbpool))
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, templates, csrfManager)

	profileService := profile.NewService(rbacService, profile.NewRepository(dbpool))
	profileHandler := profile.NewHandler(logger, profileService, templates, csrfManager)

	usersService := users.NewService(rbacService, users.NewRepository(dbpool))
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, auditLogger)

	rolesService := roles.NewService(rbacService, roles.NewRepository(dbpool))
	rolesHandler := roles.NewHandler(logger, rolesService, templates, csrfManager, auditLogger)

	permissionsService := permissions.NewService(rbacService, permissions.NewRepository(dbpool))
	permissionsHandler := permissions.NewHandler(logger, permissionsService, templates, csrfManager, auditLogger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		DashboardHandler:   dashboardHandler,
		ProfileHandler:     profileHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
