package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/regnify/regnify-api/app/db"
	appLogger "github.com/regnify/regnify-api/app/logger"
	"github.com/regnify/regnify-api/app/observability/metrics"
	"github.com/regnify/regnify-api/app/tracer"
	"github.com/regnify/regnify-api/config"
	"github.com/regnify/regnify-api/internal/api/auth"
	"github.com/regnify/regnify-api/internal/api/role"
	"github.com/regnify/regnify-api/internal/api/user"
	appMail "github.com/regnify/regnify-api/internal/mail"
	"github.com/regnify/regnify-api/internal/platform"
	"github.com/regnify/regnify-api/internal/router"
)

func main() {
	// Standard log until slog is configured, in case godotenv fails.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsHandler, err := tracer.InitTracingAndMetrics(logger)
	if err != nil {
		logger.Error("Failed to initialize observability", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Migrations run before the main pool opens.
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Dependency injection ---
	appMetrics := metrics.Get()
	mailer := appMail.NewMailer(cfg.Mail, logger)
	tokenService := auth.NewTokenService(cfg.JWT)

	userRepo := user.NewPostgresUserRepo(pool, logger)
	roleRepo := role.NewPostgresRoleRepo(pool, logger)

	authService := auth.NewAuthService(userRepo, tokenService, logger, appMetrics)
	userService := user.NewUserService(userRepo, tokenService, mailer, cfg.Admin, logger)
	roleService := role.NewRoleService(roleRepo, logger)

	authHandler := auth.NewAuthHandler(authService, logger)
	userHandler := user.NewUserHandler(userService, logger)
	roleHandler := role.NewRoleHandler(roleService, logger)
	authMiddleware := auth.NewMiddleware(logger, tokenService, userRepo, appMetrics)

	if err := platform.EnsureAdminUser(ctx, userRepo, cfg.Admin, logger); err != nil {
		logger.Error("Failed to bootstrap admin user", slog.Any("error", err))
		os.Exit(1)
	}
	if err := platform.EnsureDefaultRoles(ctx, userRepo, roleRepo, cfg.Admin, logger); err != nil {
		logger.Error("Failed to bootstrap default roles", slog.Any("error", err))
		os.Exit(1)
	}

	apiRouter := router.SetupRouter(&router.Config{
		AuthHandler:    authHandler,
		UserHandler:    userHandler,
		RoleHandler:    roleHandler,
		AuthMiddleware: authMiddleware,
		MetricsHandler: metricsHandler,
	})

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		logger.Info("HTTP server gracefully stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
