package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/container"
	apperrors "investorradar/internal/errors"
	"investorradar/internal/migration"
)

// shutdownGrace bounds how long in-flight requests get after SIGTERM.
const shutdownGrace = 15 * time.Second

// initDatabase connects the pool and applies the schema migrations.
func initDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, apperrors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to connect to database")
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "database migration failed")
	}
	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := internal.NewDefaultLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	appContainer, err := container.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	if err := appContainer.InitWithDatabase(ctx, db); err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer appContainer.Shutdown()

	if err := appContainer.Auth.EnsureAdmin(ctx); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	appContainer.Scheduler.Start()

	apiServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: appContainer.Server.Router(),
	}
	opsServer := &http.Server{
		Addr:    ":" + cfg.Server.OpsPort,
		Handler: appContainer.OpsHandler(),
	}

	errs := make(chan error, 2)
	go func() {
		logger.Info("ops server listening on :%s", cfg.Server.OpsPort)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- apperrors.Wrap(err, "ops server failed")
		}
	}()
	go func() {
		logger.Info("api server listening on :%s", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- apperrors.Wrap(err, "api server failed")
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		logger.Error("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown: %v", err)
	}
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown: %v", err)
	}
	logger.Info("stopped")
}
