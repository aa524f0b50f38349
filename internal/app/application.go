// Package app assembles the townfeed application with uber-fx.
package app

import (
	"context"
	"embed"
	"net/http"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/feed"
	"github.com/harborlight/townfeed/internal/ingest"
	"github.com/harborlight/townfeed/internal/metrics"
	"github.com/harborlight/townfeed/internal/produce"
	"github.com/harborlight/townfeed/internal/runlog"
	"github.com/harborlight/townfeed/internal/server"
	storageAdapter "github.com/harborlight/townfeed/internal/storage"
	storageGCS "github.com/harborlight/townfeed/internal/storage/gcs"
	storageLocal "github.com/harborlight/townfeed/internal/storage/local"
	"github.com/harborlight/townfeed/internal/support/logger"
)

const migrationsPath = "resources/migrations"

// RunApplication sets up and runs the application using uber-fx. Run
// blocks until a termination signal arrives, then unwinds the lifecycle
// hooks.
func RunApplication(envFilePath string, embeddedConfig config.EmbeddedConfig, migrationsFS embed.FS) {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			migrationsFS,
		),

		logger.Module,
		config.Module,
		storageAdapter.Module,
		storageLocal.Module,
		storageGCS.Module,
		runlog.Module,
		metrics.Module,
		ingest.Module,
		feed.Module,
		server.Module,

		fx.Provide(
			produce.NewParser,
			produce.NewAnalyticsEngine,
			produce.NewSnapshotStore,
			produce.NewPartitionBuilder,
			produce.NewBackfillCoordinator,
		),

		fx.Invoke(applyMigrations),
		fx.Invoke(setupTracing),
		fx.Invoke(registerShutdownHooks),
		fx.Invoke(func(*http.Server) {}),
	)

	app.Run()

	if err := app.Err(); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}

// applyMigrations brings the run-log schema up to date before anything
// writes to it.
func applyMigrations(cfg *config.Config, db *gorm.DB, migrationsFS embed.FS) error {
	return runlog.Migrate(db, cfg.Townfeed.Database.Dialect, migrationsFS, migrationsPath)
}

// setupTracing initializes the tracer provider and shuts it down with the
// application.
func setupTracing(lc fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := metrics.InitTracing(context.Background(), cfg)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})
	return nil
}

// ShutdownParams collects everything that holds external resources.
type ShutdownParams struct {
	fx.In
	DB        *gorm.DB
	Providers []storageAdapter.StorageProvider `group:"storage_providers"`
}

// registerShutdownHooks closes the database and every storage provider on
// application stop.
func registerShutdownHooks(lc fx.Lifecycle, p ShutdownParams) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			for _, provider := range p.Providers {
				if err := provider.CloseAll(); err != nil {
					logger.Errorf("Failed to close storage provider '%s': %v", provider.Type(), err)
				}
			}
			if err := runlog.CloseDB(p.DB); err != nil {
				logger.Errorf("Failed to close run-log database: %v", err)
				return err
			}
			logger.Infof("Application resources released.")
			return nil
		},
	})
}
