package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/api"
	"github.com/rpattn/journalize/internal/config"
	"github.com/rpattn/journalize/internal/db"
	"github.com/rpattn/journalize/internal/extract"
	"github.com/rpattn/journalize/internal/journal"
	"github.com/rpattn/journalize/internal/mapping"
	"github.com/rpattn/journalize/internal/migration"
	"github.com/rpattn/journalize/internal/repository"
	"github.com/rpattn/journalize/internal/snapshot"
	"github.com/rpattn/journalize/internal/sourcefile"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(logger); err != nil {
		logger.WithError(err).Error("migration failed")
		os.Exit(1)
	}
}

// run owns the whole lifecycle so deferred cleanup executes before the
// process decides its exit code.
func run(logger *logrus.Logger) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancellation stops dispatching new entities; in-flight pipelines
	// finish their current version write.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Warn("shutdown signal received, draining in-flight entities")
		cancel()
	}()

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database); err != nil {
		return fmt.Errorf("failed to run schema migrations: %w", err)
	}

	store, err := sourcefile.Load(cfg.Source.ExportPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load tracker export: %w", err)
	}

	mapper := mapping.NewStaticMapper(cfg.Mapping)
	extractor := extract.NewExtractor(store, logger)
	builder := snapshot.NewBuilder(mapper, logger)
	journalRepo := repository.NewJournalRepository(conn.Pool)
	stateRepo := repository.NewMigrationStateRepository(conn.Pool)
	executor := journal.NewExecutor(journalRepo, journal.RetryPolicy{
		InitialInterval: cfg.Migration.RetryInitialInterval,
		MaxInterval:     cfg.Migration.RetryMaxInterval,
		MaxElapsedTime:  cfg.Migration.RetryMaxElapsedTime,
	}, logger)

	runner := migration.NewRunner(extractor, builder, journalRepo, stateRepo, executor, migration.Options{
		Workers:             cfg.Migration.Workers,
		TimestampResolution: cfg.Migration.TimestampResolution,
	}, logger)

	var server *http.Server
	if cfg.API.Enabled {
		server = api.NewServer(cfg.API.Addr, cfg.API.AllowedOrigins, runner, logger)
		go func() {
			logger.WithField("addr", cfg.API.Addr).Info("progress endpoint listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("progress endpoint failed")
			}
		}()
	}

	report := runner.Run(ctx, store.Entities())

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}

	counts := report.StateCounts()
	logger.WithFields(logrus.Fields{
		"entities":           len(report.Entities),
		"complete":           counts["complete"],
		"partially_complete": counts["partially_complete"],
		"failed":             counts["failed"],
		"skipped":            counts["skipped"],
		"duration":           report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("migration run finished")

	for _, entity := range report.Entities {
		if entity.Succeeded() {
			continue
		}
		entry := logger.WithField("entity", entity.EntityKey)
		if entity.Error != "" {
			entry = entry.WithField("error", entity.Error)
		}
		for _, failure := range entity.VersionsFailed {
			entry.WithFields(logrus.Fields{
				"version": failure.Version,
				"kind":    failure.Kind,
				"message": failure.Message,
			}).Error("version not migrated")
		}
		if len(entity.VersionsFailed) == 0 {
			entry.Error("entity not migrated")
		}
	}

	if bad := counts["failed"] + counts["partially_complete"]; bad > 0 {
		return fmt.Errorf("%d of %d entities did not fully migrate", bad, len(report.Entities))
	}
	return nil
}
