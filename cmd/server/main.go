// Package main is the entry point for the gene-validity curation server.
// It wires PostgreSQL persistence, the two-tier score cache, and the HTTP
// API together from configuration.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/api"
	"github.com/genecurator/gene-validity-server/internal/audit"
	"github.com/genecurator/gene-validity-server/internal/cache"
	"github.com/genecurator/gene-validity-server/internal/config"
	"github.com/genecurator/gene-validity-server/internal/database"
	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/repository"
	"github.com/genecurator/gene-validity-server/internal/scoring"
	"github.com/genecurator/gene-validity-server/internal/workflow"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting gene-validity curation server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	migrationRunner, err := database.NewMigrationRunner(
		configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := migrationRunner.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	migrationRunner.Close()

	var scoreCache domain.ScoreCache
	cacheOpts := cache.Options{
		MemorySize: cfg.Cache.MemorySize,
		MemoryTTL:  cfg.Cache.MemoryTTL,
		RedisTTL:   cfg.Cache.RedisTTL,
	}
	if cfg.Cache.RedisDisabled {
		scoreCache = cache.NewMemoryOnly(cacheOpts, logger)
	} else {
		redisClient, err := cache.NewRedisClient(ctx, configManager.GetRedisConnectionString())
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisClient.Close()
		scoreCache = cache.New(redisClient, cacheOpts, logger)
	}

	curations := repository.NewCurationRepository(db.Pool, logger)
	evidence := repository.NewEvidenceRepository(db.Pool, logger)
	reviews := repository.NewReviewRepository(db.Pool, logger)
	precurations := repository.NewPrecurationRepository(db.Pool, logger)
	audits := repository.NewAuditRepository(db.Pool, logger)
	gate := repository.NewPermissionRepository(db.Pool, logger)

	machine := workflow.NewMachine(logger, curations, evidence, reviews,
		precurations, gate, scoring.NewEngine(logger), scoreCache)

	analytics, err := repository.NewAnalyticsStoreFromURL(configManager.GetDatabaseURL())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open analytics connection")
	}
	defer analytics.Close()

	server := api.NewServer(cfg, api.Deps{
		Machine:     machine,
		Coordinator: workflow.NewCoordinator(machine, cfg.Workflow.BulkConcurrency, logger),
		Recorder:    audit.NewRecorder(audits, logger),
		Evidence:    evidence,
		Curations:   curations,
		Analytics:   analytics,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Gene-validity curation server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
