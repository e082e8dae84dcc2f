// Package main provides the lightweight entry point for the gene-validity
// curation server. This version requires no external services: SQLite for
// persistence, an in-memory score cache, and a file-backed role gate.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/api"
	"github.com/genecurator/gene-validity-server/internal/audit"
	"github.com/genecurator/gene-validity-server/internal/cache"
	"github.com/genecurator/gene-validity-server/internal/config"
	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/repository"
	"github.com/genecurator/gene-validity-server/internal/scoring"
	"github.com/genecurator/gene-validity-server/internal/setup"
	"github.com/genecurator/gene-validity-server/internal/workflow"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI()
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	cfg := config.LoadLiteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to prepare data directory: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"port":     cfg.HTTPPort,
	}).Info("Starting gene-validity curation server (lite)")

	store, err := repository.NewSQLiteStore(cfg.CurationDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open curation database")
	}
	defer store.Close()

	gate, err := repository.LoadStaticGate(filepath.Join(cfg.DataDir, "roles.json"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load role assignments")
	}

	scoreCache := cache.NewMemoryOnly(cache.Options{
		MemorySize: cfg.CacheMaxItems,
		MemoryTTL:  cfg.CacheTTL,
	}, logger)

	machine := workflow.NewMachine(logger, store, store, store, store, gate,
		scoring.NewEngine(logger), scoreCache)

	serverConfig := &domain.Config{
		Server: domain.ServerConfig{
			Host:         "127.0.0.1",
			Port:         cfg.HTTPPort,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit:    50,
			RateBurst:    100,
		},
		Logging: domain.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat},
	}

	server := api.NewServer(serverConfig, api.Deps{
		Machine:     machine,
		Coordinator: workflow.NewCoordinator(machine, cfg.BulkConcurrency, logger),
		Recorder:    audit.NewRecorder(store, logger),
		Evidence:    store,
		Curations:   store,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	logger.Info("Gene-validity curation server (lite) stopped")
}
