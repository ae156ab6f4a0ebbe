package main

import (
	"fmt"
	"time"

	"github.com/pvasseur/streamsync/internal/config"
	"github.com/pvasseur/streamsync/internal/database"
	"github.com/pvasseur/streamsync/internal/enrichment"
	"github.com/pvasseur/streamsync/internal/filter"
	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/metadata"
	"github.com/pvasseur/streamsync/internal/retry"
	"github.com/pvasseur/streamsync/internal/store"
	"github.com/pvasseur/streamsync/internal/syncer"
)

// app bundles the wired pipeline components shared by the CLI commands
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	sources  *store.Sources
	catalog  *store.Catalog
	logs     *store.SyncLogs
	engine   *syncer.Engine
	enricher *enrichment.Service
}

// buildApp connects to the database and wires the pipeline. The enricher is
// nil when the metadata catalog is disabled or has no API key.
func buildApp() (*app, error) {
	cfg := config.Get()
	log := logger.AppLogger()

	if err := database.Initialize(); err != nil {
		return nil, err
	}
	db := database.Get()

	client := httpx.New(httpx.Config{
		Timeout:     time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		UserAgents:  cfg.HTTP.UserAgents,
		InsecureTLS: cfg.HTTP.InsecureTLS,
		Retry: retry.Config{
			MaxAttempts:       cfg.HTTP.RetryAttempts,
			InitialBackoff:    time.Duration(cfg.HTTP.BackoffMs) * time.Millisecond,
			MaxBackoff:        time.Duration(cfg.HTTP.MaxBackoffMs) * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		Logger: log,
	})

	filters := filter.NewManager()
	if err := filters.LoadFromConfig(); err != nil {
		return nil, fmt.Errorf("failed to load filters: %w", err)
	}

	sources := store.NewSources(db)
	catalog := store.NewCatalog(db, log)
	logs := store.NewSyncLogs(db)

	engine := syncer.New(sources, catalog, logs, client, filters, log, syncer.Config{
		Freshness:     time.Duration(cfg.Sync.FreshnessMinutes) * time.Minute,
		BatchSize:     cfg.Sync.BatchSize,
		CategoryDelay: time.Duration(cfg.Sync.CategoryDelayMs) * time.Millisecond,
	})

	var enricher *enrichment.Service
	if cfg.TMDB.Enabled && cfg.TMDB.APIKey != "" {
		metaClient := metadata.NewClient(metadata.Config{
			APIKey:   cfg.TMDB.APIKey,
			Language: cfg.TMDB.Language,
			HTTP:     client,
			Logger:   log,
		})
		enricher = enrichment.New(catalog, metaClient, log, enrichment.Config{
			Concurrency: cfg.Enrichment.Concurrency,
			ItemTimeout: time.Duration(cfg.Enrichment.ItemTimeoutSeconds) * time.Second,
		})
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		sources:  sources,
		catalog:  catalog,
		logs:     logs,
		engine:   engine,
		enricher: enricher,
	}, nil
}
