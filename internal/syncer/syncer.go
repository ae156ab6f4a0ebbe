package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/fetcher"
	"github.com/pvasseur/streamsync/internal/filter"
	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/store"
)

// Stage identifies where a sync run currently is
type Stage string

const (
	StageIdle       Stage = "idle"
	StageConnecting Stage = "connecting"
	StageFetching   Stage = "fetching"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Stats carries the running counts of one sync run
type Stats struct {
	LiveCount   int `json:"live_count"`
	MovieCount  int `json:"movie_count"`
	SeriesCount int `json:"series_count"`
	Persisted   int `json:"persisted"`
}

// ProgressEvent is one progress update emitted during a sync run. The
// orchestration layer drains these from a channel; the engine never blocks on
// a slow consumer.
type ProgressEvent struct {
	Stage       Stage              `json:"stage"`
	ContentType models.ContentType `json:"content_type,omitempty"`
	Stats       Stats              `json:"stats"`
	Message     string             `json:"message,omitempty"`
}

// Config holds sync engine settings
type Config struct {
	// Freshness is the window within which a non-forced sync is a no-op
	Freshness time.Duration

	// BatchSize is the number of entries committed per upsert transaction
	BatchSize int

	// CategoryDelay paces per-category Xtream requests on the overload
	// fallback path; zero keeps the fetcher default
	CategoryDelay time.Duration
}

// DefaultConfig returns sensible defaults for the sync engine
func DefaultConfig() Config {
	return Config{
		Freshness: 6 * time.Hour,
		BatchSize: 500,
	}
}

// Engine drives the playlist ingestion pipeline for configured sources.
// A single source never has two concurrent runs; different sources may sync
// in parallel.
type Engine struct {
	sources *store.Sources
	catalog *store.Catalog
	logs    *store.SyncLogs
	client  *httpx.Client
	filters *filter.Manager
	logger  *logger.Logger
	cfg     Config

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// New creates a sync engine
func New(sources *store.Sources, catalog *store.Catalog, logs *store.SyncLogs, client *httpx.Client, filters *filter.Manager, log *logger.Logger, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Engine{
		sources: sources,
		catalog: catalog,
		logs:    logs,
		client:  client,
		filters: filters,
		logger:  log,
		cfg:     cfg,
		locks:   make(map[uint]*sync.Mutex),
	}
}

// Sync runs the pipeline for one source. It returns true when the stored
// catalog changed. When force is false and the source synced within the
// freshness window the run is a no-op.
func (e *Engine) Sync(ctx context.Context, sourceID uint, force bool, progress chan<- ProgressEvent) (bool, error) {
	return e.run(ctx, sourceID, force, false, progress)
}

// FullResync wipes the stored entries of one source and replaces them with a
// fresh fetch. The fetch happens first so an unreachable upstream does not
// destroy the existing catalog.
func (e *Engine) FullResync(ctx context.Context, sourceID uint, progress chan<- ProgressEvent) (bool, error) {
	return e.run(ctx, sourceID, true, true, progress)
}

func (e *Engine) run(ctx context.Context, sourceID uint, force, purge bool, progress chan<- ProgressEvent) (bool, error) {
	lock := e.sourceLock(sourceID)
	if !lock.TryLock() {
		return false, apperrors.New(apperrors.CodeSyncRunning,
			fmt.Sprintf("sync already running for source %d", sourceID))
	}
	defer lock.Unlock()

	source, err := e.sources.Get(ctx, sourceID)
	if err != nil {
		return false, err
	}

	if !force && e.isFresh(source) {
		e.logger.WithFields(map[string]interface{}{
			"source": source.Name,
		}).Debug("source is fresh, skipping sync")
		e.emit(progress, ProgressEvent{Stage: StageDone, Message: "up to date"})
		return false, nil
	}

	action := "sync"
	if purge {
		action = "full_resync"
	}
	runLog, err := e.logs.StartRun(ctx, &sourceID, action)
	if err != nil {
		return false, err
	}
	ctx = logger.ContextWithSyncRunID(ctx, runLog.RunID)

	log := e.logger.WithFields(map[string]interface{}{
		"source": source.Name,
		"action": action,
	})
	log.InfoContext(ctx, "sync started")

	stats, err := e.pipeline(ctx, source, purge, progress)
	if err != nil {
		syncErr := apperrors.SyncError(
			fmt.Sprintf("sync failed for source %s: %s", source.Name, err.Error()), err)
		if logErr := e.logs.FailRun(ctx, runLog, syncErr); logErr != nil {
			log.WarnContext(ctx, "failed to record run failure: "+logErr.Error())
		}
		e.emit(progress, ProgressEvent{Stage: StageFailed, Stats: stats, Message: syncErr.Message})
		return stats.Persisted > 0, syncErr
	}

	if err := e.logs.CompleteRun(ctx, runLog, stats.LiveCount, stats.MovieCount, stats.SeriesCount); err != nil {
		log.WarnContext(ctx, "failed to record run completion: "+err.Error())
	}
	if err := e.sources.TouchLastSync(ctx, sourceID, time.Now()); err != nil {
		log.WarnContext(ctx, "failed to update last sync time: "+err.Error())
	}

	e.logger.WithFields(map[string]interface{}{
		"source": source.Name,
		"live":   stats.LiveCount,
		"movies": stats.MovieCount,
		"series": stats.SeriesCount,
	}).InfoContext(ctx, "sync completed")
	e.emit(progress, ProgressEvent{Stage: StageDone, Stats: stats})

	return stats.Persisted > 0 || purge, nil
}

// pipeline fetches, filters, and persists the source's catalog
func (e *Engine) pipeline(ctx context.Context, source *models.PlaylistSource, purge bool, progress chan<- ProgressEvent) (Stats, error) {
	var stats Stats

	e.emit(progress, ProgressEvent{Stage: StageConnecting})

	entries, err := e.fetch(ctx, source, &stats, progress)
	if err != nil {
		return stats, err
	}

	if e.filters != nil {
		entries = e.filters.Apply(entries)
	}

	if purge {
		if err := e.catalog.PurgeSource(ctx, source.ID); err != nil {
			return stats, err
		}
	}

	e.emit(progress, ProgressEvent{Stage: StagePersisting, Stats: stats})
	for start := 0; start < len(entries); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := e.catalog.UpsertBatch(ctx, entries[start:end]); err != nil {
			// Committed batches stay committed; the run is resumable
			return stats, err
		}
		stats.Persisted = end
		e.emit(progress, ProgressEvent{Stage: StagePersisting, Stats: stats})
	}

	return stats, nil
}

// fetch runs the source's adapter. Xtream sources report per-content-type
// progress in the fixed live, movies, series order; M3U playlists arrive as
// one document.
func (e *Engine) fetch(ctx context.Context, source *models.PlaylistSource, stats *Stats, progress chan<- ProgressEvent) ([]models.CatalogEntry, error) {
	adapter := fetcher.ForSource(source, e.client, e.logger)

	xtream, ok := adapter.(*fetcher.XtreamFetcher)
	if !ok {
		e.emit(progress, ProgressEvent{Stage: StageFetching})
		entries, err := adapter.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		countByType(entries, stats)
		e.emit(progress, ProgressEvent{Stage: StageFetching, Stats: *stats})
		return entries, nil
	}
	xtream.SetCategoryDelay(e.cfg.CategoryDelay)

	var entries []models.CatalogEntry
	for _, contentType := range []models.ContentType{models.ContentTypeLive, models.ContentTypeMovie, models.ContentTypeSeries} {
		e.emit(progress, ProgressEvent{Stage: StageFetching, ContentType: contentType, Stats: *stats})
		batch, err := xtream.FetchContentType(ctx, source, contentType)
		if err != nil {
			return nil, err
		}
		countByType(batch, stats)
		entries = append(entries, batch...)
		e.emit(progress, ProgressEvent{Stage: StageFetching, ContentType: contentType, Stats: *stats})
	}
	return entries, nil
}

func countByType(entries []models.CatalogEntry, stats *Stats) {
	for _, entry := range entries {
		switch entry.ContentType {
		case models.ContentTypeLive:
			stats.LiveCount++
		case models.ContentTypeMovie:
			stats.MovieCount++
		default:
			stats.SeriesCount++
		}
	}
}

// isFresh reports whether the source synced within the freshness window
func (e *Engine) isFresh(source *models.PlaylistSource) bool {
	if e.cfg.Freshness <= 0 || source.LastSyncAt == nil {
		return false
	}
	return time.Since(*source.LastSyncAt) < e.cfg.Freshness
}

// sourceLock returns the per-source mutex, creating it on first use
func (e *Engine) sourceLock(sourceID uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[sourceID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[sourceID] = lock
	}
	return lock
}

// emit delivers a progress event without ever blocking the pipeline
func (e *Engine) emit(progress chan<- ProgressEvent, event ProgressEvent) {
	if progress == nil {
		return
	}
	select {
	case progress <- event:
	default:
	}
}
