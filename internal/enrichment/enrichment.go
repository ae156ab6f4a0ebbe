package enrichment

import (
	"context"
	"sync"
	"time"

	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/metadata"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/store"
)

// Scope selects which entries an enrichment run targets: an explicit entry
// subset, one source's unmatched entries, or the whole library (zero SourceID
// and no EntryIDs).
type Scope struct {
	SourceID uint
	EntryIDs []uint
	Limit    int
}

// ItemStatus reports the outcome of one lookup to the onStatus callback
type ItemStatus struct {
	Entry   *models.CatalogEntry
	Matched bool
	Err     error
}

// Result summarizes an enrichment run
type Result struct {
	Processed int
	Matched   int
	Failed    int
}

// Config holds enrichment service settings
type Config struct {
	// Concurrency bounds the number of parallel catalog lookups
	Concurrency int

	// ItemTimeout bounds each individual lookup so one stuck item cannot
	// stall the batch
	ItemTimeout time.Duration
}

// DefaultConfig returns sensible defaults for the enrichment service
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		ItemTimeout: 15 * time.Second,
	}
}

// Service backfills external metadata onto stored catalog entries. Lookups
// run through a bounded worker pool; a failed lookup marks its item and moves
// on without failing the batch. Writes touch only the metadata columns, so
// running concurrently with a sync is safe.
type Service struct {
	catalog *store.Catalog
	client  *metadata.Client
	logger  *logger.Logger
	cfg     Config
}

// New creates an enrichment service
func New(catalog *store.Catalog, client *metadata.Client, log *logger.Logger, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = DefaultConfig().ItemTimeout
	}
	return &Service{
		catalog: catalog,
		client:  client,
		logger:  log,
		cfg:     cfg,
	}
}

// EnrichLibrary looks up and stores metadata for every entry in scope.
// onStatus, when set, receives one callback per processed entry.
func (s *Service) EnrichLibrary(ctx context.Context, scope Scope, onStatus func(ItemStatus)) (Result, error) {
	entries, err := s.loadScope(ctx, scope)
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{}, nil
	}

	s.logger.WithFields(map[string]interface{}{
		"entries":     len(entries),
		"concurrency": s.cfg.Concurrency,
	}).Info("enrichment started")

	jobs := make(chan *models.CatalogEntry, len(entries))
	for i := range entries {
		jobs <- &entries[i]
	}
	close(jobs)

	var (
		mu     sync.Mutex
		result Result
		wg     sync.WaitGroup
	)
	report := func(status ItemStatus) {
		mu.Lock()
		defer mu.Unlock()
		result.Processed++
		switch {
		case status.Err != nil:
			result.Failed++
		case status.Matched:
			result.Matched++
		}
		if onStatus != nil {
			onStatus(status)
		}
	}

	for i := 0; i < s.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				select {
				case <-ctx.Done():
					report(ItemStatus{Entry: entry, Err: ctx.Err()})
					continue
				default:
				}
				report(s.enrichOne(ctx, entry))
			}
		}()
	}
	wg.Wait()

	s.logger.WithFields(map[string]interface{}{
		"processed": result.Processed,
		"matched":   result.Matched,
		"failed":    result.Failed,
	}).Info("enrichment completed")

	return result, nil
}

// enrichOne resolves and stores the match for a single entry under its own timeout
func (s *Service) enrichOne(ctx context.Context, entry *models.CatalogEntry) ItemStatus {
	itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	defer cancel()

	year := entryYear(entry)
	match, err := s.client.FindBestMatch(itemCtx, entry.CanonicalTitle, year, entry.ContentType)
	if err != nil {
		return ItemStatus{Entry: entry, Err: err}
	}
	if match == nil {
		// Left unmatched, retried on a later pass
		return ItemStatus{Entry: entry}
	}

	if err := s.catalog.ApplyMatch(itemCtx, entry.ID, match); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"entry_id": entry.ID,
			"title":    entry.CanonicalTitle,
			"error":    err.Error(),
		}).Warn("failed to store metadata match")
		return ItemStatus{Entry: entry, Err: err}
	}
	return ItemStatus{Entry: entry, Matched: true}
}

// loadScope resolves the scope into concrete entries
func (s *Service) loadScope(ctx context.Context, scope Scope) ([]models.CatalogEntry, error) {
	if len(scope.EntryIDs) > 0 {
		return s.catalog.ByIDs(ctx, scope.EntryIDs)
	}
	return s.catalog.Unmatched(ctx, scope.SourceID, scope.Limit)
}

func entryYear(entry *models.CatalogEntry) *int {
	if entry.Year == nil {
		return nil
	}
	year := 0
	for _, r := range *entry.Year {
		if r < '0' || r > '9' {
			return nil
		}
		year = year*10 + int(r-'0')
	}
	if year == 0 {
		return nil
	}
	return &year
}
