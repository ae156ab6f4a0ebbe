package store

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/metadata"
	"github.com/pvasseur/streamsync/internal/models"
)

// Catalog persists catalog entries. The sync engine and the enrichment
// service write disjoint column sets (see models.CatalogColumns and
// models.MetadataColumns), so their concurrent writes to the same row never
// clobber each other.
type Catalog struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewCatalog creates a catalog store
func NewCatalog(db *gorm.DB, log *logger.Logger) *Catalog {
	return &Catalog{db: db, logger: log}
}

// UpsertBatch inserts or updates one batch of entries in a single
// transaction, keyed by (source_id, stream_url). Existing rows have only the
// sync-owned columns overwritten; metadata columns are untouched.
func (c *Catalog) UpsertBatch(ctx context.Context, entries []models.CatalogEntry) error {
	entries = dedupeByStreamKey(entries)
	if len(entries) == 0 {
		return nil
	}

	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}, {Name: "stream_url"}},
		DoUpdates: clause.AssignmentColumns(models.CatalogColumns()),
	}).Create(&entries).Error
	if err != nil {
		return apperrors.DatabaseError("failed to upsert catalog batch", err)
	}
	return nil
}

// dedupeByStreamKey collapses rows sharing (source_id, stream_url) to the
// last occurrence. Dirty playlists list the same stream under several groups,
// and Postgres rejects a multi-row upsert whose rows conflict with each other.
func dedupeByStreamKey(entries []models.CatalogEntry) []models.CatalogEntry {
	type streamKey struct {
		sourceID  uint
		streamURL string
	}

	slots := make(map[streamKey]int, len(entries))
	deduped := make([]models.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		key := streamKey{entry.SourceID, entry.StreamURL}
		if i, ok := slots[key]; ok {
			deduped[i] = entry
			continue
		}
		slots[key] = len(deduped)
		deduped = append(deduped, entry)
	}
	return deduped
}

// PurgeSource deletes every entry of one source inside a single transaction.
// Used by full resync before re-inserting the fresh fetch.
func (c *Catalog) PurgeSource(ctx context.Context, sourceID uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("source_id = ?", sourceID).Delete(&models.CatalogEntry{}).Error
	})
	if err != nil {
		return apperrors.DatabaseError("failed to purge source entries", err)
	}
	return nil
}

// CountBySource returns the number of stored entries for one source
func (c *Catalog) CountBySource(ctx context.Context, sourceID uint) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&models.CatalogEntry{}).
		Where("source_id = ?", sourceID).Count(&count).Error
	if err != nil {
		return 0, apperrors.DatabaseError("failed to count source entries", err)
	}
	return count, nil
}

// Unmatched returns entries still missing an external metadata reference.
// Live channels are excluded: they have no catalog counterpart. A zero
// sourceID spans the whole library.
func (c *Catalog) Unmatched(ctx context.Context, sourceID uint, limit int) ([]models.CatalogEntry, error) {
	query := c.db.WithContext(ctx).
		Where("tmdb_id IS NULL").
		Where("content_type <> ?", models.ContentTypeLive).
		Order("id")
	if sourceID != 0 {
		query = query.Where("source_id = ?", sourceID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.CatalogEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load unmatched entries", err)
	}
	return entries, nil
}

// ListQuery narrows a catalog listing
type ListQuery struct {
	SourceID    uint
	ContentType models.ContentType
	GroupTitle  string
	Matched     *bool
	Search      string
	Limit       int
	Offset      int
}

// List returns a page of catalog entries plus the total count of the
// unpaginated query
func (c *Catalog) List(ctx context.Context, q ListQuery) ([]models.CatalogEntry, int64, error) {
	query := c.db.WithContext(ctx).Model(&models.CatalogEntry{})
	if q.SourceID != 0 {
		query = query.Where("source_id = ?", q.SourceID)
	}
	if q.ContentType != "" {
		query = query.Where("content_type = ?", q.ContentType)
	}
	if q.GroupTitle != "" {
		query = query.Where("group_title = ?", q.GroupTitle)
	}
	if q.Matched != nil {
		if *q.Matched {
			query = query.Where("tmdb_id IS NOT NULL")
		} else {
			query = query.Where("tmdb_id IS NULL")
		}
	}
	if q.Search != "" {
		query = query.Where("LOWER(canonical_title) LIKE ?", "%"+strings.ToLower(q.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.DatabaseError("failed to count catalog entries", err)
	}

	query = query.Order("id")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var entries []models.CatalogEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, 0, apperrors.DatabaseError("failed to list catalog entries", err)
	}
	return entries, total, nil
}

// LibraryStats aggregates catalog counts
type LibraryStats struct {
	TotalEntries  int64
	ByContentType map[string]int64
	BySource      map[uint]int64
	Matched       int64
}

// Stats returns aggregate counts over the whole catalog
func (c *Catalog) Stats(ctx context.Context) (*LibraryStats, error) {
	stats := &LibraryStats{
		ByContentType: make(map[string]int64),
		BySource:      make(map[uint]int64),
	}

	model := func() *gorm.DB {
		return c.db.WithContext(ctx).Model(&models.CatalogEntry{})
	}

	if err := model().Count(&stats.TotalEntries).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to count catalog entries", err)
	}
	if err := model().Where("tmdb_id IS NOT NULL").Count(&stats.Matched).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to count matched entries", err)
	}

	var byType []struct {
		ContentType string
		Count       int64
	}
	err := model().Select("content_type, COUNT(*) as count").
		Group("content_type").Scan(&byType).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to count entries by content type", err)
	}
	for _, row := range byType {
		stats.ByContentType[row.ContentType] = row.Count
	}

	var bySource []struct {
		SourceID uint
		Count    int64
	}
	err = model().Select("source_id, COUNT(*) as count").
		Group("source_id").Scan(&bySource).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to count entries by source", err)
	}
	for _, row := range bySource {
		stats.BySource[row.SourceID] = row.Count
	}

	return stats, nil
}

// ByIDs loads an explicit subset of entries
func (c *Catalog) ByIDs(ctx context.Context, ids []uint) ([]models.CatalogEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []models.CatalogEntry
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&entries).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to load entries by id", err)
	}
	return entries, nil
}

// ApplyMatch writes one match result onto an entry, touching only the
// metadata-owned columns so a concurrent sync upsert cannot be clobbered.
func (c *Catalog) ApplyMatch(ctx context.Context, entryID uint, match *metadata.MatchResult) error {
	now := time.Now()
	updates := map[string]interface{}{
		"tmdb_id":    match.TMDBID,
		"matched_at": now,
		"updated_at": now,
	}
	if match.PosterPath != "" {
		updates["poster_path"] = match.PosterPath
	}
	if match.BackdropPath != "" {
		updates["backdrop_path"] = match.BackdropPath
	}

	err := c.db.WithContext(ctx).Model(&models.CatalogEntry{}).
		Where("id = ?", entryID).
		Select(models.MetadataColumns()).
		Updates(updates).Error
	if err != nil {
		return apperrors.DatabaseError("failed to apply metadata match", err)
	}
	return nil
}
