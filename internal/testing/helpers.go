package testing

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pvasseur/streamsync/internal/models"
)

// TestDB creates an in-memory SQLite database for testing
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.PlaylistSource{},
		&models.CatalogEntry{},
		&models.SyncLog{},
	); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// CleanupDB removes all records from test database tables
func CleanupDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	db.Exec("DELETE FROM catalog_entries")
	db.Exec("DELETE FROM sync_logs")
	db.Exec("DELETE FROM playlist_sources")
}

// CreateSource creates a test playlist source
func CreateSource(db *gorm.DB, overrides ...func(*models.PlaylistSource)) *models.PlaylistSource {
	source := &models.PlaylistSource{
		Name:      "test-source",
		Kind:      models.SourceKindM3U,
		URL:       "http://example.com/playlist.m3u8",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	for _, override := range overrides {
		override(source)
	}

	db.Create(source)
	return source
}

// CreateEntry creates a test catalog entry belonging to the given source
func CreateEntry(db *gorm.DB, sourceID uint, overrides ...func(*models.CatalogEntry)) *models.CatalogEntry {
	entry := &models.CatalogEntry{
		SourceID:       sourceID,
		StreamURL:      fmt.Sprintf("http://example.com/stream/%d", time.Now().UnixNano()),
		RawTitle:       "Test Movie (2024)",
		CanonicalTitle: "Test Movie",
		GroupTitle:     "Movies",
		ContentType:    models.ContentTypeMovie,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	for _, override := range overrides {
		override(entry)
	}

	db.Create(entry)
	return entry
}

// WithXtream configures a source as an Xtream panel
func WithXtream(username, password string) func(*models.PlaylistSource) {
	return func(source *models.PlaylistSource) {
		source.Kind = models.SourceKindXtream
		source.Username = username
		source.Password = password
	}
}

// WithLastSync sets the source last-sync timestamp
func WithLastSync(at time.Time) func(*models.PlaylistSource) {
	return func(source *models.PlaylistSource) {
		source.LastSyncAt = &at
	}
}

// WithStreamURL sets the entry stream URL
func WithStreamURL(url string) func(*models.CatalogEntry) {
	return func(entry *models.CatalogEntry) {
		entry.StreamURL = url
	}
}

// WithTitle sets the entry raw and canonical titles
func WithTitle(raw, canonical string) func(*models.CatalogEntry) {
	return func(entry *models.CatalogEntry) {
		entry.RawTitle = raw
		entry.CanonicalTitle = canonical
	}
}

// WithContentType sets the entry content type
func WithContentType(contentType models.ContentType) func(*models.CatalogEntry) {
	return func(entry *models.CatalogEntry) {
		entry.ContentType = contentType
	}
}

// WithGroup sets the entry group label
func WithGroup(group string) func(*models.CatalogEntry) {
	return func(entry *models.CatalogEntry) {
		entry.GroupTitle = group
	}
}

// WithMatch marks the entry as already matched against the metadata catalog
func WithMatch(tmdbID int, posterPath string) func(*models.CatalogEntry) {
	return func(entry *models.CatalogEntry) {
		now := time.Now()
		entry.TMDBID = &tmdbID
		entry.PosterPath = &posterPath
		entry.MatchedAt = &now
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", message, err)
	}
}

// AssertEqual fails the test if expected != actual
func AssertEqual[T comparable](t *testing.T, expected, actual T, message string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", message, expected, actual)
	}
}

// AssertCount verifies the count of records in a table
func AssertCount(t *testing.T, db *gorm.DB, model interface{}, expected int64, message string) {
	t.Helper()
	var count int64
	db.Model(model).Count(&count)
	if count != expected {
		t.Fatalf("%s: expected count %d, got %d", message, expected, count)
	}
}
