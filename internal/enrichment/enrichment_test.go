package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/metadata"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/retry"
	"github.com/pvasseur/streamsync/internal/store"
	testhelpers "github.com/pvasseur/streamsync/internal/testing"
)

func newTestService(db *gorm.DB, catalogURL string, cfg Config) (*Service, *store.Catalog) {
	log := logger.Default()
	catalog := store.NewCatalog(db, log)
	client := metadata.NewClient(metadata.Config{
		APIKey:  "test-key",
		BaseURL: catalogURL,
		HTTP: httpx.New(httpx.Config{
			UserAgents: []string{"test-agent"},
			Retry:      retry.Config{MaxAttempts: 1, InitialBackoff: 1},
		}),
	})
	return New(catalog, client, log, cfg), catalog
}

func matchServer(t *testing.T, handler func(query string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, handler(r.URL.Query().Get("query")))
	}))
}

func TestEnrichLibraryWritesMatches(t *testing.T) {
	db := testhelpers.TestDB(t)
	source := testhelpers.CreateSource(db)
	entry := testhelpers.CreateEntry(db, source.ID,
		testhelpers.WithTitle("Heat (1995)", "Heat"))

	server := matchServer(t, func(query string) string {
		return `{"results":[{"id":949,"title":"Heat","poster_path":"/heat.jpg","backdrop_path":"/heat-bg.jpg"}]}`
	})
	defer server.Close()

	service, _ := newTestService(db, server.URL, DefaultConfig())

	var statuses []ItemStatus
	result, err := service.EnrichLibrary(context.Background(), Scope{SourceID: source.ID}, func(s ItemStatus) {
		statuses = append(statuses, s)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Matched)
	assert.Zero(t, result.Failed)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Matched)

	var stored models.CatalogEntry
	require.NoError(t, db.First(&stored, entry.ID).Error)
	require.NotNil(t, stored.TMDBID)
	assert.Equal(t, 949, *stored.TMDBID)
	require.NotNil(t, stored.PosterPath)
	assert.Equal(t, "/heat.jpg", *stored.PosterPath)
	require.NotNil(t, stored.MatchedAt)
}

func TestEnrichLibraryNoMatchLeavesEntryUnmatched(t *testing.T) {
	db := testhelpers.TestDB(t)
	source := testhelpers.CreateSource(db)
	entry := testhelpers.CreateEntry(db, source.ID)

	server := matchServer(t, func(query string) string {
		return `{"results":[]}`
	})
	defer server.Close()

	service, _ := newTestService(db, server.URL, DefaultConfig())

	result, err := service.EnrichLibrary(context.Background(), Scope{SourceID: source.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Matched)
	assert.Zero(t, result.Failed)

	var stored models.CatalogEntry
	require.NoError(t, db.First(&stored, entry.ID).Error)
	assert.Nil(t, stored.TMDBID, "unmatched entry stays unmatched for a later pass")
}

func TestEnrichLibraryFailedLookupDoesNotBlockBatch(t *testing.T) {
	db := testhelpers.TestDB(t)
	source := testhelpers.CreateSource(db)
	testhelpers.CreateEntry(db, source.ID,
		testhelpers.WithTitle("Broken Title", "Broken Title"),
		testhelpers.WithStreamURL("http://host/movie/1.mp4"))
	good := testhelpers.CreateEntry(db, source.ID,
		testhelpers.WithTitle("Heat", "Heat"),
		testhelpers.WithStreamURL("http://host/movie/2.mp4"))

	server := matchServer(t, func(query string) string {
		if query == "Heat" {
			return `{"results":[{"id":949,"title":"Heat","poster_path":"/heat.jpg"}]}`
		}
		// malformed body: upstream failure is absorbed as no-match
		return `{"results"`
	})
	defer server.Close()

	service, _ := newTestService(db, server.URL, Config{Concurrency: 1, ItemTimeout: time.Second})

	result, err := service.EnrichLibrary(context.Background(), Scope{SourceID: source.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Matched)

	var stored models.CatalogEntry
	require.NoError(t, db.First(&stored, good.ID).Error)
	require.NotNil(t, stored.TMDBID)
	assert.Equal(t, 949, *stored.TMDBID)
}

func TestEnrichLibraryBoundsConcurrency(t *testing.T) {
	db := testhelpers.TestDB(t)
	source := testhelpers.CreateSource(db)
	for i := 0; i < 12; i++ {
		testhelpers.CreateEntry(db, source.ID,
			testhelpers.WithStreamURL(fmt.Sprintf("http://host/movie/%d.mp4", i)))
	}

	var inFlight, peak int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&inFlight, 1)
		for {
			observed := atomic.LoadInt32(&peak)
			if current <= observed || atomic.CompareAndSwapInt32(&peak, observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer server.Close()

	service, _ := newTestService(db, server.URL, Config{Concurrency: 3, ItemTimeout: time.Second})

	result, err := service.EnrichLibrary(context.Background(), Scope{SourceID: source.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, result.Processed)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3), "lookups must respect the concurrency bound")
}

func TestConcurrentSyncAndEnrichmentDoNotClobber(t *testing.T) {
	db := testhelpers.TestDB(t)
	source := testhelpers.CreateSource(db)
	entry := testhelpers.CreateEntry(db, source.ID,
		testhelpers.WithTitle("Heat", "Heat"),
		testhelpers.WithGroup("Old Group"),
		testhelpers.WithStreamURL("http://host/movie/1.mp4"))

	server := matchServer(t, func(query string) string {
		return `{"results":[{"id":949,"title":"Heat","poster_path":"/heat.jpg"}]}`
	})
	defer server.Close()

	service, catalog := newTestService(db, server.URL, Config{Concurrency: 2, ItemTimeout: time.Second})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := service.EnrichLibrary(ctx, Scope{SourceID: source.ID}, nil)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		update := models.CatalogEntry{
			SourceID:       source.ID,
			StreamURL:      entry.StreamURL,
			RawTitle:       entry.RawTitle,
			CanonicalTitle: entry.CanonicalTitle,
			GroupTitle:     "New Group",
			ContentType:    entry.ContentType,
		}
		assert.NoError(t, catalog.UpsertBatch(ctx, []models.CatalogEntry{update}))
	}()
	wg.Wait()

	var stored models.CatalogEntry
	require.NoError(t, db.First(&stored, entry.ID).Error)
	assert.Equal(t, "New Group", stored.GroupTitle, "sync write survives")
	require.NotNil(t, stored.TMDBID, "enrichment write survives")
	assert.Equal(t, 949, *stored.TMDBID)
	require.NotNil(t, stored.PosterPath)
	assert.Equal(t, "/heat.jpg", *stored.PosterPath)
}
