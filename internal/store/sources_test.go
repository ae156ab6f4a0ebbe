package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/models"
	testhelpers "github.com/pvasseur/streamsync/internal/testing"
)

func TestSourcesCreateValidation(t *testing.T) {
	db := testhelpers.TestDB(t)
	sources := NewSources(db)
	ctx := context.Background()

	tests := []struct {
		name   string
		source models.PlaylistSource
	}{
		{"missing name", models.PlaylistSource{Kind: models.SourceKindM3U, URL: "http://host/list.m3u8"}},
		{"missing url", models.PlaylistSource{Name: "x", Kind: models.SourceKindM3U}},
		{"bad kind", models.PlaylistSource{Name: "x", Kind: "ftp", URL: "http://host"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sources.Create(ctx, &tt.source)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeValidation, apperrors.GetErrorCode(err))
		})
	}

	valid := models.PlaylistSource{Name: "panel", Kind: models.SourceKindXtream, URL: "http://host", Username: "u", Password: "p"}
	require.NoError(t, sources.Create(ctx, &valid))
	assert.NotZero(t, valid.ID)
}

func TestSourcesGetNotFound(t *testing.T) {
	db := testhelpers.TestDB(t)
	sources := NewSources(db)

	_, err := sources.Get(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
}

func TestSourcesDeleteCascadesEntries(t *testing.T) {
	db := testhelpers.TestDB(t)
	sources := NewSources(db)
	ctx := context.Background()

	source := testhelpers.CreateSource(db)
	other := testhelpers.CreateSource(db)
	testhelpers.CreateEntry(db, source.ID)
	testhelpers.CreateEntry(db, source.ID)
	testhelpers.CreateEntry(db, other.ID)

	require.NoError(t, sources.Delete(ctx, source.ID))

	testhelpers.AssertCount(t, db, &models.PlaylistSource{}, 1, "deleted source removed")
	testhelpers.AssertCount(t, db, &models.CatalogEntry{}, 1, "entries cascade with their source")
}

func TestSourcesTouchLastSync(t *testing.T) {
	db := testhelpers.TestDB(t)
	sources := NewSources(db)
	ctx := context.Background()

	source := testhelpers.CreateSource(db)
	require.Nil(t, source.LastSyncAt)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, sources.TouchLastSync(ctx, source.ID, at))

	reloaded, err := sources.Get(ctx, source.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastSyncAt)
	assert.WithinDuration(t, at, *reloaded.LastSyncAt, time.Second)
}

func TestSyncLogLifecycle(t *testing.T) {
	db := testhelpers.TestDB(t)
	logs := NewSyncLogs(db)
	ctx := context.Background()

	source := testhelpers.CreateSource(db)

	run, err := logs.StartRun(ctx, &source.ID, "sync")
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, RunStatusInProgress, run.Status)

	require.NoError(t, logs.CompleteRun(ctx, run, 10, 20, 30))

	recent, err := logs.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, RunStatusSuccess, recent[0].Status)
	assert.Equal(t, 10, recent[0].LiveCount)
	assert.Equal(t, 20, recent[0].MovieCount)
	assert.Equal(t, 30, recent[0].SeriesCount)
	require.NotNil(t, recent[0].CompletedAt)
}

func TestSyncLogFailRun(t *testing.T) {
	db := testhelpers.TestDB(t)
	logs := NewSyncLogs(db)
	ctx := context.Background()

	run, err := logs.StartRun(ctx, nil, "enrich")
	require.NoError(t, err)

	cause := apperrors.SyncError("upstream rejected every request", nil)
	require.NoError(t, logs.FailRun(ctx, run, cause))

	recent, err := logs.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, RunStatusFailed, recent[0].Status)
	require.NotNil(t, recent[0].ErrorMessage)
	assert.Contains(t, *recent[0].ErrorMessage, "upstream rejected")
}
