package api

import (
	"time"

	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/syncer"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// PaginatedResponse wraps paginated results with metadata
type PaginatedResponse struct {
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// SourceRequest creates or updates a playlist source
type SourceRequest struct {
	Name     string `json:"name" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	URL      string `json:"url" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SourceResponse represents a playlist source. Credentials are never echoed
// back.
type SourceResponse struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	URL        string     `json:"url"`
	Username   string     `json:"username,omitempty"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toSourceResponse(source *models.PlaylistSource) SourceResponse {
	return SourceResponse{
		ID:         source.ID,
		Name:       source.Name,
		Kind:       string(source.Kind),
		URL:        source.URL,
		Username:   source.Username,
		LastSyncAt: source.LastSyncAt,
		CreatedAt:  source.CreatedAt,
	}
}

// EntryResponse represents one catalog entry
type EntryResponse struct {
	ID             uint               `json:"id"`
	SourceID       uint               `json:"source_id"`
	StreamURL      string             `json:"stream_url"`
	RawTitle       string             `json:"raw_title"`
	CanonicalTitle string             `json:"canonical_title"`
	GroupTitle     string             `json:"group_title,omitempty"`
	ContentType    models.ContentType `json:"content_type"`
	LogoURL        *string            `json:"logo_url,omitempty"`
	Quality        *string            `json:"quality,omitempty"`
	Year           *string            `json:"year,omitempty"`
	Season         *int               `json:"season,omitempty"`
	Episode        *int               `json:"episode,omitempty"`
	TMDBID         *int               `json:"tmdb_id,omitempty"`
	PosterPath     *string            `json:"poster_path,omitempty"`
	BackdropPath   *string            `json:"backdrop_path,omitempty"`
	MatchedAt      *time.Time         `json:"matched_at,omitempty"`
}

func toEntryResponse(entry *models.CatalogEntry) EntryResponse {
	return EntryResponse{
		ID:             entry.ID,
		SourceID:       entry.SourceID,
		StreamURL:      entry.StreamURL,
		RawTitle:       entry.RawTitle,
		CanonicalTitle: entry.CanonicalTitle,
		GroupTitle:     entry.GroupTitle,
		ContentType:    entry.ContentType,
		LogoURL:        entry.LogoURL,
		Quality:        entry.Quality,
		Year:           entry.Year,
		Season:         entry.Season,
		Episode:        entry.Episode,
		TMDBID:         entry.TMDBID,
		PosterPath:     entry.PosterPath,
		BackdropPath:   entry.BackdropPath,
		MatchedAt:      entry.MatchedAt,
	}
}

func toEntryResponses(entries []models.CatalogEntry) []EntryResponse {
	responses := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, toEntryResponse(&entries[i]))
	}
	return responses
}

// SyncResponse summarizes a completed sync run
type SyncResponse struct {
	Changed bool         `json:"changed"`
	Stats   syncer.Stats `json:"stats"`
}

// EnrichRequest narrows an enrichment run
type EnrichRequest struct {
	EntryIDs []uint `json:"entry_ids,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// EnrichResponse summarizes an enrichment run
type EnrichResponse struct {
	Processed int `json:"processed"`
	Matched   int `json:"matched"`
	Failed    int `json:"failed"`
}

// MatchRequest looks up catalog entries by title
type MatchRequest struct {
	Titles []string `json:"titles" binding:"required"`
	Limit  int      `json:"limit,omitempty"`
}

// RunResponse represents one sync run record
type RunResponse struct {
	RunID        string     `json:"run_id"`
	SourceID     *uint      `json:"source_id,omitempty"`
	Action       string     `json:"action"`
	Status       string     `json:"status"`
	LiveCount    int        `json:"live_count"`
	MovieCount   int        `json:"movie_count"`
	SeriesCount  int        `json:"series_count"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

func toRunResponse(run *models.SyncLog) RunResponse {
	return RunResponse{
		RunID:        run.RunID,
		SourceID:     run.SourceID,
		Action:       run.Action,
		Status:       run.Status,
		LiveCount:    run.LiveCount,
		MovieCount:   run.MovieCount,
		SeriesCount:  run.SeriesCount,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		ErrorMessage: run.ErrorMessage,
	}
}

// StatsResponse represents library statistics
type StatsResponse struct {
	TotalEntries  int64            `json:"total_entries"`
	ByContentType map[string]int64 `json:"by_content_type"`
	BySource      map[string]int64 `json:"by_source"`
	Matched       int64            `json:"matched"`
	Unmatched     int64            `json:"unmatched"`
}
