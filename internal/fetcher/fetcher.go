package fetcher

import (
	"context"
	"path"
	"strings"

	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/normalizer"
)

// Fetcher produces the catalog entries of one upstream playlist source
type Fetcher interface {
	Kind() models.SourceKind
	Fetch(ctx context.Context, source *models.PlaylistSource) ([]models.CatalogEntry, error)
}

// ForSource returns the adapter matching the source kind
func ForSource(source *models.PlaylistSource, client *httpx.Client, log *logger.Logger) Fetcher {
	if source.IsXtream() {
		return NewXtream(client, log)
	}
	return NewM3U(client, log)
}

// inferContentType derives the content type from stream URL heuristics: the
// path segment and container extension are the only reliable signal M3U
// playlists carry.
func inferContentType(streamURL string) models.ContentType {
	lowered := strings.ToLower(streamURL)
	ext := path.Ext(strippedPath(lowered))

	if strings.Contains(lowered, "/movie/") || ext == ".mp4" || ext == ".mkv" {
		return models.ContentTypeMovie
	}
	if strings.Contains(lowered, "/series/") {
		return models.ContentTypeSeries
	}
	return models.ContentTypeLive
}

// strippedPath drops the query string so extensions are matched on the path only
func strippedPath(u string) string {
	if idx := strings.IndexAny(u, "?#"); idx >= 0 {
		return u[:idx]
	}
	return u
}

// buildEntry assembles a catalog entry from a raw title plus its normalized
// form; episodic entries carrying explicit season/episode numbers become
// series episodes.
func buildEntry(source *models.PlaylistSource, streamURL, rawTitle, groupTitle string, contentType models.ContentType, logoURL string, info normalizer.NormalizedTitle) models.CatalogEntry {
	if contentType == models.ContentTypeSeries && info.Season != nil && info.Episode != nil {
		contentType = models.ContentTypeSeriesEpisode
	}

	canonical := info.Title
	if canonical == "" {
		canonical = strings.TrimSpace(rawTitle)
	}

	entry := models.CatalogEntry{
		SourceID:       source.ID,
		StreamURL:      streamURL,
		RawTitle:       rawTitle,
		CanonicalTitle: canonical,
		GroupTitle:     groupTitle,
		ContentType:    contentType,
		Quality:        info.Quality,
		Year:           info.Year,
		Season:         info.Season,
		Episode:        info.Episode,
	}
	if logoURL != "" {
		entry.LogoURL = &logoURL
	}
	return entry
}
