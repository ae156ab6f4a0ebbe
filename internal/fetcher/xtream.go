package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/models"
	"github.com/pvasseur/streamsync/internal/normalizer"
)

// defaultCategoryDelay paces per-category requests so the fallback path does
// not trip upstream abuse detection.
const defaultCategoryDelay = 500 * time.Millisecond

// XtreamFetcher pulls the catalog from an Xtream-Codes player API. Each
// content type is fetched with one bulk call; when the panel rejects bulk
// calls with overload statuses the fetcher enumerates categories and fetches
// them one by one with a fixed delay in between.
type XtreamFetcher struct {
	client        *httpx.Client
	normalizer    *normalizer.Normalizer
	logger        *logger.Logger
	categoryDelay time.Duration
}

// NewXtream creates an Xtream-Codes playlist fetcher
func NewXtream(client *httpx.Client, log *logger.Logger) *XtreamFetcher {
	return &XtreamFetcher{
		client:        client,
		normalizer:    normalizer.New(),
		logger:        log,
		categoryDelay: defaultCategoryDelay,
	}
}

// Kind implements Fetcher
func (f *XtreamFetcher) Kind() models.SourceKind {
	return models.SourceKindXtream
}

// SetCategoryDelay overrides the pacing between per-category requests
func (f *XtreamFetcher) SetCategoryDelay(delay time.Duration) {
	if delay > 0 {
		f.categoryDelay = delay
	}
}

// Upstream payload shapes. Panels disagree on numeric vs string fields, so
// every identifier is a json.Number and everything else is optional.

type xtreamStream struct {
	StreamID           json.Number `json:"stream_id"`
	Name               string      `json:"name"`
	StreamIcon         string      `json:"stream_icon"`
	CategoryID         json.Number `json:"category_id"`
	ContainerExtension string      `json:"container_extension"`
}

type xtreamSeries struct {
	SeriesID   json.Number `json:"series_id"`
	Name       string      `json:"name"`
	Cover      string      `json:"cover"`
	CategoryID json.Number `json:"category_id"`
}

type xtreamCategory struct {
	CategoryID   json.Number `json:"category_id"`
	CategoryName string      `json:"category_name"`
}

type xtreamEpisode struct {
	ID                 json.Number `json:"id"`
	EpisodeNum         json.Number `json:"episode_num"`
	Title              string      `json:"title"`
	ContainerExtension string      `json:"container_extension"`
	Season             json.Number `json:"season"`
	Info               struct {
		MovieImage string `json:"movie_image"`
	} `json:"info"`
}

type xtreamSeriesInfo struct {
	Episodes json.RawMessage `json:"episodes"`
}

// Fetch pulls live, movie, and series entries in that fixed order
func (f *XtreamFetcher) Fetch(ctx context.Context, source *models.PlaylistSource) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry

	for _, contentType := range []models.ContentType{models.ContentTypeLive, models.ContentTypeMovie, models.ContentTypeSeries} {
		batch, err := f.FetchContentType(ctx, source, contentType)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
	}

	return entries, nil
}

// FetchContentType pulls one content type on its own, letting the sync engine
// report per-type progress
func (f *XtreamFetcher) FetchContentType(ctx context.Context, source *models.PlaylistSource, contentType models.ContentType) ([]models.CatalogEntry, error) {
	switch contentType {
	case models.ContentTypeLive:
		return f.fetchLive(ctx, source)
	case models.ContentTypeMovie:
		return f.fetchMovies(ctx, source)
	default:
		return f.fetchSeries(ctx, source)
	}
}

// fetchLive fetches live streams, falling back to per-category on overload
func (f *XtreamFetcher) fetchLive(ctx context.Context, source *models.PlaylistSource) ([]models.CatalogEntry, error) {
	streams, groups, err := f.fetchStreams(ctx, source, "get_live_streams", "get_live_categories")
	if err != nil {
		return nil, err
	}

	entries := make([]models.CatalogEntry, 0, len(streams))
	for _, s := range streams {
		id := s.StreamID.String()
		if id == "" || s.Name == "" {
			continue
		}
		streamURL := fmt.Sprintf("%s/live/%s/%s/%s.m3u8",
			f.baseURL(source), url.PathEscape(source.Username), url.PathEscape(source.Password), id)
		info := f.normalizer.Normalize(s.Name)
		entries = append(entries, buildEntry(source, streamURL, s.Name, groups[s.CategoryID.String()], models.ContentTypeLive, s.StreamIcon, info))
	}
	return entries, nil
}

// fetchMovies fetches VOD streams, falling back to per-category on overload
func (f *XtreamFetcher) fetchMovies(ctx context.Context, source *models.PlaylistSource) ([]models.CatalogEntry, error) {
	streams, groups, err := f.fetchStreams(ctx, source, "get_vod_streams", "get_vod_categories")
	if err != nil {
		return nil, err
	}

	entries := make([]models.CatalogEntry, 0, len(streams))
	for _, s := range streams {
		id := s.StreamID.String()
		if id == "" || s.Name == "" {
			continue
		}
		ext := s.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		streamURL := fmt.Sprintf("%s/movie/%s/%s/%s.%s",
			f.baseURL(source), url.PathEscape(source.Username), url.PathEscape(source.Password), id, ext)
		info := f.normalizer.Normalize(s.Name)
		entries = append(entries, buildEntry(source, streamURL, s.Name, groups[s.CategoryID.String()], models.ContentTypeMovie, s.StreamIcon, info))
	}
	return entries, nil
}

// fetchStreams performs the bulk call for one content type; overload statuses
// trigger the category-by-category strategy instead of failing the fetch.
// The returned map resolves category ids to display names for group labels.
func (f *XtreamFetcher) fetchStreams(ctx context.Context, source *models.PlaylistSource, streamAction, categoryAction string) ([]xtreamStream, map[string]string, error) {
	categories, catErr := f.listCategories(ctx, source, categoryAction)
	if catErr != nil {
		f.logger.WithFields(map[string]interface{}{
			"source": source.Name,
			"action": categoryAction,
			"error":  catErr.Error(),
		}).Warn("category listing failed, entries will have no group labels")
	}

	groups := make(map[string]string, len(categories))
	for _, c := range categories {
		groups[c.CategoryID.String()] = c.CategoryName
	}

	streams, err := f.listStreams(ctx, source, streamAction, "")
	if err == nil {
		return streams, groups, nil
	}
	if !apperrors.IsOverload(err) {
		return nil, nil, err
	}

	f.logger.WithFields(map[string]interface{}{
		"source": source.Name,
		"action": streamAction,
		"cause":  err.Error(),
	}).Warn("bulk fetch rejected, switching to category strategy")

	if catErr != nil {
		// The fallback cannot run without the category list
		return nil, nil, catErr
	}

	streams, err = f.fetchStreamsByCategory(ctx, source, streamAction, categories)
	return streams, groups, err
}

// listCategories fetches the category enumeration for one content type
func (f *XtreamFetcher) listCategories(ctx context.Context, source *models.PlaylistSource, action string) ([]xtreamCategory, error) {
	body, err := f.apiGet(ctx, source, action, nil)
	if err != nil {
		return nil, err
	}

	var categories []xtreamCategory
	if err := httpx.DecodeJSON(body, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// fetchStreamsByCategory fetches every category one by one with a fixed pause
// between requests. A failed category is logged and skipped; the strategy
// fails only when every category fails and nothing was fetched.
func (f *XtreamFetcher) fetchStreamsByCategory(ctx context.Context, source *models.PlaylistSource, streamAction string, categories []xtreamCategory) ([]xtreamStream, error) {
	var streams []xtreamStream
	succeeded := 0
	var lastErr error

	for i, category := range categories {
		if i > 0 {
			if err := f.pause(ctx); err != nil {
				return nil, err
			}
		}

		batch, err := f.listStreams(ctx, source, streamAction, category.CategoryID.String())
		if err != nil {
			lastErr = err
			f.logger.WithFields(map[string]interface{}{
				"source":   source.Name,
				"category": category.CategoryName,
				"error":    err.Error(),
			}).Warn("category fetch failed, skipping")
			continue
		}

		succeeded++
		streams = append(streams, batch...)
	}

	if succeeded == 0 && len(streams) == 0 && lastErr != nil {
		return nil, apperrors.Wrap(lastErr, apperrors.CodeSync, "every category fetch failed")
	}
	return streams, nil
}

// listStreams performs one stream-list call, optionally scoped to a category
func (f *XtreamFetcher) listStreams(ctx context.Context, source *models.PlaylistSource, action, categoryID string) ([]xtreamStream, error) {
	params := url.Values{}
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}

	body, err := f.apiGet(ctx, source, action, params)
	if err != nil {
		return nil, err
	}

	var streams []xtreamStream
	if err := httpx.DecodeJSON(body, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

// fetchSeries lists all series then resolves every series into its flattened,
// (season, episode)-sorted episode list. One failed series lookup is logged
// and skipped.
func (f *XtreamFetcher) fetchSeries(ctx context.Context, source *models.PlaylistSource) ([]models.CatalogEntry, error) {
	body, err := f.apiGet(ctx, source, "get_series", nil)
	if err != nil {
		return nil, err
	}

	var series []xtreamSeries
	if err := httpx.DecodeJSON(body, &series); err != nil {
		return nil, err
	}

	var entries []models.CatalogEntry
	var lastErr error
	succeeded := 0
	for i, s := range series {
		if i > 0 {
			if err := f.pause(ctx); err != nil {
				return nil, err
			}
		}

		episodes, err := f.fetchSeriesEpisodes(ctx, source, s)
		if err != nil {
			lastErr = err
			f.logger.WithFields(map[string]interface{}{
				"source": source.Name,
				"series": s.Name,
				"error":  err.Error(),
			}).Warn("series info fetch failed, skipping")
			continue
		}
		succeeded++
		entries = append(entries, episodes...)
	}

	if succeeded == 0 && len(entries) == 0 && lastErr != nil {
		return nil, apperrors.Wrap(lastErr, apperrors.CodeSync, "every series info fetch failed")
	}
	return entries, nil
}

// fetchSeriesEpisodes resolves one series id into catalog entries
func (f *XtreamFetcher) fetchSeriesEpisodes(ctx context.Context, source *models.PlaylistSource, s xtreamSeries) ([]models.CatalogEntry, error) {
	params := url.Values{}
	params.Set("series_id", s.SeriesID.String())

	body, err := f.apiGet(ctx, source, "get_series_info", params)
	if err != nil {
		return nil, err
	}

	var info xtreamSeriesInfo
	if err := httpx.DecodeTolerant(body, &info); err != nil {
		return nil, err
	}

	episodes := decodeEpisodes(info.Episodes)
	sort.SliceStable(episodes, func(i, j int) bool {
		si, _ := episodes[i].Season.Int64()
		sj, _ := episodes[j].Season.Int64()
		if si != sj {
			return si < sj
		}
		ei, _ := episodes[i].EpisodeNum.Int64()
		ej, _ := episodes[j].EpisodeNum.Int64()
		return ei < ej
	})

	entries := make([]models.CatalogEntry, 0, len(episodes))
	for _, ep := range episodes {
		id := ep.ID.String()
		if id == "" {
			continue
		}
		ext := ep.ContainerExtension
		if ext == "" {
			ext = "mp4"
		}
		streamURL := fmt.Sprintf("%s/series/%s/%s/%s.%s",
			f.baseURL(source), url.PathEscape(source.Username), url.PathEscape(source.Password), id, ext)

		season := int64ToIntPtr(ep.Season)
		episode := int64ToIntPtr(ep.EpisodeNum)

		rawTitle := ep.Title
		if rawTitle == "" {
			rawTitle = s.Name
		}

		norm := f.normalizer.Normalize(s.Name)
		entry := buildEntry(source, streamURL, rawTitle, "", models.ContentTypeSeriesEpisode, firstNonEmpty(ep.Info.MovieImage, s.Cover), norm)
		entry.Season = season
		entry.Episode = episode
		entries = append(entries, entry)
	}
	return entries, nil
}

// decodeEpisodes tolerates both shapes panels emit for the season→episodes
// mapping: an object keyed by season number, or an array of per-season arrays.
func decodeEpisodes(raw json.RawMessage) []xtreamEpisode {
	if len(raw) == 0 {
		return nil
	}

	var bySeason map[string][]xtreamEpisode
	if err := json.Unmarshal(raw, &bySeason); err == nil {
		var all []xtreamEpisode
		for _, eps := range bySeason {
			all = append(all, eps...)
		}
		return all
	}

	var seasons [][]xtreamEpisode
	if err := json.Unmarshal(raw, &seasons); err == nil {
		var all []xtreamEpisode
		for _, eps := range seasons {
			all = append(all, eps...)
		}
		return all
	}

	return nil
}

// FetchShortEPG returns the short programme listing for a live stream. EPG is
// an optional endpoint: malformed or empty responses yield an empty listing.
func (f *XtreamFetcher) FetchShortEPG(ctx context.Context, source *models.PlaylistSource, streamID string, limit int) ([]EPGListing, error) {
	params := url.Values{}
	params.Set("stream_id", streamID)
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	body, err := f.apiGet(ctx, source, "get_short_epg", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Listings []EPGListing `json:"epg_listings"`
	}
	if err := httpx.DecodeTolerant(body, &payload); err != nil {
		if apperrors.GetErrorCode(err) == apperrors.CodeDecode {
			f.logger.WithFields(map[string]interface{}{
				"source":    source.Name,
				"stream_id": streamID,
			}).Debug("malformed EPG payload, returning empty listing")
			return nil, nil
		}
		return nil, err
	}
	return payload.Listings, nil
}

// EPGListing is one programme row from get_short_epg
type EPGListing struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	StartTimestamp json.Number `json:"start_timestamp"`
	StopTimestamp  json.Number `json:"stop_timestamp"`
}

// apiGet performs one player_api.php call
func (f *XtreamFetcher) apiGet(ctx context.Context, source *models.PlaylistSource, action string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("username", source.Username)
	params.Set("password", source.Password)
	params.Set("action", action)

	endpoint := fmt.Sprintf("%s/player_api.php?%s", f.baseURL(source), params.Encode())

	resp, err := f.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// pause waits the category delay, honoring cancellation
func (f *XtreamFetcher) pause(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.categoryDelay):
		return nil
	}
}

func (f *XtreamFetcher) baseURL(source *models.PlaylistSource) string {
	return strings.TrimSuffix(source.URL, "/")
}

func int64ToIntPtr(n json.Number) *int {
	v, err := n.Int64()
	if err != nil {
		return nil
	}
	i := int(v)
	return &i
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
