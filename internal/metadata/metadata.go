package metadata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pvasseur/streamsync/internal/circuitbreaker"
	"github.com/pvasseur/streamsync/internal/httpx"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/models"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
)

// Client queries the TMDB catalog for title matches and item details. Calls
// go through the shared resilient HTTP client behind a circuit breaker so a
// flapping catalog does not burn the enrichment budget on doomed requests.
type Client struct {
	apiKey     string
	language   string
	baseURL    string
	http       *httpx.Client
	logger     *logger.Logger
	circuitBrk *circuitbreaker.CircuitBreaker
}

// Config holds metadata client configuration
type Config struct {
	APIKey   string
	Language string // e.g., "en-US", "fr-FR"
	BaseURL  string // overridable for tests
	HTTP     *httpx.Client
	Logger   *logger.Logger
}

// MatchResult is the outcome of a successful catalog match
type MatchResult struct {
	TMDBID       int
	PosterPath   string
	BackdropPath string
}

// NewClient creates a metadata catalog client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	cb := circuitbreaker.New(circuitbreaker.Config{
		MaxFailures:         5,
		Timeout:             60 * time.Second,
		MaxHalfOpenRequests: 1,
	})

	return &Client{
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		baseURL:    cfg.BaseURL,
		http:       cfg.HTTP,
		logger:     cfg.Logger,
		circuitBrk: cb,
	}
}

// movieResult is one movie row from /search/movie
type movieResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	ReleaseDate  string  `json:"release_date"` // YYYY-MM-DD
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
}

// tvResult is one show row from /search/tv
type tvResult struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	FirstAirDate string  `json:"first_air_date"` // YYYY-MM-DD
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	Popularity   float64 `json:"popularity"`
}

type movieSearchResponse struct {
	Page         int           `json:"page"`
	Results      []movieResult `json:"results"`
	TotalResults int           `json:"total_results"`
}

type tvSearchResponse struct {
	Page         int        `json:"page"`
	Results      []tvResult `json:"results"`
	TotalResults int        `json:"total_results"`
}

// FindBestMatch resolves (title, year, contentType) to a catalog match.
//
// Episodic content searches the TV endpoint, movies the movie endpoint. When
// a year-scoped search returns zero results the identical search is retried
// without the year, because playlist years are frequently a season's air year
// rather than the series start year. The catalog's own relevance ranking is
// trusted: the first result of the first non-empty pass wins.
//
// Catalog-side failures are logged and reported as no match (nil, nil) so a
// single bad lookup never aborts a batch enrichment run.
func (c *Client) FindBestMatch(ctx context.Context, title string, year *int, contentType models.ContentType) (*MatchResult, error) {
	if title == "" {
		return nil, nil
	}

	var (
		match *MatchResult
		err   error
	)
	if contentType.IsEpisodic() {
		match, err = c.searchTV(ctx, title, year)
	} else {
		match, err = c.searchMovie(ctx, title, year)
	}
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"title":        title,
			"content_type": string(contentType),
			"error":        err.Error(),
		}).Warn("catalog search failed, treating as no match")
		return nil, nil
	}
	return match, nil
}

// searchTV runs the year-scoped pass then the year-free fallback
func (c *Client) searchTV(ctx context.Context, title string, year *int) (*MatchResult, error) {
	params := url.Values{}
	params.Set("query", title)
	if year != nil && *year > 0 {
		params.Set("first_air_date_year", fmt.Sprintf("%d", *year))
	}

	var response tvSearchResponse
	if err := c.get(ctx, "/search/tv", params, &response); err != nil {
		return nil, err
	}

	if len(response.Results) == 0 && year != nil {
		params.Del("first_air_date_year")
		response = tvSearchResponse{}
		if err := c.get(ctx, "/search/tv", params, &response); err != nil {
			return nil, err
		}
	}

	if len(response.Results) == 0 {
		return nil, nil
	}
	first := response.Results[0]
	return &MatchResult{
		TMDBID:       first.ID,
		PosterPath:   deref(first.PosterPath),
		BackdropPath: deref(first.BackdropPath),
	}, nil
}

// searchMovie runs the year-scoped pass then the year-free fallback
func (c *Client) searchMovie(ctx context.Context, title string, year *int) (*MatchResult, error) {
	params := url.Values{}
	params.Set("query", title)
	if year != nil && *year > 0 {
		params.Set("year", fmt.Sprintf("%d", *year))
	}

	var response movieSearchResponse
	if err := c.get(ctx, "/search/movie", params, &response); err != nil {
		return nil, err
	}

	if len(response.Results) == 0 && year != nil {
		params.Del("year")
		response = movieSearchResponse{}
		if err := c.get(ctx, "/search/movie", params, &response); err != nil {
			return nil, err
		}
	}

	if len(response.Results) == 0 {
		return nil, nil
	}
	first := response.Results[0]
	return &MatchResult{
		TMDBID:       first.ID,
		PosterPath:   deref(first.PosterPath),
		BackdropPath: deref(first.BackdropPath),
	}, nil
}

// get performs one catalog API call through the circuit breaker
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)

	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	return c.circuitBrk.Execute(func() error {
		resp, err := c.http.Get(ctx, requestURL)
		if err != nil {
			return err
		}
		return httpx.DecodeTolerant(resp.Body, result)
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExtractYear extracts the year from a catalog date string (YYYY-MM-DD)
func ExtractYear(dateStr string) int {
	if len(dateStr) < 4 {
		return 0
	}
	var year int
	fmt.Sscanf(dateStr[:4], "%d", &year)
	return year
}
