package metadata

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pvasseur/streamsync/internal/models"
)

// Deep-detail lookups for a single already-matched item. These are separate
// calls made on explicit request, never during the bulk matching pass.

// Details holds the full catalog record for one matched item
type Details struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"` // TV shows use name instead of title
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	PosterPath   *string `json:"poster_path"`
	BackdropPath *string `json:"backdrop_path"`
	Overview     string  `json:"overview"`
	VoteAverage  float64 `json:"vote_average"`
	Runtime      *int    `json:"runtime"`
	Genres       []Genre `json:"genres"`
}

// Genre is a catalog genre tag
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ExternalIDs cross-references a matched item to other catalogs
type ExternalIDs struct {
	IMDBID *string `json:"imdb_id"`
	TVDBID *int    `json:"tvdb_id"`
}

// CastMember is one credited person
type CastMember struct {
	Name      string  `json:"name"`
	Character string  `json:"character"`
	Order     int     `json:"order"`
	Profile   *string `json:"profile_path"`
}

type creditsResponse struct {
	Cast []CastMember `json:"cast"`
}

// Video is one trailer or clip attached to a matched item
type Video struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"` // e.g., YouTube
	Type string `json:"type"` // e.g., Trailer
}

type videosResponse struct {
	Results []Video `json:"results"`
}

// GetDetails fetches the full record for a matched item
func (c *Client) GetDetails(ctx context.Context, tmdbID int, contentType models.ContentType) (*Details, error) {
	var details Details
	endpoint := fmt.Sprintf("/%s/%d", pathKind(contentType), tmdbID)
	if err := c.get(ctx, endpoint, url.Values{}, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetExternalIDs fetches cross-catalog identifiers for a matched item
func (c *Client) GetExternalIDs(ctx context.Context, tmdbID int, contentType models.ContentType) (*ExternalIDs, error) {
	var ids ExternalIDs
	endpoint := fmt.Sprintf("/%s/%d/external_ids", pathKind(contentType), tmdbID)
	if err := c.get(ctx, endpoint, url.Values{}, &ids); err != nil {
		return nil, err
	}
	return &ids, nil
}

// GetCredits fetches the cast list for a matched item
func (c *Client) GetCredits(ctx context.Context, tmdbID int, contentType models.ContentType) ([]CastMember, error) {
	var response creditsResponse
	endpoint := fmt.Sprintf("/%s/%d/credits", pathKind(contentType), tmdbID)
	if err := c.get(ctx, endpoint, url.Values{}, &response); err != nil {
		return nil, err
	}
	return response.Cast, nil
}

// GetVideos fetches trailers and clips for a matched item
func (c *Client) GetVideos(ctx context.Context, tmdbID int, contentType models.ContentType) ([]Video, error) {
	var response videosResponse
	endpoint := fmt.Sprintf("/%s/%d/videos", pathKind(contentType), tmdbID)
	if err := c.get(ctx, endpoint, url.Values{}, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

func pathKind(contentType models.ContentType) string {
	if contentType.IsEpisodic() {
		return "tv"
	}
	return "movie"
}
