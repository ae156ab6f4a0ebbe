package models

import "time"

// ContentType represents the type of a catalog entry
type ContentType string

const (
	ContentTypeLive          ContentType = "live"
	ContentTypeMovie         ContentType = "movie"
	ContentTypeSeries        ContentType = "series"
	ContentTypeSeriesEpisode ContentType = "series_episode"
)

// IsEpisodic returns true for content types matched against the TV catalog
func (c ContentType) IsEpisodic() bool {
	return c == ContentTypeSeries || c == ContentTypeSeriesEpisode
}

// CatalogEntry represents one playable item from an upstream playlist.
// (SourceID, StreamURL) is unique per source; catalog columns are written by the
// sync engine, metadata columns only by the enrichment service.
type CatalogEntry struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	SourceID       uint        `gorm:"not null;uniqueIndex:idx_catalog_entries_source_url;index" json:"source_id"`
	StreamURL      string      `gorm:"type:varchar(1024);not null;uniqueIndex:idx_catalog_entries_source_url" json:"stream_url"`
	RawTitle       string      `gorm:"type:text;not null" json:"raw_title"`
	CanonicalTitle string      `gorm:"type:varchar(255);not null;index:idx_catalog_entries_canonical" json:"canonical_title"`
	GroupTitle     string      `gorm:"type:varchar(255);index" json:"group_title"`
	ContentType    ContentType `gorm:"type:varchar(20);not null;index:idx_catalog_entries_canonical" json:"content_type"`
	LogoURL        *string     `gorm:"type:text" json:"logo_url,omitempty"`
	Quality        *string     `gorm:"type:varchar(16)" json:"quality,omitempty"`
	Year           *string     `gorm:"type:varchar(4)" json:"year,omitempty"`
	Season         *int        `json:"season,omitempty"`
	Episode        *int        `json:"episode,omitempty"`

	// External metadata reference, populated by enrichment only
	TMDBID       *int       `gorm:"index" json:"tmdb_id,omitempty"`
	PosterPath   *string    `gorm:"type:text" json:"poster_path,omitempty"`
	BackdropPath *string    `gorm:"type:text" json:"backdrop_path,omitempty"`
	MatchedAt    *time.Time `json:"matched_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for CatalogEntry
func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// CatalogColumns are the entry columns owned by the sync engine. An upsert of an
// existing entry overwrites only these, so it cannot clobber enrichment's writes.
func CatalogColumns() []string {
	return []string{
		"raw_title", "canonical_title", "group_title", "content_type",
		"logo_url", "quality", "year", "season", "episode", "updated_at",
	}
}

// MetadataColumns are the entry columns owned by the enrichment service.
func MetadataColumns() []string {
	return []string{"tmdb_id", "poster_path", "backdrop_path", "matched_at", "updated_at"}
}

// IsMatched returns true when the entry already carries an external metadata reference
func (e *CatalogEntry) IsMatched() bool {
	return e.TMDBID != nil
}
