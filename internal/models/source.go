package models

import "time"

// SourceKind identifies the upstream protocol of a playlist source
type SourceKind string

const (
	SourceKindM3U    SourceKind = "m3u"
	SourceKindXtream SourceKind = "xtream"
)

// PlaylistSource represents a configured upstream playlist provider
type PlaylistSource struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name"`
	Kind       SourceKind `gorm:"type:varchar(20);not null" json:"kind"`
	URL        string     `gorm:"type:text;not null" json:"url"`
	Username   string     `gorm:"type:varchar(255)" json:"username,omitempty"`
	Password   string     `gorm:"type:varchar(255)" json:"-"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	Entries []CatalogEntry `gorm:"foreignKey:SourceID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
}

// TableName specifies the table name for PlaylistSource
func (PlaylistSource) TableName() string {
	return "playlist_sources"
}

// IsXtream returns true when the source speaks the Xtream-Codes player API
func (s *PlaylistSource) IsXtream() bool {
	return s.Kind == SourceKindXtream
}
