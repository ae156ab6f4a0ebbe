package models

import "time"

// SyncLog represents an audit row for one pipeline run (sync or enrichment)
type SyncLog struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RunID        string     `gorm:"type:varchar(36);not null;index" json:"run_id"`
	SourceID     *uint      `gorm:"index" json:"source_id,omitempty"`
	Action       string     `gorm:"type:varchar(100);not null" json:"action"`
	Status       string     `gorm:"type:varchar(50);not null" json:"status"` // "success", "failed", "in_progress"
	LiveCount    int        `gorm:"not null;default:0" json:"live_count"`
	MovieCount   int        `gorm:"not null;default:0" json:"movie_count"`
	SeriesCount  int        `gorm:"not null;default:0" json:"series_count"`
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name for SyncLog
func (SyncLog) TableName() string {
	return "sync_logs"
}
