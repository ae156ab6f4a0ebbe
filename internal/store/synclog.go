package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/models"
)

// Run statuses recorded in sync_logs
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// SyncLogs records the audit trail of pipeline runs
type SyncLogs struct {
	db *gorm.DB
}

// NewSyncLogs creates a sync log store
func NewSyncLogs(db *gorm.DB) *SyncLogs {
	return &SyncLogs{db: db}
}

// StartRun opens an audit row for a new run and returns it with a fresh run id
func (s *SyncLogs) StartRun(ctx context.Context, sourceID *uint, action string) (*models.SyncLog, error) {
	log := &models.SyncLog{
		RunID:     uuid.New().String(),
		SourceID:  sourceID,
		Action:    action,
		Status:    RunStatusInProgress,
		StartedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to record run start", err)
	}
	return log, nil
}

// CompleteRun closes an audit row with final counts
func (s *SyncLogs) CompleteRun(ctx context.Context, log *models.SyncLog, liveCount, movieCount, seriesCount int) error {
	now := time.Now()
	log.Status = RunStatusSuccess
	log.LiveCount = liveCount
	log.MovieCount = movieCount
	log.SeriesCount = seriesCount
	log.CompletedAt = &now

	if err := s.db.WithContext(ctx).Save(log).Error; err != nil {
		return apperrors.DatabaseError("failed to record run completion", err)
	}
	return nil
}

// FailRun closes an audit row with the failure cause
func (s *SyncLogs) FailRun(ctx context.Context, log *models.SyncLog, cause error) error {
	now := time.Now()
	message := cause.Error()
	log.Status = RunStatusFailed
	log.CompletedAt = &now
	log.ErrorMessage = &message

	if err := s.db.WithContext(ctx).Save(log).Error; err != nil {
		return apperrors.DatabaseError("failed to record run failure", err)
	}
	return nil
}

// RecentRuns returns the latest audit rows, newest first
func (s *SyncLogs) RecentRuns(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var logs []models.SyncLog
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load recent runs", err)
	}
	return logs, nil
}
