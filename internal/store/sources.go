package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/pvasseur/streamsync/internal/errors"
	"github.com/pvasseur/streamsync/internal/models"
)

// Sources persists playlist source configuration
type Sources struct {
	db *gorm.DB
}

// NewSources creates a playlist source store
func NewSources(db *gorm.DB) *Sources {
	return &Sources{db: db}
}

// Create stores a new playlist source
func (s *Sources) Create(ctx context.Context, source *models.PlaylistSource) error {
	if source.Name == "" || source.URL == "" {
		return apperrors.ValidationError("source name and url are required")
	}
	if source.Kind != models.SourceKindM3U && source.Kind != models.SourceKindXtream {
		return apperrors.ValidationError(fmt.Sprintf("unknown source kind: %s", source.Kind))
	}
	if err := s.db.WithContext(ctx).Create(source).Error; err != nil {
		return apperrors.DatabaseError("failed to create source", err)
	}
	return nil
}

// Get loads one source by id
func (s *Sources) Get(ctx context.Context, id uint) (*models.PlaylistSource, error) {
	var source models.PlaylistSource
	err := s.db.WithContext(ctx).First(&source, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFoundError("source", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load source", err)
	}
	return &source, nil
}

// List returns all configured sources
func (s *Sources) List(ctx context.Context) ([]models.PlaylistSource, error) {
	var sources []models.PlaylistSource
	if err := s.db.WithContext(ctx).Order("id").Find(&sources).Error; err != nil {
		return nil, apperrors.DatabaseError("failed to list sources", err)
	}
	return sources, nil
}

// Update persists modified source settings
func (s *Sources) Update(ctx context.Context, source *models.PlaylistSource) error {
	if source.Name == "" || source.URL == "" {
		return apperrors.ValidationError("source name and url are required")
	}
	if source.Kind != models.SourceKindM3U && source.Kind != models.SourceKindXtream {
		return apperrors.ValidationError(fmt.Sprintf("unknown source kind: %s", source.Kind))
	}
	result := s.db.WithContext(ctx).Model(&models.PlaylistSource{}).
		Where("id = ?", source.ID).
		Updates(map[string]interface{}{
			"name":     source.Name,
			"kind":     source.Kind,
			"url":      source.URL,
			"username": source.Username,
			"password": source.Password,
		})
	if result.Error != nil {
		return apperrors.DatabaseError("failed to update source", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFoundError("source", fmt.Sprintf("%d", source.ID))
	}
	return nil
}

// Delete removes a source and all of its catalog entries. SQLite test
// databases do not always enforce the FK cascade, so entries are deleted
// explicitly inside the same transaction.
func (s *Sources) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_id = ?", id).Delete(&models.CatalogEntry{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.PlaylistSource{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFoundError("source", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return apperrors.DatabaseError("failed to delete source", err)
	}
	return nil
}

// TouchLastSync records a completed sync time on the source
func (s *Sources) TouchLastSync(ctx context.Context, id uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.PlaylistSource{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error
	if err != nil {
		return apperrors.DatabaseError("failed to update last sync time", err)
	}
	return nil
}
