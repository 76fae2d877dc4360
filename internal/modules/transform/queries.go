package transform

import (
	"context"
	"errors"

	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/pagination"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/response"
)

// GetByFingerprint returns a cached transformation, or nil when absent.
// An unavailable store reads as absent here: read-only endpoints have no
// reason to distinguish the two.
func (s *Service) GetByFingerprint(ctx context.Context, fingerprint string) (*models.TransformationModel, error) {
	rec, err := s.cache.Lookup(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, errCacheUnavailable) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// GetAudio loads the audio artifact for a fingerprint directly from the
// durable store (the hot layer never carries blobs).
func (s *Service) GetAudio(ctx context.Context, fingerprint string) (*models.TransformationModel, error) {
	var rec models.TransformationModel
	err := s.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// History lists a user's history entries, newest first, with optional
// course/lesson filters.
func (s *Service) History(ctx context.Context, userID, courseID, lessonID string, q pagination.Query) ([]models.TransformHistoryModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.TransformHistoryModel{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC")
	if courseID != "" {
		tx = tx.Where("course_id = ?", courseID)
	}
	if lessonID != "" {
		tx = tx.Where("lesson_id = ?", lessonID)
	}

	var items []models.TransformHistoryModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Usage lists a user's usage events, newest first.
func (s *Service) Usage(ctx context.Context, userID string, q pagination.Query) ([]models.UsageEventModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.UsageEventModel{}).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	var items []models.UsageEventModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}
