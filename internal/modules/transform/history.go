package transform

import (
	"context"

	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// historyRecorder appends "this user ran this transformation in this
// context" records, collapsing repeats onto one row.
type historyRecorder interface {
	Record(ctx context.Context, entry *models.TransformHistoryModel) error
}

type dbHistory struct {
	db     *gorm.DB
	logger *zap.Logger
}

func newDBHistory(db *gorm.DB, logger *zap.Logger) *dbHistory {
	return &dbHistory{db: db, logger: logger}
}

// Record upserts on the (user, course, lesson, transformation) identity.
// A conflict refreshes the excerpt and UpdatedAt instead of adding a row,
// so retried or repeated invocations stay idempotent under concurrency.
func (h *dbHistory) Record(ctx context.Context, entry *models.TransformHistoryModel) error {
	err := h.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "course_id"},
			{Name: "lesson_id"},
			{Name: "transformation_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"excerpt", "options_used", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		if isTableMissing(err) {
			h.logger.Warn("history table missing, skipping record")
			return nil
		}
		return err
	}
	return nil
}

// truncateExcerpt bounds the stored excerpt. Truncation is rune-safe: the
// source text may be multi-byte and a raw byte cut could split a sequence.
func truncateExcerpt(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
