package transform

import (
	"context"
	"encoding/json"
	"errors"

	gosqlmysql "github.com/go-sql-driver/mysql"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	redisc "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const hotCacheKeyPrefix = "lms:transform:"

// cacheStore is the persistent transformation cache.
//
// Lookup returns (nil, nil) on a miss, errCacheUnavailable when the backing
// table does not exist, and a fatal error otherwise. Insert follows the same
// classification.
type cacheStore interface {
	Lookup(ctx context.Context, fingerprint string) (*models.TransformationModel, error)
	Insert(ctx context.Context, rec *models.TransformationModel) (*models.TransformationModel, error)
}

// dbCache backs the cache with MySQL, fronted by an optional Redis
// write-through hot layer. Entries are immutable, so the hot layer never
// needs invalidation. Redis errors are soft: log and fall through to MySQL.
type dbCache struct {
	db     *gorm.DB
	rc     *redisc.Client
	logger *zap.Logger
}

func newDBCache(db *gorm.DB, rc *redisc.Client, logger *zap.Logger) *dbCache {
	return &dbCache{db: db, rc: rc, logger: logger}
}

func (s *dbCache) Lookup(ctx context.Context, fingerprint string) (*models.TransformationModel, error) {
	if rec := s.hotGet(ctx, fingerprint); rec != nil {
		return rec, nil
	}

	var rec models.TransformationModel
	err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if isTableMissing(err) {
			return nil, errCacheUnavailable
		}
		return nil, err
	}

	s.hotSet(ctx, &rec)
	return &rec, nil
}

func (s *dbCache) Insert(ctx context.Context, rec *models.TransformationModel) (*models.TransformationModel, error) {
	// Insert-if-absent rather than read-then-write: concurrent identical
	// requests may race to this point, and the first writer wins.
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		if isTableMissing(res.Error) {
			return nil, errCacheUnavailable
		}
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// Lost the race; resolve the canonical row.
		var existing models.TransformationModel
		if err := s.db.WithContext(ctx).Where("fingerprint = ?", rec.Fingerprint).First(&existing).Error; err != nil {
			return nil, err
		}
		s.hotSet(ctx, &existing)
		return &existing, nil
	}

	s.hotSet(ctx, rec)
	return rec, nil
}

// hotGet reads the Redis layer. Audio payloads are never cached hot, so a
// hot entry for an audio transformation still carries its metadata.
func (s *dbCache) hotGet(ctx context.Context, fingerprint string) *models.TransformationModel {
	if s.rc == nil {
		return nil
	}
	raw, err := s.rc.Get(ctx, hotCacheKeyPrefix+fingerprint)
	if err != nil {
		s.logger.Warn("hot cache read failed", zap.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}
	var rec models.TransformationModel
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}
	if rec.HasAudio() {
		// Blob was stripped before hot-caching; serve audio from MySQL.
		return nil
	}
	if rec.AudioMime != "" {
		return nil
	}
	return &rec
}

func (s *dbCache) hotSet(ctx context.Context, rec *models.TransformationModel) {
	if s.rc == nil {
		return
	}
	if rec.HasAudio() || rec.AudioMime != "" {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.rc.Set(ctx, hotCacheKeyPrefix+rec.Fingerprint, data, 0); err != nil {
		s.logger.Warn("hot cache write failed", zap.Error(err))
	}
}

// isTableMissing detects MySQL ER_NO_SUCH_TABLE, which marks an un-migrated
// environment rather than a storage fault.
func isTableMissing(err error) bool {
	var myErr *gosqlmysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1146
}
