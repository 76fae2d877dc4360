package database

import (
	"fmt"

	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
//
// Migration is deliberately optional: the transformation cache is specified
// to survive an un-migrated environment (lookups degrade to misses and
// inserts are skipped), so a missing table must stay reachable as a runtime
// condition rather than being repaired on boot.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return db, nil
}

// migrate runs GORM auto-migration for all models.
func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.TransformationModel{},
		&models.TransformHistoryModel{},
		&models.UsageEventModel{},
	)
}
