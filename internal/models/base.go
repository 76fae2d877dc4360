package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the base model for all entities.
type Base struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"modified"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}

// JSONMap stores an arbitrary JSON object column.
type JSONMap map[string]interface{}
