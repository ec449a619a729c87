package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DownloadEvent struct {
	ID        uuid.UUID  `gorm:"type:char(36);primaryKey"`
	FileID    uuid.UUID  `gorm:"type:char(36);not null;index"`
	UserID    *uuid.UUID `gorm:"type:char(36)"`
	IPAddress string     `gorm:"size:64"`
	UserAgent string     `gorm:"size:512"`
	CreatedAt time.Time
}

func (e *DownloadEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
