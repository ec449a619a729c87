package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TypeCategory string

const (
	TypeImage TypeCategory = "image"
	TypeVideo TypeCategory = "video"
)

type File struct {
	ID            uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	ShareID       string         `gorm:"size:64;not null;uniqueIndex" json:"share_id"`
	OriginalName  string         `gorm:"size:255;not null" json:"original_name"`
	StorageKey    string         `gorm:"size:255;not null" json:"-"` // never serialised directly
	MimeType      string         `gorm:"size:100;not null" json:"mime_type"`
	Size          int64          `gorm:"not null" json:"size"`
	Type          TypeCategory   `gorm:"size:16;not null;default:image" json:"type"`
	Metadata      map[string]any `gorm:"type:json;serializer:json" json:"metadata"`
	IsPublic      bool           `gorm:"not null;index:idx_files_owner_public_created,priority:2" json:"is_public"`
	OwnerID       *uuid.UUID     `gorm:"type:char(36);index:idx_files_owner_public_created,priority:1" json:"owner_id"`
	ExpiresAt     *time.Time     `gorm:"index" json:"expires_at"`
	DownloadCount int64          `gorm:"not null;default:0" json:"download_count"`
	CreatedAt     time.Time      `gorm:"index:idx_files_owner_public_created,priority:3" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the file expired at or before now.
func (f *File) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && !f.ExpiresAt.After(now)
}

func (f *File) IsOwnedBy(userID uuid.UUID) bool {
	return f.OwnerID != nil && *f.OwnerID == userID
}

func (f *File) IsImage() bool {
	return f.Type == TypeImage || strings.HasPrefix(f.MimeType, "image/")
}

func (f *File) IsVideo() bool {
	return f.Type == TypeVideo || strings.HasPrefix(f.MimeType, "video/")
}

// Extension returns the lower-case extension of the original name without the dot.
func (f *File) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(f.OriginalName), "."))
}

func (f *File) FormattedSize() string {
	return FormatBytes(f.Size)
}

// Clone returns a deep enough copy for handing records across store boundaries.
func (f *File) Clone() *File {
	c := *f
	if f.OwnerID != nil {
		owner := *f.OwnerID
		c.OwnerID = &owner
	}
	if f.ExpiresAt != nil {
		exp := *f.ExpiresAt
		c.ExpiresAt = &exp
	}
	if f.Metadata != nil {
		c.Metadata = make(map[string]any, len(f.Metadata))
		for k, v := range f.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
