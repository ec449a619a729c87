// Package store persists file records. The FileStore contract is implemented
// by GormStore (Postgres or MySQL) and MemoryStore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/basit/mediashare-backend/models"
)

var (
	ErrNotFound = errors.New("file record not found")
	// ErrDuplicateShareID is returned by Insert when the share id is already taken.
	ErrDuplicateShareID = errors.New("share id already exists")
)

type FileStore interface {
	Insert(ctx context.Context, f *models.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetByShareID(ctx context.Context, shareID string) (*models.File, error)
	ShareIDExists(ctx context.Context, shareID string) (bool, error)
	Update(ctx context.Context, id uuid.UUID, u FileUpdate) (*models.File, error)
	// ToggleVisibility flips is_public in a single write and returns the result.
	ToggleVisibility(ctx context.Context, id uuid.UUID) (*models.File, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// RecordDownload atomically increments download_count and stores the event.
	RecordDownload(ctx context.Context, id uuid.UUID, event *models.DownloadEvent) error
	Query(ctx context.Context, f Filter, s Sort, p Page) ([]models.File, int64, error)
}

// FileUpdate lists the only columns that may change after creation.
type FileUpdate struct {
	OriginalName   *string
	IsPublic       *bool
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

func (u FileUpdate) IsEmpty() bool {
	return u.OriginalName == nil && u.IsPublic == nil && u.ExpiresAt == nil && !u.ClearExpiresAt
}

func (u FileUpdate) apply(f *models.File) {
	if u.OriginalName != nil {
		f.OriginalName = *u.OriginalName
	}
	if u.IsPublic != nil {
		f.IsPublic = *u.IsPublic
	}
	switch {
	case u.ClearExpiresAt:
		f.ExpiresAt = nil
	case u.ExpiresAt != nil:
		exp := *u.ExpiresAt
		f.ExpiresAt = &exp
	}
}
