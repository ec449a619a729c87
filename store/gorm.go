package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/basit/mediashare-backend/models"
)

type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open connection. TranslateError is switched on so the
// unique index on share_id surfaces as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) *GormStore {
	db.Config.TranslateError = true
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, f *models.File) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateShareID
		}
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) GetByShareID(ctx context.Context, shareID string) (*models.File, error) {
	return s.first(ctx, "share_id = ?", shareID)
}

func (s *GormStore) first(ctx context.Context, query string, arg any) (*models.File, error) {
	var f models.File
	if err := s.db.WithContext(ctx).Where(query, arg).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading file: %w", err)
	}
	return &f, nil
}

func (s *GormStore) ShareIDExists(ctx context.Context, shareID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.File{}).Where("share_id = ?", shareID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking share id: %w", err)
	}
	return n > 0, nil
}

func (s *GormStore) Update(ctx context.Context, id uuid.UUID, u FileUpdate) (*models.File, error) {
	if u.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	updates := map[string]any{"updated_at": time.Now()}
	if u.OriginalName != nil {
		updates["original_name"] = *u.OriginalName
	}
	if u.IsPublic != nil {
		updates["is_public"] = *u.IsPublic
	}
	switch {
	case u.ClearExpiresAt:
		updates["expires_at"] = nil
	case u.ExpiresAt != nil:
		updates["expires_at"] = *u.ExpiresAt
	}

	if err := s.db.WithContext(ctx).Model(&models.File{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating file: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *GormStore) ToggleVisibility(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var f models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.File{}).Where("id = ?", id).Updates(map[string]any{
			"is_public":  gorm.Expr("NOT is_public"),
			"updated_at": time.Now(),
		})
		if res.Error != nil {
			return fmt.Errorf("toggling visibility: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("id = ?", id).First(&f).Error; err != nil {
			return fmt.Errorf("loading file: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *GormStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.File{})
		if res.Error != nil {
			return fmt.Errorf("deleting file: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("file_id = ?", id).Delete(&models.DownloadEvent{}).Error; err != nil {
			return fmt.Errorf("deleting download events: %w", err)
		}
		return nil
	})
}

func (s *GormStore) RecordDownload(ctx context.Context, id uuid.UUID, event *models.DownloadEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.File{}).Where("id = ?", id).
			UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
		if res.Error != nil {
			return fmt.Errorf("incrementing download count: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if event == nil {
			return nil
		}
		event.FileID = id
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("saving download event: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Query(ctx context.Context, f Filter, srt Sort, p Page) ([]models.File, int64, error) {
	p = p.Normalize()
	base := s.db.WithContext(ctx).Model(&models.File{}).Scopes(filterScope(f))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting files: %w", err)
	}

	files := make([]models.File, 0, p.Size)
	err := base.Session(&gorm.Session{}).
		Order(srt.orderClause()).
		Limit(p.Size).
		Offset(p.Offset()).
		Find(&files).Error
	if err != nil {
		return nil, 0, fmt.Errorf("querying files: %w", err)
	}
	return files, total, nil
}

func filterScope(f Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.OwnerID != nil {
			db = db.Where("owner_id = ?", *f.OwnerID)
		}
		if f.IsPublic != nil {
			db = db.Where("is_public = ?", *f.IsPublic)
		}
		if f.Type != nil {
			db = db.Where("type = ?", *f.Type)
		}
		if f.NameContains != "" {
			db = db.Where("LOWER(original_name) LIKE ?", likePattern(f.NameContains))
		}
		if f.NotExpiredAt != nil {
			db = db.Where("(expires_at IS NULL OR expires_at > ?)", *f.NotExpiredAt)
		}
		if f.ExpiredAt != nil {
			db = db.Where("expires_at IS NOT NULL AND expires_at <= ?", *f.ExpiredAt)
		}
		return db
	}
}
