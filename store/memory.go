package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/basit/mediashare-backend/models"
)

// MemoryStore keeps records in process memory. It backs DB_DRIVER=memory and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	files   map[uuid.UUID]*models.File
	byShare map[string]uuid.UUID
	events  []models.DownloadEvent
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:   make(map[uuid.UUID]*models.File),
		byShare: make(map[string]uuid.UUID),
		now:     time.Now,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, f *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byShare[f.ShareID]; taken {
		return ErrDuplicateShareID
	}
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if _, taken := s.files[f.ID]; taken {
		return fmt.Errorf("inserting file: id %s already exists", f.ID)
	}
	now := s.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}
	s.files[f.ID] = f.Clone()
	s.byShare[f.ShareID] = f.ID
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f.Clone(), nil
}

func (s *MemoryStore) GetByShareID(ctx context.Context, shareID string) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byShare[shareID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.files[id].Clone(), nil
}

func (s *MemoryStore) ShareIDExists(ctx context.Context, shareID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byShare[shareID]
	return ok, nil
}

func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, u FileUpdate) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !u.IsEmpty() {
		u.apply(f)
		f.UpdatedAt = s.now()
	}
	return f.Clone(), nil
}

func (s *MemoryStore) ToggleVisibility(ctx context.Context, id uuid.UUID) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	f.IsPublic = !f.IsPublic
	f.UpdatedAt = s.now()
	return f.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byShare, f.ShareID)
	delete(s.files, id)

	kept := s.events[:0]
	for _, e := range s.events {
		if e.FileID != id {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return nil
}

func (s *MemoryStore) RecordDownload(ctx context.Context, id uuid.UUID, event *models.DownloadEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return ErrNotFound
	}
	f.DownloadCount++
	if event != nil {
		event.FileID = id
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = s.now()
		}
		s.events = append(s.events, *event)
	}
	return nil
}

// DownloadEvents returns the recorded events for one file.
func (s *MemoryStore) DownloadEvents(id uuid.UUID) []models.DownloadEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.DownloadEvent
	for _, e := range s.events {
		if e.FileID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) Query(ctx context.Context, f Filter, srt Sort, p Page) ([]models.File, int64, error) {
	p = p.Normalize()

	s.mu.RLock()
	matched := make([]models.File, 0, len(s.files))
	for _, rec := range s.files {
		if matches(rec, f) {
			matched = append(matched, *rec.Clone())
		}
	}
	s.mu.RUnlock()

	col := srt.Column()
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareColumn(&matched[i], &matched[j], col)
		if c == 0 {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		if srt.Ascending {
			return c < 0
		}
		return c > 0
	})

	total := int64(len(matched))
	start := p.Offset()
	if start >= len(matched) {
		return []models.File{}, total, nil
	}
	end := start + p.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func matches(rec *models.File, f Filter) bool {
	if f.OwnerID != nil && !rec.IsOwnedBy(*f.OwnerID) {
		return false
	}
	if f.IsPublic != nil && rec.IsPublic != *f.IsPublic {
		return false
	}
	if f.Type != nil && rec.Type != *f.Type {
		return false
	}
	if f.NameContains != "" && !strings.Contains(strings.ToLower(rec.OriginalName), strings.ToLower(f.NameContains)) {
		return false
	}
	if f.NotExpiredAt != nil && rec.IsExpired(*f.NotExpiredAt) {
		return false
	}
	if f.ExpiredAt != nil && !rec.IsExpired(*f.ExpiredAt) {
		return false
	}
	return true
}

// compareColumn orders NULL expiries after every set expiry.
func compareColumn(a, b *models.File, col string) int {
	switch col {
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "original_name":
		return strings.Compare(a.OriginalName, b.OriginalName)
	case "size":
		return cmpInt64(a.Size, b.Size)
	case "download_count":
		return cmpInt64(a.DownloadCount, b.DownloadCount)
	case "expires_at":
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return 0
		case a.ExpiresAt == nil:
			return 1
		case b.ExpiresAt == nil:
			return -1
		}
		return a.ExpiresAt.Compare(*b.ExpiresAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
