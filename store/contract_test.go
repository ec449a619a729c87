package store

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/mediashare-backend/models"
)

// runFileStoreContract exercises behaviour every FileStore must share.
func runFileStoreContract(t *testing.T, newStore func(t *testing.T) FileStore) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("DuplicateShareID", func(t *testing.T) { testDuplicateShareID(t, newStore(t)) })
	t.Run("UpdateAllowListedFields", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ToggleVisibilityConcurrent", func(t *testing.T) { testToggleVisibilityConcurrent(t, newStore(t)) })
	t.Run("RecordDownloadConcurrent", func(t *testing.T) { testRecordDownloadConcurrent(t, newStore(t)) })
	t.Run("QueryNotExpired", func(t *testing.T) { testQueryNotExpired(t, newStore(t)) })
	t.Run("QueryPagination", func(t *testing.T) { testQueryPagination(t, newStore(t)) })
	t.Run("QueryFilters", func(t *testing.T) { testQueryFilters(t, newStore(t)) })
}

func newFile(shareID string) *models.File {
	return &models.File{
		ShareID:      shareID,
		OriginalName: shareID + ".png",
		StorageKey:   "uploads/" + shareID + ".png",
		MimeType:     "image/png",
		Size:         10,
		Type:         models.TypeImage,
		Metadata:     map[string]any{"dimensions": "1x1"},
		IsPublic:     true,
	}
}

func insert(t *testing.T, s FileStore, f *models.File) *models.File {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), f))
	require.NotEqual(t, uuid.Nil, f.ID)
	return f
}

func testInsertAndGet(t *testing.T, s FileStore) {
	ctx := context.Background()
	owner := uuid.New()
	f := newFile("share-insert")
	f.OwnerID = &owner
	insert(t, s, f)

	byID, err := s.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "share-insert", byID.ShareID)
	assert.Equal(t, int64(0), byID.DownloadCount)
	assert.Equal(t, owner, *byID.OwnerID)
	assert.Equal(t, "1x1", byID.Metadata["dimensions"])
	assert.False(t, byID.CreatedAt.IsZero())

	byShare, err := s.GetByShareID(ctx, "share-insert")
	require.NoError(t, err)
	assert.Equal(t, f.ID, byShare.ID)

	exists, err := s.ShareIDExists(ctx, "share-insert")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ShareIDExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByShareID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func testDuplicateShareID(t *testing.T, s FileStore) {
	ctx := context.Background()
	first := insert(t, s, newFile("dup"))

	second := newFile("dup")
	second.OriginalName = "other.png"
	err := s.Insert(ctx, second)
	require.ErrorIs(t, err, ErrDuplicateShareID)

	got, err := s.GetByShareID(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.OriginalName, got.OriginalName, "existing record must not be overwritten")
}

func testUpdate(t *testing.T, s FileStore) {
	ctx := context.Background()
	f := insert(t, s, newFile("upd"))

	name := "renamed.png"
	private := false
	exp := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	got, err := s.Update(ctx, f.ID, FileUpdate{OriginalName: &name, IsPublic: &private, ExpiresAt: &exp})
	require.NoError(t, err)
	assert.Equal(t, name, got.OriginalName)
	assert.False(t, got.IsPublic)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))
	assert.Equal(t, f.ShareID, got.ShareID)
	assert.Equal(t, f.StorageKey, got.StorageKey)
	assert.Equal(t, f.Size, got.Size)

	got, err = s.Update(ctx, f.ID, FileUpdate{ClearExpiresAt: true})
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)
	assert.Equal(t, name, got.OriginalName)

	_, err = s.Update(ctx, uuid.New(), FileUpdate{OriginalName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func testDelete(t *testing.T, s FileStore) {
	ctx := context.Background()
	f := insert(t, s, newFile("del"))

	require.NoError(t, s.Delete(ctx, f.ID))
	_, err := s.GetByID(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, f.ID), ErrNotFound)

	exists, err := s.ShareIDExists(ctx, "del")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testRecordDownloadConcurrent(t *testing.T, s FileStore) {
	ctx := context.Background()
	f := insert(t, s, newFile("dl"))

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordDownload(ctx, f.ID, &models.DownloadEvent{IPAddress: "127.0.0.1"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.DownloadCount)

	assert.ErrorIs(t, s.RecordDownload(ctx, uuid.New(), nil), ErrNotFound)
}

func testToggleVisibilityConcurrent(t *testing.T, s FileStore) {
	ctx := context.Background()
	f := newFile("toggle")
	f.IsPublic = true
	insert(t, s, f)

	// an even number of flips must land back on the starting value
	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ToggleVisibility(ctx, f.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	flipped, err := s.ToggleVisibility(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, flipped.IsPublic)
	assert.Equal(t, f.OriginalName, flipped.OriginalName)

	_, err = s.ToggleVisibility(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func testQueryNotExpired(t *testing.T, s FileStore) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	expired := newFile("expired")
	expired.ExpiresAt = &past
	live := newFile("live")
	live.ExpiresAt = &future
	forever := newFile("forever")
	insert(t, s, expired)
	insert(t, s, live)
	insert(t, s, forever)

	files, total, err := s.Query(ctx, Filter{NotExpiredAt: &now}, Sort{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []string{"live", "forever"}, shareIDs(files))

	files, total, err = s.Query(ctx, Filter{ExpiredAt: &now}, Sort{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"expired"}, shareIDs(files))
}

func testQueryPagination(t *testing.T, s FileStore) {
	ctx := context.Background()
	sizes := rand.Perm(25)
	for _, sz := range sizes {
		f := newFile(fmt.Sprintf("page-%02d", sz))
		f.Size = int64(sz + 1)
		insert(t, s, f)
	}

	files, total, err := s.Query(ctx, Filter{}, Sort{Field: "size", Ascending: true}, Page{Number: 2, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	require.Len(t, files, 10)
	assert.Equal(t, int64(11), files[0].Size, "page 2 starts at the 11th record")
	assert.Equal(t, int64(20), files[9].Size)

	files, _, err = s.Query(ctx, Filter{}, Sort{Field: "size"}, Page{Number: 1, Size: 500})
	require.NoError(t, err)
	assert.Len(t, files, 25)
	assert.Equal(t, int64(25), files[0].Size, "descending by default")

	files, _, err = s.Query(ctx, Filter{}, Sort{Field: "size"}, Page{Number: 4, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func testQueryFilters(t *testing.T, s FileStore) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	a1 := newFile("alice-public")
	a1.OwnerID = &alice
	a2 := newFile("alice-private")
	a2.OwnerID = &alice
	a2.IsPublic = false
	b1 := newFile("bob-video")
	b1.OwnerID = &bob
	b1.Type = models.TypeVideo
	b1.MimeType = "video/mp4"
	b1.OriginalName = "Summer_Trip.mp4"
	for _, f := range []*models.File{a1, a2, b1} {
		insert(t, s, f)
	}

	files, total, err := s.Query(ctx, Filter{OwnerID: &alice}, Sort{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.ElementsMatch(t, []string{"alice-public", "alice-private"}, shareIDs(files))

	public := true
	files, _, err = s.Query(ctx, Filter{OwnerID: &alice, IsPublic: &public}, Sort{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice-public"}, shareIDs(files))

	video := models.TypeVideo
	files, _, err = s.Query(ctx, Filter{Type: &video}, Sort{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-video"}, shareIDs(files))

	files, _, err = s.Query(ctx, Filter{NameContains: "summer_"}, Sort{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-video"}, shareIDs(files))
}

func shareIDs(files []models.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.ShareID)
	}
	return out
}
