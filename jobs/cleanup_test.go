package jobs

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/basit/mediashare-backend/blob"
	"github.com/basit/mediashare-backend/services"
	"github.com/basit/mediashare-backend/store"
)

type scriptedPurger struct {
	results []int
	err     error
	calls   atomic.Int32
}

func (p *scriptedPurger) PurgeExpired(_ context.Context, batch int) (int, error) {
	i := int(p.calls.Add(1)) - 1
	if i >= len(p.results) {
		return 0, nil
	}
	if p.err != nil && i == len(p.results)-1 {
		return p.results[i], p.err
	}
	return p.results[i], nil
}

func TestCleanupExpiredFiles_DrainsFullBatches(t *testing.T) {
	p := &scriptedPurger{results: []int{10, 10, 3}}
	n := cleanupExpiredFiles(context.Background(), p, 10, zaptest.NewLogger(t))
	assert.Equal(t, 23, n)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestCleanupExpiredFiles_StopsOnError(t *testing.T) {
	p := &scriptedPurger{results: []int{10, 4}, err: errors.New("blob store down")}
	n := cleanupExpiredFiles(context.Background(), p, 10, zaptest.NewLogger(t))
	assert.Equal(t, 14, n)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestStartCleanupJob_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedPurger{}
	StartCleanupJob(ctx, p, 5*time.Millisecond, 10, zaptest.NewLogger(t))

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)
	settled := p.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, p.calls.Load())
}

func TestStartCleanupJob_DisabledAtZeroInterval(t *testing.T) {
	p := &scriptedPurger{}
	StartCleanupJob(context.Background(), p, 0, 10, zaptest.NewLogger(t))
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, p.calls.Load())
}

func TestCleanupExpiredFiles_WithFileService(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	files := store.NewMemoryStore()
	svc := services.NewFileService(files, blobs, zaptest.NewLogger(t), services.WithClock(clock))

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 2, 2))))

	soon := now.Add(time.Hour)
	var keys []string
	for i := 0; i < 5; i++ {
		exp := &soon
		if i == 4 {
			exp = nil
		}
		f, err := svc.Create(ctx, services.Upload{
			Name:      "pic.png",
			MimeType:  "image/png",
			Size:      int64(img.Len()),
			Body:      bytes.NewReader(img.Bytes()),
			IsPublic:  true,
			ExpiresAt: exp,
		})
		require.NoError(t, err)
		keys = append(keys, f.StorageKey)
	}

	now = now.Add(2 * time.Hour)
	n := cleanupExpiredFiles(ctx, svc, 2, zaptest.NewLogger(t))
	assert.Equal(t, 4, n)

	for _, k := range keys[:4] {
		_, err := blobs.Get(ctx, k)
		assert.ErrorIs(t, err, blob.ErrNotFound)
	}
	rc, err := blobs.Get(ctx, keys[4])
	require.NoError(t, err)
	rc.Close()
}
