package services

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/basit/mediashare-backend/access"
	"github.com/basit/mediashare-backend/blob"
	"github.com/basit/mediashare-backend/models"
	"github.com/basit/mediashare-backend/store"
)

var errInjected = errors.New("injected failure")

// fakeBlobs keeps at most the first KiB of every blob plus its size.
type fakeBlobs struct {
	mu        sync.Mutex
	data      map[string][]byte
	sizes     map[string]int64
	putErr    error
	getErr    error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: map[string][]byte{}, sizes: map[string]int64{}}
}

func (b *fakeBlobs) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	if b.putErr != nil {
		return 0, b.putErr
	}
	var head bytes.Buffer
	n, err := io.Copy(io.Discard, io.TeeReader(r, &limitWriter{w: &head, n: 1 << 10}))
	if err != nil {
		return n, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = head.Bytes()
	b.sizes[key] = n
	return n, nil
}

func (b *fakeBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[key]
	if !ok {
		return nil, fmt.Errorf("blob %q: %w", key, blob.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (b *fakeBlobs) Delete(ctx context.Context, key string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		return blob.ErrNotFound
	}
	delete(b.data, key)
	delete(b.sizes, key)
	return nil
}

func (b *fakeBlobs) Locator(ctx context.Context, key string) (string, error) {
	return "/srv/storage/" + key, nil
}

func (b *fakeBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[key]
	return ok
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

type limitWriter struct {
	w io.Writer
	n int
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		k := len(p)
		if k > l.n {
			k = l.n
		}
		l.w.Write(p[:k])
		l.n -= k
	}
	return len(p), nil
}

// flakyStore injects failures into a MemoryStore.
type flakyStore struct {
	*store.MemoryStore
	duplicateInserts int
	insertErr        error
	deleteErr        error
	recordErr        error
	// recordGate, when set, holds RecordDownload until it is closed
	recordGate chan struct{}
}

func (s *flakyStore) Insert(ctx context.Context, f *models.File) error {
	if s.duplicateInserts > 0 {
		s.duplicateInserts--
		return store.ErrDuplicateShareID
	}
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.MemoryStore.Insert(ctx, f)
}

func (s *flakyStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, id)
}

func (s *flakyStore) RecordDownload(ctx context.Context, id uuid.UUID, e *models.DownloadEvent) error {
	if s.recordGate != nil {
		<-s.recordGate
	}
	if s.recordErr != nil {
		return s.recordErr
	}
	return s.MemoryStore.RecordDownload(ctx, id, e)
}

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc   *FileService
	files *flakyStore
	blobs *fakeBlobs
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	files := &flakyStore{MemoryStore: store.NewMemoryStore()}
	blobs := newFakeBlobs()
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithBaseURL("https://share.example.com/"),
	}, opts...)
	svc := NewFileService(files, blobs, zaptest.NewLogger(t), opts...)
	t.Cleanup(svc.Wait)
	return &harness{svc: svc, files: files, blobs: blobs}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

// webpBytes is a lossless webp container carrying only the image header.
func webpBytes(w, h int) []byte {
	chunk := make([]byte, 6) // 5 header bytes plus padding
	chunk[0] = 0x2f
	binary.LittleEndian.PutUint32(chunk[1:], uint32(w-1)|uint32(h-1)<<14)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(chunk)))
	buf.WriteString("WEBPVP8L")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(5))
	buf.Write(chunk)
	return buf.Bytes()
}

// upload creates a public png owned by owner (nil for anonymous).
func (h *harness) upload(t *testing.T, owner *access.Requester, public bool) *models.File {
	t.Helper()
	data := pngBytes(t, 4, 3)
	f, err := h.svc.Create(context.Background(), Upload{
		Name:     "photo.png",
		MimeType: "image/png",
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
		IsPublic: public,
		Owner:    owner,
	})
	require.NoError(t, err)
	return f
}

// seed inserts a record directly, bypassing create-time validation.
func (h *harness) seed(t *testing.T, mutate func(f *models.File)) *models.File {
	t.Helper()
	key := "uploads/" + uuid.NewString() + ".png"
	_, err := h.blobs.Put(context.Background(), key, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	f := &models.File{
		ShareID:      uuid.NewString()[:22],
		OriginalName: "seeded.png",
		StorageKey:   key,
		MimeType:     "image/png",
		Size:         3,
		Type:         models.TypeImage,
		IsPublic:     true,
	}
	if mutate != nil {
		mutate(f)
	}
	require.NoError(t, h.files.MemoryStore.Insert(context.Background(), f))
	return f
}

// zeroReader yields n zero bytes.
func zeroReader(n int64) io.Reader {
	return io.LimitReader(zeros{}, n)
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
