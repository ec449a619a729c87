package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/mediashare-backend/access"
	"github.com/basit/mediashare-backend/blob"
	"github.com/basit/mediashare-backend/metadata"
	"github.com/basit/mediashare-backend/models"
	"github.com/basit/mediashare-backend/shareid"
	"github.com/basit/mediashare-backend/store"
)

const (
	MaxNameLength = 255
	MaxExpiry     = 365 * 24 * time.Hour

	maxShareIDAttempts = 8
	// bytes of the upload kept in memory for metadata extraction
	metadataBufferSize = 512 << 10
	recordDownloadWait = 5 * time.Second
)

// Upload is one incoming file. Size is the declared length, or -1 if unknown.
type Upload struct {
	Name      string
	MimeType  string
	Size      int64
	Body      io.Reader
	IsPublic  bool
	ExpiresAt *time.Time
	Owner     *access.Requester
}

// Client describes the caller of a download for the download log.
type Client struct {
	IP        string
	UserAgent string
}

// Download is an open blob ready to be streamed. The caller closes Body.
type Download struct {
	Body     io.ReadCloser
	Name     string
	MimeType string
	Size     int64
	File     *models.File
}

type ListOptions struct {
	// Mine lists the requester's own files instead of public ones.
	Mine           bool
	IncludeExpired bool
	Type           *models.TypeCategory
	Query          string
	Sort           store.Sort
	Page           store.Page
}

type FilePage struct {
	Files    []models.File
	Total    int64
	Page     int
	PerPage  int
	LastPage int
}

type FileService struct {
	files    store.FileStore
	blobs    blob.Store
	extract  metadata.Extractor
	shareIDs *shareid.Generator
	cache    *RecordCache
	baseURL  string
	now      func() time.Time
	log      *zap.Logger

	// in-flight download counters, see Wait
	pending sync.WaitGroup
}

type Option func(*FileService)

func WithCache(c *RecordCache) Option {
	return func(s *FileService) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *FileService) { s.now = now }
}

func WithBaseURL(u string) Option {
	return func(s *FileService) { s.baseURL = strings.TrimRight(u, "/") }
}

func WithExtractor(e metadata.Extractor) Option {
	return func(s *FileService) { s.extract = e }
}

func WithShareIDGenerator(g *shareid.Generator) Option {
	return func(s *FileService) { s.shareIDs = g }
}

func NewFileService(files store.FileStore, blobs blob.Store, log *zap.Logger, opts ...Option) *FileService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &FileService{
		files:   files,
		blobs:   blobs,
		extract: metadata.Extract,
		baseURL: "http://localhost:8080",
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shareIDs == nil {
		s.shareIDs = shareid.NewGenerator(files.ShareIDExists)
	}
	return s
}

// Create validates the upload, writes the blob and inserts the record.
// No record exists unless the blob write succeeded.
func (s *FileService) Create(ctx context.Context, u Upload) (*models.File, error) {
	now := s.now()

	name, err := validateName(filepath.Base(strings.ReplaceAll(u.Name, `\`, "/")))
	if err != nil {
		return nil, err
	}
	if u.Size > models.MaxUploadSize {
		return nil, invalid("file", "file exceeds the %s limit", models.FormatBytes(models.MaxUploadSize))
	}
	if u.ExpiresAt != nil {
		if err := validateExpiry(*u.ExpiresAt, now); err != nil {
			return nil, err
		}
	}
	if u.Body == nil {
		return nil, invalid("file", "no file uploaded")
	}

	head := make([]byte, metadata.HeadSize)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]

	mime := models.NormalizeMime(u.MimeType)
	if mime == "" || mime == "application/octet-stream" {
		mime = metadata.Sniff(head)
	}
	if !models.IsAllowedMime(mime) {
		return nil, invalid("file", "file type %q is not allowed", mime)
	}
	category, _ := models.TypeCategoryFor(mime)

	key := fmt.Sprintf("uploads/%s.%s", uuid.NewString(), models.ExtensionForMime(mime))
	sample := &cappedBuffer{limit: metadataBufferSize}
	body := io.TeeReader(
		io.LimitReader(io.MultiReader(bytes.NewReader(head), u.Body), models.MaxUploadSize+1),
		sample,
	)

	written, err := s.blobs.Put(ctx, key, body)
	if err != nil {
		s.log.Error("blob write failed", zap.String("key", key), zap.Error(err))
		return nil, storageErr(err)
	}
	if written > models.MaxUploadSize {
		s.removeBlob(key)
		return nil, invalid("file", "file exceeds the %s limit", models.FormatBytes(models.MaxUploadSize))
	}

	f := &models.File{
		OriginalName: name,
		StorageKey:   key,
		MimeType:     mime,
		Size:         written,
		Type:         category,
		Metadata:     s.extractMetadata(sample.Bytes(), category, key),
		IsPublic:     u.IsPublic,
		ExpiresAt:    u.ExpiresAt,
	}
	if u.Owner != nil {
		owner := u.Owner.ID
		f.OwnerID = &owner
	}

	if err := s.insert(ctx, f); err != nil {
		s.removeBlob(key)
		return nil, err
	}

	uploadsTotal.WithLabelValues(string(category)).Inc()
	uploadBytesTotal.Add(float64(written))
	s.log.Info("file uploaded",
		zap.String("id", f.ID.String()),
		zap.String("share_id", f.ShareID),
		zap.String("mime", mime),
		zap.Int64("size", written),
	)
	return f, nil
}

// insert assigns a share id and retries when the store reports a collision.
func (s *FileService) insert(ctx context.Context, f *models.File) error {
	for attempt := 1; attempt <= maxShareIDAttempts; attempt++ {
		id, err := s.shareIDs.Generate(ctx)
		if err != nil {
			return fmt.Errorf("generating share id: %w", err)
		}
		f.ShareID = id
		err = s.files.Insert(ctx, f)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateShareID) {
			return fmt.Errorf("saving file record: %w", err)
		}
		s.log.Warn("share id collision, retrying", zap.Int("attempt", attempt))
	}
	return ErrShareIDExhausted
}

// extractMetadata is best-effort: a panicking decoder yields empty metadata.
func (s *FileService) extractMetadata(sample []byte, category models.TypeCategory, key string) (md map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			bestEffortFailuresTotal.WithLabelValues("metadata").Inc()
			s.log.Warn("metadata extraction failed", zap.String("key", key), zap.Any("panic", r))
			md = map[string]any{}
		}
	}()
	md = s.extract(sample, category)
	if md == nil {
		md = map[string]any{}
	}
	return md
}

// Get resolves a uuid as a record id and anything else as a share id.
// Records the requester may not read are reported as not found.
func (s *FileService) Get(ctx context.Context, ref string, r *access.Requester) (*models.File, error) {
	var (
		f   *models.File
		err error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		f, err = s.files.GetByID(ctx, id)
	} else {
		f, err = s.files.GetByShareID(ctx, ref)
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !access.CanRead(f, r, s.now()) {
		return nil, ErrNotFound
	}
	return f, nil
}

// GetShared looks a file up by share id only, for the public share route.
func (s *FileService) GetShared(ctx context.Context, shareID string, r *access.Requester) (*models.File, error) {
	f, err := s.files.GetByShareID(ctx, shareID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !access.CanRead(f, r, s.now()) {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *FileService) List(ctx context.Context, r *access.Requester, opts ListOptions) (*FilePage, error) {
	now := s.now()
	filter := store.Filter{Type: opts.Type, NameContains: strings.TrimSpace(opts.Query)}

	if opts.Mine {
		if r == nil {
			return nil, ErrUnauthenticated
		}
		owner := r.ID
		filter.OwnerID = &owner
		if !opts.IncludeExpired {
			filter.NotExpiredAt = &now
		}
	} else {
		public := true
		filter.IsPublic = &public
		filter.NotExpiredAt = &now
	}

	page := opts.Page.Normalize()
	files, total, err := s.files.Query(ctx, filter, opts.Sort, page)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	last := int((total + int64(page.Size) - 1) / int64(page.Size))
	if last < 1 {
		last = 1
	}
	return &FilePage{Files: files, Total: total, Page: page.Number, PerPage: page.Size, LastPage: last}, nil
}

// Update applies the allow-listed fields of u.
func (s *FileService) Update(ctx context.Context, id uuid.UUID, r *access.Requester, u store.FileUpdate) (*models.File, error) {
	f, err := s.getForMutation(ctx, id, r)
	if err != nil {
		return nil, err
	}

	if u.OriginalName != nil {
		name, err := validateName(*u.OriginalName)
		if err != nil {
			return nil, err
		}
		u.OriginalName = &name
	}
	if u.ClearExpiresAt && u.ExpiresAt != nil {
		return nil, invalid("expires_at", "cannot both set and clear the expiry")
	}
	if u.ExpiresAt != nil {
		if err := validateExpiry(*u.ExpiresAt, s.now()); err != nil {
			return nil, err
		}
	}
	if u.IsEmpty() {
		return f, nil
	}

	updated, err := s.files.Update(ctx, id, u)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.cache.Remove(f.ShareID)
	s.log.Info("file updated", zap.String("id", id.String()))
	return updated, nil
}

// ToggleVisibility flips is_public and nothing else.
func (s *FileService) ToggleVisibility(ctx context.Context, id uuid.UUID, r *access.Requester) (*models.File, error) {
	f, err := s.getForMutation(ctx, id, r)
	if err != nil {
		return nil, err
	}
	updated, err := s.files.ToggleVisibility(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.cache.Remove(f.ShareID)
	s.log.Info("file visibility changed", zap.String("id", id.String()), zap.Bool("is_public", updated.IsPublic))
	return updated, nil
}

// Delete removes the blob first. A failed blob delete keeps the record.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID, r *access.Requester) error {
	f, err := s.getForMutation(ctx, id, r)
	if err != nil {
		return err
	}
	if err := s.deleteFile(ctx, f); err != nil {
		return err
	}
	s.log.Info("file deleted", zap.String("id", id.String()))
	return nil
}

func (s *FileService) deleteFile(ctx context.Context, f *models.File) error {
	if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
		if !errors.Is(err, blob.ErrNotFound) {
			s.log.Error("blob delete failed, keeping record",
				zap.String("id", f.ID.String()), zap.String("key", f.StorageKey), zap.Error(err))
			return storageErr(err)
		}
		s.log.Warn("blob already missing", zap.String("id", f.ID.String()), zap.String("key", f.StorageKey))
	}
	s.cache.Remove(f.ShareID)

	if err := s.files.Delete(ctx, f.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		consistencyErrorsTotal.Inc()
		s.log.Error("blob removed but record delete failed",
			zap.String("id", f.ID.String()), zap.String("key", f.StorageKey), zap.Error(err))
		return fmt.Errorf("%w: record %s: %w", ErrConsistency, f.ID, err)
	}
	return nil
}

// Download checks access, opens the blob and counts the download in the
// background. Counting is best-effort and never fails or delays the download.
func (s *FileService) Download(ctx context.Context, shareID string, r *access.Requester, c Client) (*Download, error) {
	f, err := s.lookupShare(ctx, shareID)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	now := s.now()
	if access.IsExpired(f, now) {
		downloadsTotal.WithLabelValues("expired").Inc()
		return nil, ErrExpired
	}
	if !access.CanRead(f, r, now) {
		downloadsTotal.WithLabelValues("denied").Inc()
		return nil, ErrAccessDenied
	}

	body, err := s.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		downloadsTotal.WithLabelValues("storage_error").Inc()
		s.log.Error("blob read failed", zap.String("id", f.ID.String()), zap.String("key", f.StorageKey), zap.Error(err))
		return nil, storageErr(err)
	}

	s.recordDownload(ctx, f, r, c)
	downloadsTotal.WithLabelValues("ok").Inc()
	return &Download{
		Body:     body,
		Name:     f.OriginalName,
		MimeType: f.MimeType,
		Size:     f.Size,
		File:     f,
	}, nil
}

func (s *FileService) recordDownload(ctx context.Context, f *models.File, r *access.Requester, c Client) {
	event := &models.DownloadEvent{IPAddress: c.IP, UserAgent: c.UserAgent}
	if r != nil {
		uid := r.ID
		event.UserID = &uid
	}
	id := f.ID
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, recordDownloadWait)
		defer cancel()
		if err := s.files.RecordDownload(ctx, id, event); err != nil {
			bestEffortFailuresTotal.WithLabelValues("download_count").Inc()
			s.log.Warn("recording download failed", zap.String("id", id.String()), zap.Error(err))
		}
	}()
}

// Wait blocks until every download counter started so far has finished.
func (s *FileService) Wait() {
	s.pending.Wait()
}

// ShareLink returns the public link of a readable, public file.
func (s *FileService) ShareLink(ctx context.Context, shareID string, r *access.Requester) (string, error) {
	f, err := s.lookupShare(ctx, shareID)
	if err != nil {
		return "", err
	}
	if !access.CanRead(f, r, s.now()) {
		return "", ErrNotFound
	}
	if !f.IsPublic {
		return "", invalid("is_public", "file must be public to be shared")
	}
	return s.ShareURL(f), nil
}

func (s *FileService) ShareURL(f *models.File) string {
	return s.baseURL + "/share/" + f.ShareID
}

func (s *FileService) DownloadURL(f *models.File) string {
	return s.baseURL + "/api/files/download/" + f.ShareID
}

// PreviewURL returns the blob locator of a file, for its owner only.
func (s *FileService) PreviewURL(ctx context.Context, f *models.File, r *access.Requester) (string, error) {
	if !access.CanMutate(f, r) {
		return "", ErrAccessDenied
	}
	loc, err := s.blobs.Locator(ctx, f.StorageKey)
	if err != nil {
		return "", storageErr(err)
	}
	return loc, nil
}

// PurgeExpired deletes up to batch expired files regardless of owner and
// returns how many were removed.
func (s *FileService) PurgeExpired(ctx context.Context, batch int) (int, error) {
	now := s.now()
	files, _, err := s.files.Query(ctx,
		store.Filter{ExpiredAt: &now},
		store.Sort{Field: "expires_at", Ascending: true},
		store.Page{Number: 1, Size: batch},
	)
	if err != nil {
		return 0, fmt.Errorf("finding expired files: %w", err)
	}

	var (
		purged int
		errs   []error
	)
	for i := range files {
		f := &files[i]
		if err := s.deleteFile(ctx, f); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("purging %s: %w", f.ID, err))
			continue
		}
		purged++
	}
	purgedTotal.Add(float64(purged))
	if purged > 0 {
		s.log.Info("expired files purged", zap.Int("count", purged))
	}
	return purged, errors.Join(errs...)
}

func (s *FileService) lookupShare(ctx context.Context, shareID string) (*models.File, error) {
	if f, ok := s.cache.Get(shareID); ok {
		return f, nil
	}
	f, err := s.files.GetByShareID(ctx, shareID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.cache.Set(f)
	return f, nil
}

func (s *FileService) getForMutation(ctx context.Context, id uuid.UUID, r *access.Requester) (*models.File, error) {
	f, err := s.files.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !access.CanMutate(f, r) {
		return nil, ErrAccessDenied
	}
	return f, nil
}

// removeBlob cleans up after a failed create.
func (s *FileService) removeBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordDownloadWait)
	defer cancel()
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		bestEffortFailuresTotal.WithLabelValues("blob_cleanup").Inc()
		s.log.Warn("removing orphaned blob failed", zap.String("key", key), zap.Error(err))
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("loading file: %w", err)
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "", invalid("original_name", "name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", invalid("original_name", "name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}

func validateExpiry(exp, now time.Time) error {
	if !exp.After(now) {
		return invalid("expires_at", "expiry must be in the future")
	}
	if exp.After(now.Add(MaxExpiry)) {
		return invalid("expires_at", "expiry must be within one year")
	}
	return nil
}

// cappedBuffer keeps the first limit bytes written and drops the rest.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) Bytes() []byte { return b.buf.Bytes() }
