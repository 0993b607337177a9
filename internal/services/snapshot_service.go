package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const snapshotPrefix = "snapshots/"

// ErrSnapshotsDisabled is returned when no object storage is configured
var ErrSnapshotsDisabled = errors.New("snapshot storage is not configured")

// Snapshot describes one archived export
type Snapshot struct {
	Bucket       string    `json:"bucket"`
	ObjectName   string    `json:"object_name"`
	Size         int       `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	PresignedURL string    `json:"presigned_url,omitempty"`
	Pruned       []string  `json:"pruned,omitempty"`
}

// SnapshotService stores exported workbooks under snapshots/<ulid>.xlsx so
// object listings sort by creation time. When retain is positive only the
// newest retain snapshots are kept.
type SnapshotService interface {
	CreateSnapshot(ctx context.Context) (*Snapshot, error)
	Enabled() bool
}

type snapshotService struct {
	categories CategoryService
	storage    MinioService
	bucket     string
	urlExpiry  time.Duration
	retain     int
	logger     *zap.Logger

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

// NewSnapshotService returns a service whose CreateSnapshot fails with
const snapshotPrefix = "snapshots/"

// ErrSnapshotsDisabled when storage is nil.
func NewSnapshotService(categories CategoryService, storage MinioService, bucket string, urlExpiry time.Duration,
	retain int, logger *zap.Logger) SnapshotService {
	return &snapshotService{
		categories: categories,
		storage:    storage,
		bucket:     bucket,
		urlExpiry:  urlExpiry,
		retain:     retain,
		logger:     logger,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *snapshotService) Enabled() bool {
	return s.storage != nil && s.bucket != ""
}

func (s *snapshotService) CreateSnapshot(ctx context.Context) (*Snapshot, error) {
	if !s.Enabled() {
		return nil, ErrSnapshotsDisabled
	}

	data, err := s.categories.ExportWorkbook(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.storage.EnsureBucketExists(ctx, s.bucket); err != nil {
		return nil, fmt.Errorf("%w: ensure bucket: %v", ErrExportFailed, err)
	}

	now := time.Now().UTC()
	snapshot := &Snapshot{
		Bucket:     s.bucket,
		ObjectName: snapshotPrefix + s.newID(now) + ".xlsx",
		Size:       len(data),
		CreatedAt:  now,
	}

	if err := s.storage.UploadObject(ctx, s.bucket, snapshot.ObjectName, bytes.NewReader(data), int64(len(data)), ExportContentType); err != nil {
		return nil, fmt.Errorf("%w: upload snapshot: %v", ErrExportFailed, err)
	}

	if s.urlExpiry > 0 {
		url, err := s.storage.GetPresignedURL(ctx, s.bucket, snapshot.ObjectName, s.urlExpiry)
		if err != nil {
			s.logger.Warn("presign snapshot failed", zap.String("object", snapshot.ObjectName), zap.Error(err))
		} else {
			snapshot.PresignedURL = url
		}
	}

	snapshot.Pruned = s.prune(ctx)

	s.logger.Info("category snapshot stored",
		zap.String("bucket", s.bucket),
		zap.String("object", snapshot.ObjectName),
		zap.Int("bytes", snapshot.Size),
		zap.Int("pruned", len(snapshot.Pruned)))
	return snapshot, nil
}

// prune deletes all but the newest retain snapshots. Failures are logged and
// left for the next run; the new snapshot is already stored.
func (s *snapshotService) prune(ctx context.Context) []string {
	if s.retain <= 0 {
		return nil
	}

	keys, err := s.storage.ListObjects(ctx, s.bucket, snapshotPrefix)
	if err != nil {
		s.logger.Warn("list snapshots failed", zap.Error(err))
		return nil
	}

	var snapshots []string
	for _, key := range keys {
		if strings.HasSuffix(key, ".xlsx") {
			snapshots = append(snapshots, key)
		}
	}
	if len(snapshots) <= s.retain {
		return nil
	}
	sort.Strings(snapshots)

	var pruned []string
	for _, key := range snapshots[:len(snapshots)-s.retain] {
		if err := s.storage.DeleteObject(ctx, s.bucket, key); err != nil {
			s.logger.Warn("delete snapshot failed", zap.String("object", key), zap.Error(err))
			continue
		}
		pruned = append(pruned, key)
	}
	return pruned
}

func (s *snapshotService) newID(now time.Time) string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}
