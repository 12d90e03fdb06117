package storage

import (
	"context"
	"io"
	"time"

	"github.com/sharebook/sharebook/internal/telemetry"
)

// instrumented decorates a backend with per-operation counters.
type instrumented struct {
	next Storage
}

// WithMetrics wraps s so that each call increments
// sharebook_storage_operations_total{bucket,op,status}.
func WithMetrics(s Storage) Storage {
	if _, ok := s.(*instrumented); ok {
		return s
	}
	return &instrumented{next: s}
}

func record(p, op string, err error) {
	telemetry.StorageOperationsTotal.WithLabelValues(BucketOf(p), op, telemetry.StatusLabel(err)).Inc()
}

func (m *instrumented) Upload(ctx context.Context, p string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	res, err := m.next.Upload(ctx, p, r, size, contentType)
	record(p, "upload", err)
	return res, err
}

func (m *instrumented) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := m.next.Download(ctx, p)
	record(p, "download", err)
	return rc, err
}

func (m *instrumented) Delete(ctx context.Context, p string) error {
	err := m.next.Delete(ctx, p)
	record(p, "delete", err)
	return err
}

func (m *instrumented) GetURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	u, err := m.next.GetURL(ctx, p, ttl)
	record(p, "sign", err)
	return u, err
}

func (m *instrumented) PublicURL(p string) string {
	return m.next.PublicURL(p)
}

func (m *instrumented) Exists(ctx context.Context, p string) (bool, error) {
	ok, err := m.next.Exists(ctx, p)
	record(p, "exists", err)
	return ok, err
}

func (m *instrumented) GetMetadata(ctx context.Context, p string) (*FileMetadata, error) {
	md, err := m.next.GetMetadata(ctx, p)
	record(p, "metadata", err)
	return md, err
}

func (m *instrumented) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objs, err := m.next.List(ctx, prefix)
	record(prefix, "list", err)
	return objs, err
}
