package storage_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/storage"
	"github.com/sharebook/sharebook/internal/telemetry"
)

// ---------------------------------------------------------------------------
// Minimal mock Storage implementation for Register tests
// ---------------------------------------------------------------------------

type mockStorage struct {
	deleteErr error
}

func (m *mockStorage) Upload(_ context.Context, p string, _ io.Reader, size int64, _ string) (*storage.UploadResult, error) {
	return &storage.UploadResult{Path: p, Size: size}, nil
}
func (m *mockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) { return nil, nil }
func (m *mockStorage) Delete(_ context.Context, _ string) error                    { return m.deleteErr }
func (m *mockStorage) GetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", nil
}
func (m *mockStorage) PublicURL(p string) string                        { return "http://files/" + p }
func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockStorage) GetMetadata(_ context.Context, _ string) (*storage.FileMetadata, error) {
	return nil, nil
}
func (m *mockStorage) List(_ context.Context, _ string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.Config) (storage.Storage, error) {
		return &mockStorage{}, nil
	})

	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "test-backend"

	s, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s == nil {
		t.Fatal("NewStorage() returned nil")
	}
	if got := s.PublicURL("project-covers/a.png"); got != "http://files/project-covers/a.png" {
		t.Errorf("PublicURL() = %q", got)
	}

	found := false
	for _, name := range storage.Registered() {
		if name == "test-backend" {
			found = true
		}
	}
	if !found {
		t.Errorf("Registered() = %v, missing test-backend", storage.Registered())
	}
}

func TestRegister_FactoryError(t *testing.T) {
	storage.Register("failing-backend", func(_ *config.Config) (storage.Storage, error) {
		return nil, errors.New("boom")
	})
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "failing-backend"

	if _, err := storage.NewStorage(cfg); err == nil {
		t.Error("NewStorage() = nil error, want factory error")
	}
}

// ---------------------------------------------------------------------------
// NewStorage
// ---------------------------------------------------------------------------

func TestNewStorage_UnknownBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = "completely-unknown-backend"

	_, err := storage.NewStorage(cfg)
	if err == nil {
		t.Error("NewStorage() = nil error, want error for unregistered backend")
	}
}

func TestNewStorage_EmptyBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DefaultBackend = ""

	_, err := storage.NewStorage(cfg)
	if err == nil {
		t.Error("NewStorage() = nil error, want error for empty backend name")
	}
}

// ---------------------------------------------------------------------------
// WithMetrics
// ---------------------------------------------------------------------------

func TestWithMetrics_CountsByBucket(t *testing.T) {
	s := storage.WithMetrics(&mockStorage{deleteErr: errors.New("gone")})
	ctx := context.Background()

	okBefore := testutil.ToFloat64(telemetry.StorageOperationsTotal.WithLabelValues("metrics-bucket", "upload", "ok"))
	errBefore := testutil.ToFloat64(telemetry.StorageOperationsTotal.WithLabelValues("metrics-bucket", "delete", "error"))

	if _, err := s.Upload(ctx, "metrics-bucket/x.png", nil, 3, "image/png"); err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
	if err := s.Delete(ctx, "metrics-bucket/x.png"); err == nil {
		t.Fatal("Delete() error = nil, want wrapped backend error")
	}

	if got := testutil.ToFloat64(telemetry.StorageOperationsTotal.WithLabelValues("metrics-bucket", "upload", "ok")); got != okBefore+1 {
		t.Errorf("upload ok counter = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(telemetry.StorageOperationsTotal.WithLabelValues("metrics-bucket", "delete", "error")); got != errBefore+1 {
		t.Errorf("delete error counter = %v, want %v", got, errBefore+1)
	}
}

func TestWithMetrics_Idempotent(t *testing.T) {
	once := storage.WithMetrics(&mockStorage{})
	if twice := storage.WithMetrics(once); twice != once {
		t.Error("WithMetrics() wrapped an already instrumented backend")
	}
}
