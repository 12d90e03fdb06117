// Package gcs implements the Google Cloud Storage backend. Signed download URLs
// are V4 signed URLs. Supports Application Default Credentials, service account
// JSON keys, and Workload Identity Federation.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	appconfig "github.com/sharebook/sharebook/internal/config"
	appstorage "github.com/sharebook/sharebook/internal/storage"
	"github.com/sharebook/sharebook/pkg/checksum"
)

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(&cfg.Storage.GCS)
	})
}

// GCSStorage implements the Storage interface for Google Cloud Storage
type GCSStorage struct {
	client    *storage.Client
	bucket    string
	projectID string
	publicURL string
	endpoint  string
}

// New creates a new Google Cloud Storage backend
//
// Authentication methods:
//   - "default" or empty: Application Default Credentials (ADC)
//   - "service_account": a service account key file or JSON
//   - "workload_identity": Workload Identity Federation, resolved through ADC
func New(cfg *appconfig.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	authMethod := cfg.AuthMethod
	if authMethod == "" {
		if cfg.CredentialsFile != "" || cfg.CredentialsJSON != "" {
			authMethod = "service_account"
		} else {
			authMethod = "default"
		}
	}

	switch authMethod {
	case "service_account":
		switch {
		case cfg.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		default:
			return nil, fmt.Errorf("credentials_file or credentials_json is required for service_account auth")
		}
	case "workload_identity", "default":
	default:
		return nil, fmt.Errorf("unsupported auth_method: %s (must be 'default', 'service_account', or 'workload_identity')", authMethod)
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client:    client,
		bucket:    cfg.Bucket,
		projectID: cfg.ProjectID,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
	}, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) object(path string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path)
}

// Upload stores a file in GCS with its SHA256 in the object metadata.
func (s *GCSStorage) Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*appstorage.UploadResult, error) {
	writer := s.object(path).NewWriter(ctx)
	writer.ContentType = contentType

	cr := checksum.NewReader(reader)
	if _, err := io.Copy(writer, cr); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	sum := cr.Sum()
	// The digest is only known after streaming, so it is attached afterwards.
	if _, err := s.object(path).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: map[string]string{"sha256": sum},
	}); err != nil {
		return nil, fmt.Errorf("failed to set GCS object metadata: %w", err)
	}

	return &appstorage.UploadResult{
		Path:     path,
		Size:     cr.Size(),
		Checksum: sum,
	}, nil
}

// Download retrieves a file from GCS
func (s *GCSStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	reader, err := s.object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", appstorage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}

	return reader, nil
}

// Delete removes a file from GCS
func (s *GCSStorage) Delete(ctx context.Context, path string) error {
	if err := s.object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}

	return nil
}

// GetURL returns a V4 signed URL. Signing needs a service account key, or ADC
// with iam.serviceAccounts.signBlob.
func (s *GCSStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", appstorage.ErrNotFound, path)
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}

	return url, nil
}

// PublicURL returns public_url/path when configured, else the storage.googleapis.com
// URL (or the emulator endpoint).
func (s *GCSStorage) PublicURL(path string) string {
	path = strings.TrimPrefix(path, "/")
	switch {
	case s.publicURL != "":
		return s.publicURL + "/" + path
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, path)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, path)
	}
}

// Exists checks if a file exists at the specified path
func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := s.object(path).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// GetMetadata retrieves file metadata without downloading the entire file
func (s *GCSStorage) GetMetadata(ctx context.Context, path string) (*appstorage.FileMetadata, error) {
	attrs, err := s.object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", appstorage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to get object metadata: %w", err)
	}

	sum := attrs.Metadata["sha256"]
	if sum == "" {
		reader, err := s.Download(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to download for checksum: %w", err)
		}
		defer reader.Close()

		if sum, err = checksum.CalculateSHA256(reader); err != nil {
			return nil, fmt.Errorf("failed to compute checksum: %w", err)
		}
	}

	return &appstorage.FileMetadata{
		Path:         path,
		Size:         attrs.Size,
		Checksum:     sum,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
	}, nil
}

// List returns every object under prefix.
func (s *GCSStorage) List(ctx context.Context, prefix string) ([]appstorage.ObjectInfo, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []appstorage.ObjectInfo
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		objects = append(objects, appstorage.ObjectInfo{
			Path:         attrs.Name,
			URL:          s.PublicURL(attrs.Name),
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}

	return objects, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Creation needs project_id.
func (s *GCSStorage) EnsureBucket(ctx context.Context) error {
	bucket := s.client.Bucket(s.bucket)

	_, err := bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if s.projectID == "" {
		return fmt.Errorf("project_id is required to create a bucket")
	}
	if err := bucket.Create(ctx, s.projectID, nil); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}
