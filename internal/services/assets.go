package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/storage"
)

// Signed URL lifetime bounds.
const (
	DefaultSignedURLTTL = 60 * time.Second
	MaxSignedURLTTL     = 7 * 24 * time.Hour
)

// UploadedAsset is returned by Upload. Path is relative to the bucket.
type UploadedAsset struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// AssetService stores covers, chapter assets and exports in the logical buckets.
type AssetService struct {
	store    storage.Storage
	buckets  config.BucketsConfig
	projects ProjectStore
}

// NewAssetService creates a new asset service
func NewAssetService(store storage.Storage, buckets config.BucketsConfig, projects ProjectStore) *AssetService {
	return &AssetService{store: store, buckets: buckets, projects: projects}
}

// Buckets returns the configured logical bucket names.
func (s *AssetService) Buckets() config.BucketsConfig {
	return s.buckets
}

func (s *AssetService) knownBucket(bucket string) error {
	for _, b := range s.buckets.Names() {
		if b != "" && b == bucket {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown bucket %q", ErrValidation, bucket)
}

// cleanFolder rejects traversal and returns the folder without surrounding slashes.
func cleanFolder(folder string) (string, error) {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return "", nil
	}
	for _, seg := range strings.Split(folder, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: invalid folder %q", ErrValidation, folder)
		}
	}
	return folder, nil
}

// objectName builds "{userID}-{uuid}.{ext}" from the uploaded file name.
func objectName(userID, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s-%s.%s", userID, uuid.New().String(), ext)
}

// Upload stores reader as [folder/]{userID}-{uuid}.{ext} in bucket and returns its
// public URL. The covers bucket only accepts images.
func (s *AssetService) Upload(ctx context.Context, userID, bucket, folder, filename string, reader io.Reader, size int64, contentType string) (*UploadedAsset, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if err := s.knownBucket(bucket); err != nil {
		return nil, err
	}
	folder, err := cleanFolder(folder)
	if err != nil {
		return nil, err
	}
	if bucket == s.buckets.Covers && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: cover must be an image, got %q", ErrValidation, contentType)
	}

	rel := path.Join(folder, objectName(userID, filename))
	full := storage.ObjectPath(bucket, "", rel)
	if _, err := s.store.Upload(ctx, full, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return &UploadedAsset{URL: s.store.PublicURL(full), Path: rel}, nil
}

// Delete removes the object behind a public URL. The bucket is located among the
// URL path segments and the remainder is the object path. Only the uploader,
// whose id prefixes every object name, may delete it.
func (s *AssetService) Delete(ctx context.Context, userID, rawURL string) error {
	bucket, rest, ok := storage.SplitPublicURL(rawURL, s.buckets.Names())
	if !ok {
		return fmt.Errorf("%w: no known bucket in url %q", ErrValidation, rawURL)
	}
	if !strings.HasPrefix(path.Base(rest), userID+"-") {
		return fmt.Errorf("%w: object %s belongs to another user", ErrAccessDenied, rest)
	}
	if err := s.store.Delete(ctx, storage.ObjectPath(bucket, "", rest)); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil
}

// deleteQuietly removes an object by URL and only logs failures.
func (s *AssetService) deleteQuietly(ctx context.Context, userID, rawURL string) {
	if rawURL == "" {
		return
	}
	if err := s.Delete(ctx, userID, rawURL); err != nil {
		slog.Warn("failed to delete stored object", "url", rawURL, "error", err)
	}
}

// List returns the objects in bucket/folder, newest first.
func (s *AssetService) List(ctx context.Context, bucket, folder string) ([]storage.ObjectInfo, error) {
	if err := s.knownBucket(bucket); err != nil {
		return nil, err
	}
	folder, err := cleanFolder(folder)
	if err != nil {
		return nil, err
	}

	objs, err := s.store.List(ctx, storage.ObjectPath(bucket, "", folder))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	sort.SliceStable(objs, func(i, j int) bool { return objs[i].LastModified.After(objs[j].LastModified) })
	return objs, nil
}

// SignedURL returns a temporary download URL for bucket/path. ttl defaults to
// DefaultSignedURLTTL and is capped at MaxSignedURLTTL.
func (s *AssetService) SignedURL(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	if err := s.knownBucket(bucket); err != nil {
		return "", err
	}
	clean, err := cleanFolder(objectPath)
	if err != nil || clean == "" {
		return "", fmt.Errorf("%w: invalid object path %q", ErrValidation, objectPath)
	}
	switch {
	case ttl <= 0:
		ttl = DefaultSignedURLTTL
	case ttl > MaxSignedURLTTL:
		ttl = MaxSignedURLTTL
	}

	u, err := s.store.GetURL(ctx, storage.ObjectPath(bucket, "", clean), ttl)
	if err != nil {
		return "", storageErr(err)
	}
	return u, nil
}

// UploadProjectAsset stores an asset in the assets bucket under the project's folder.
func (s *AssetService) UploadProjectAsset(ctx context.Context, userID, projectID, filename string, reader io.Reader, size int64, contentType string) (*UploadedAsset, error) {
	if _, err := loadOwnedProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	return s.Upload(ctx, userID, s.buckets.Assets, projectID, filename, reader, size, contentType)
}

// ListProjectAssets lists the project's folder in the assets bucket.
func (s *AssetService) ListProjectAssets(ctx context.Context, userID, projectID string) ([]storage.ObjectInfo, error) {
	if _, err := loadOwnedProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	return s.List(ctx, s.buckets.Assets, projectID)
}

// Ping checks that the backend answers. A missing probe object is success.
func (s *AssetService) Ping(ctx context.Context) error {
	if _, err := s.store.Exists(ctx, storage.ObjectPath(s.buckets.Covers, "", ".probe")); err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return nil
}

func storageErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
