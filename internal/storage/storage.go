// Package storage defines the Storage interface and common types for the object
// storage backends that hold project covers, chapter assets and exported PDFs.
//
// Backends register themselves with the factory from an init() function in their
// own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server imports each backend with a blank import to trigger init().
//
// Every backend stores the logical buckets (covers, assets, exports) as top-level
// prefixes inside one physical bucket or container, so an object path always
// starts with its logical bucket name.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned (wrapped) when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Storage defines the interface for all storage backends.
type Storage interface {
	// Upload stores a file and returns the storage result with path and checksum
	Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Download retrieves a file and returns a reader
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file from storage. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// GetURL returns a time-limited download URL. Cloud backends sign it; the
	// local backend returns the public URL.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// PublicURL returns the stable URL stored in the database for path.
	PublicURL(path string) string

	// Exists checks if a file exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves file metadata without downloading the entire file
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)

	// List returns the objects whose path starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// UploadResult contains information about an uploaded file
type UploadResult struct {
	// Path is the storage path where the file was stored
	Path string

	// Size is the file size in bytes
	Size int64

	// Checksum is the SHA256 hash of the file contents
	Checksum string
}

// FileMetadata contains metadata about a stored file
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string
	ContentType  string
	LastModified time.Time
}

// ObjectInfo is one entry returned by List.
type ObjectInfo struct {
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
