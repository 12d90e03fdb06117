// Package local implements the local filesystem storage backend. It is intended for
// development and single-node deployments: objects live under storage.local.base_path
// and are served by the API under /files/. For multi-instance deployments use a
// cloud backend.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/storage"
	"github.com/sharebook/sharebook/pkg/checksum"
)

// FilesRoute is the URL prefix under which the router serves local objects.
const FilesRoute = "/files"

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.GetPublicURL())
	})
}

// LocalStorage implements the Storage interface for local filesystem storage
type LocalStorage struct {
	basePath string
	baseURL  string
}

// New creates a new local filesystem storage backend
func New(cfg *config.LocalStorageConfig, publicBaseURL string) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("local storage base_path is required")
	}
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	abs, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: abs,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// BasePath returns the directory the router should serve under FilesRoute.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// resolve maps an object path to a file under basePath, rejecting paths that
// would escape it.
func (s *LocalStorage) resolve(p string) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(p, "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid object path: %q", p)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// Upload stores a file in the local filesystem
func (s *LocalStorage) Upload(ctx context.Context, p string, reader io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	fullPath, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Hash while writing
	cr := checksum.NewReader(reader)
	if _, err := io.Copy(file, cr); err != nil {
		_ = os.Remove(fullPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &storage.UploadResult{
		Path:     p,
		Size:     cr.Size(),
		Checksum: cr.Sum(),
	}, nil
}

// Download retrieves a file from the local filesystem
func (s *LocalStorage) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes a file from the local filesystem
func (s *LocalStorage) Delete(ctx context.Context, p string) error {
	fullPath, err := s.resolve(p)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// Remove empty parent directories (best effort)
	dir := filepath.Dir(fullPath)
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}

	return nil
}

// GetURL returns the public URL. Local files are not signed, so ttl is ignored.
func (s *LocalStorage) GetURL(ctx context.Context, p string, ttl time.Duration) (string, error) {
	exists, err := s.Exists(ctx, p)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, p)
	}
	return s.PublicURL(p), nil
}

// PublicURL returns {public base URL}/files/{path}.
func (s *LocalStorage) PublicURL(p string) string {
	return s.baseURL + FilesRoute + "/" + strings.TrimPrefix(p, "/")
}

// Exists checks if a file exists at the specified path
func (s *LocalStorage) Exists(ctx context.Context, p string) (bool, error) {
	fullPath, err := s.resolve(p)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// GetMetadata retrieves file metadata. The checksum is computed by reading the file.
func (s *LocalStorage) GetMetadata(ctx context.Context, p string) (*storage.FileMetadata, error) {
	fullPath, err := s.resolve(p)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to get file metadata: %w", err)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer file.Close()

	sum, err := checksum.CalculateSHA256(file)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return &storage.FileMetadata{
		Path:         p,
		Size:         stat.Size(),
		Checksum:     sum,
		ContentType:  mime.TypeByExtension(filepath.Ext(fullPath)),
		LastModified: stat.ModTime(),
	}, nil
}

// List walks the directory for prefix and returns every regular file under it,
// sorted by path. A missing prefix directory yields an empty list.
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	root, err := s.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var objects []storage.ObjectInfo
	err = filepath.WalkDir(root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, full)
		if err != nil {
			return err
		}
		p := filepath.ToSlash(rel)
		objects = append(objects, storage.ObjectInfo{
			Path:         p,
			URL:          s.PublicURL(p),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}
