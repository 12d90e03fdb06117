package services

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/sharebook/sharebook/internal/config"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/storage"
	"github.com/sharebook/sharebook/internal/storage/local"
)

var testBuckets = config.BucketsConfig{Covers: "project-covers", Assets: "ebook-assets", Exports: "ebook-exports"}

func newTestAssetService(t *testing.T, projects ProjectStore) (*AssetService, *local.LocalStorage) {
	t.Helper()
	store, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://books.test")
	if err != nil {
		t.Fatalf("local.New() error: %v", err)
	}
	return NewAssetService(store, testBuckets, projects), store
}

func ownedProject(visibility string) *models.Project {
	return &models.Project{ID: projectID, UserID: ownerID, Title: "Book", Visibility: visibility}
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestAssetService_Upload_NamesObjectAfterUser(t *testing.T) {
	svc, store := newTestAssetService(t, newFakeProjects())
	ctx := context.Background()

	asset, err := svc.Upload(ctx, ownerID, "ebook-assets", "/img/", "Diagram.PNG", strings.NewReader("png"), 3, "image/png")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	if path.Dir(asset.Path) != "img" {
		t.Errorf("folder = %q, want img", path.Dir(asset.Path))
	}
	if !strings.HasPrefix(path.Base(asset.Path), ownerID+"-") || !strings.HasSuffix(asset.Path, ".png") {
		t.Errorf("path = %s, want <owner>-<n>.png", asset.Path)
	}
	if want := "http://books.test/files/ebook-assets/" + asset.Path; asset.URL != want {
		t.Errorf("URL = %q, want %q", asset.URL, want)
	}

	ok, err := store.Exists(ctx, "ebook-assets/"+asset.Path)
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want stored object", ok, err)
	}
}

func TestAssetService_Upload_Validation(t *testing.T) {
	svc, _ := newTestAssetService(t, newFakeProjects())

	tests := []struct {
		name, user, bucket, folder, contentType string
	}{
		{"unknown bucket", ownerID, "elsewhere", "", "image/png"},
		{"traversal", ownerID, "ebook-assets", "../etc", "image/png"},
		{"cover not an image", ownerID, "project-covers", "", "application/pdf"},
		{"no user", "", "ebook-assets", "", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.user, tt.bucket, tt.folder, "a.png", strings.NewReader("x"), 1, tt.contentType)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Upload() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestObjectName_DefaultExtension(t *testing.T) {
	if name := objectName(ownerID, "README"); !strings.HasSuffix(name, ".bin") {
		t.Errorf("objectName() = %q, want .bin suffix", name)
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestAssetService_Delete(t *testing.T) {
	svc, store := newTestAssetService(t, newFakeProjects())
	ctx := context.Background()

	asset, err := svc.Upload(ctx, ownerID, "project-covers", "covers", "c.jpg", strings.NewReader("jpg"), 3, "image/jpeg")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	t.Run("other user denied", func(t *testing.T) {
		if err := svc.Delete(ctx, otherID, asset.URL); !errors.Is(err, ErrAccessDenied) {
			t.Errorf("Delete() error = %v, want ErrAccessDenied", err)
		}
	})

	t.Run("url without bucket", func(t *testing.T) {
		if err := svc.Delete(ctx, ownerID, "http://books.test/files/other/x.png"); !errors.Is(err, ErrValidation) {
			t.Errorf("Delete() error = %v, want ErrValidation", err)
		}
	})

	t.Run("owner deletes", func(t *testing.T) {
		if err := svc.Delete(ctx, ownerID, asset.URL); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		ok, err := store.Exists(ctx, "project-covers/"+asset.Path)
		if err != nil || ok {
			t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("already gone", func(t *testing.T) {
		if err := svc.Delete(ctx, ownerID, asset.URL); err != nil {
			t.Errorf("Delete() twice error = %v, want nil", err)
		}
	})
}

// ---------------------------------------------------------------------------
// List / SignedURL
// ---------------------------------------------------------------------------

func TestAssetService_ProjectAssets(t *testing.T) {
	svc, _ := newTestAssetService(t, newFakeProjects(ownedProject(models.VisibilityPrivate)))
	ctx := context.Background()

	if _, err := svc.UploadProjectAsset(ctx, otherID, projectID, "a.png", strings.NewReader("a"), 1, "image/png"); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("UploadProjectAsset(stranger) error = %v, want ErrAccessDenied", err)
	}

	first, err := svc.UploadProjectAsset(ctx, ownerID, projectID, "a.png", strings.NewReader("a"), 1, "image/png")
	if err != nil {
		t.Fatalf("UploadProjectAsset() error: %v", err)
	}
	if path.Dir(first.Path) != projectID {
		t.Errorf("folder = %q, want %q", path.Dir(first.Path), projectID)
	}

	objs, err := svc.ListProjectAssets(ctx, ownerID, projectID)
	if err != nil {
		t.Fatalf("ListProjectAssets() error: %v", err)
	}
	if len(objs) != 1 || objs[0].Path != "ebook-assets/"+first.Path {
		t.Errorf("objects = %+v, want only ebook-assets/%s", objs, first.Path)
	}

	if _, err := svc.ListProjectAssets(ctx, otherID, projectID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("ListProjectAssets(stranger) error = %v, want ErrAccessDenied", err)
	}
}

func TestAssetService_SignedURL(t *testing.T) {
	svc, _ := newTestAssetService(t, newFakeProjects())
	ctx := context.Background()

	asset, err := svc.Upload(ctx, ownerID, "ebook-exports", "", "book.pdf", strings.NewReader("%PDF"), 4, "application/pdf")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}

	u, err := svc.SignedURL(ctx, "ebook-exports", asset.Path, 0)
	if err != nil {
		t.Fatalf("SignedURL() error: %v", err)
	}
	if u != asset.URL {
		t.Errorf("SignedURL() = %q, want %q", u, asset.URL)
	}

	if _, err := svc.SignedURL(ctx, "ebook-exports", "missing.pdf", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("SignedURL(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.SignedURL(ctx, "ebook-exports", "../secret", time.Hour); !errors.Is(err, ErrValidation) {
		t.Errorf("SignedURL(traversal) error = %v, want ErrValidation", err)
	}
}

func TestStorageErr(t *testing.T) {
	if err := storageErr(storage.ErrNotFound); !errors.Is(err, ErrNotFound) {
		t.Errorf("storageErr(ErrNotFound) = %v, want ErrNotFound", err)
	}
	if err := storageErr(errors.New("boom")); !errors.Is(err, ErrUpstream) {
		t.Errorf("storageErr(boom) = %v, want ErrUpstream", err)
	}
}
