package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sharebook/sharebook/internal/db/models"
)

func newTestProjectService(t *testing.T, projects ...*models.Project) (*ProjectService, *fakeProjects) {
	t.Helper()
	store := newFakeProjects(projects...)
	assets, _ := newTestAssetService(t, store)
	return NewProjectService(store, assets), store
}

func coverCount(t *testing.T, svc *ProjectService) int {
	t.Helper()
	objs, err := svc.assets.List(context.Background(), "project-covers", "covers")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	return len(objs)
}

func TestProjectService_Create(t *testing.T) {
	svc, _ := newTestProjectService(t)
	ctx := context.Background()

	desc := "  A <script>alert(1)</script>story  "
	p, err := svc.Create(ctx, ownerID, ProjectInput{Title: "  Dune  ", Description: &desc})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if p.Title != "Dune" {
		t.Errorf("Title = %q, want Dune", p.Title)
	}
	if p.Visibility != models.VisibilityPrivate {
		t.Errorf("Visibility = %q, want private", p.Visibility)
	}
	if p.Description == nil {
		t.Fatal("Description = nil")
	}
	if strings.Contains(*p.Description, "<script>") {
		t.Errorf("Description = %q, script not stripped", *p.Description)
	}

	rejected := []struct {
		name   string
		userID string
		in     ProjectInput
		want   error
	}{
		{"blank title", ownerID, ProjectInput{Title: "   "}, ErrValidation},
		{"long title", ownerID, ProjectInput{Title: strings.Repeat("x", MaxTitleLength+1)}, ErrValidation},
		{"bad visibility", ownerID, ProjectInput{Title: "t", Visibility: "friends"}, ErrValidation},
		{"anonymous", "", ProjectInput{Title: "t"}, ErrAccessDenied},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.userID, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProjectService_Get(t *testing.T) {
	svc, _ := newTestProjectService(t, ownedProject(models.VisibilityPrivate))
	ctx := context.Background()

	if _, err := svc.Get(ctx, ownerID, projectID); err != nil {
		t.Errorf("Get() owner error: %v", err)
	}

	tests := []struct {
		name              string
		userID, projectID string
		want              error
	}{
		{"other user", otherID, projectID, ErrAccessDenied},
		{"anonymous", "", projectID, ErrAccessDenied},
		{"bad id", ownerID, "not-a-uuid", ErrValidation},
		{"missing", ownerID, chapterA, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Get(ctx, tt.userID, tt.projectID); !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProjectService_UpdateAndVisibility(t *testing.T) {
	svc, store := newTestProjectService(t, ownedProject(models.VisibilityPrivate))
	ctx := context.Background()

	if _, err := svc.Update(ctx, otherID, projectID, ProjectInput{Title: "Hijack"}); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Update() by other user error = %v, want ErrAccessDenied", err)
	}

	p, err := svc.Update(ctx, ownerID, projectID, ProjectInput{Title: "Renamed"})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if p.Title != "Renamed" {
		t.Errorf("Title = %q, want Renamed", p.Title)
	}
	if p.Visibility != models.VisibilityPrivate {
		t.Errorf("Visibility = %q, omitted visibility must be kept", p.Visibility)
	}

	p, err = svc.SetVisibility(ctx, ownerID, projectID, models.VisibilityPublic)
	if err != nil {
		t.Fatalf("SetVisibility() error: %v", err)
	}
	if !p.IsPublic() {
		t.Error("IsPublic() = false after SetVisibility(public)")
	}
	if got := store.rows[projectID].Visibility; got != models.VisibilityPublic {
		t.Errorf("stored visibility = %q, want public", got)
	}

	if _, err := svc.SetVisibility(ctx, ownerID, projectID, "unlisted"); !errors.Is(err, ErrValidation) {
		t.Errorf("SetVisibility(unlisted) error = %v, want ErrValidation", err)
	}
}

func TestProjectService_UploadCover_ReplacesPrevious(t *testing.T) {
	svc, store := newTestProjectService(t, ownedProject(models.VisibilityPublic))
	ctx := context.Background()

	first, err := svc.UploadCover(ctx, ownerID, projectID, "a.png", strings.NewReader("a"), 1, "image/png")
	if err != nil {
		t.Fatalf("first UploadCover() error: %v", err)
	}
	firstURL := *first.CoverImage

	second, err := svc.UploadCover(ctx, ownerID, projectID, "b.png", strings.NewReader("b"), 1, "image/png")
	if err != nil {
		t.Fatalf("second UploadCover() error: %v", err)
	}
	if *second.CoverImage == firstURL {
		t.Errorf("cover URL unchanged: %q", firstURL)
	}
	if got := *store.rows[projectID].CoverImage; got != *second.CoverImage {
		t.Errorf("stored cover = %q, want %q", got, *second.CoverImage)
	}
	if !strings.Contains(*second.CoverImage, "/project-covers/covers/"+ownerID+"-") {
		t.Errorf("cover URL = %q, want the owner-prefixed cover path", *second.CoverImage)
	}
	if n := coverCount(t, svc); n != 1 {
		t.Errorf("stored covers = %d, previous cover must be deleted", n)
	}
}

func TestProjectService_UploadCover_StoreFailureRemovesObject(t *testing.T) {
	svc, store := newTestProjectService(t, ownedProject(models.VisibilityPublic))
	store.coverErr = errFake

	_, err := svc.UploadCover(context.Background(), ownerID, projectID, "a.png", strings.NewReader("a"), 1, "image/png")
	if !errors.Is(err, errFake) {
		t.Errorf("UploadCover() error = %v, want errFake", err)
	}
	if n := coverCount(t, svc); n != 0 {
		t.Errorf("stored covers = %d, want 0", n)
	}
}

func TestProjectService_Delete(t *testing.T) {
	svc, store := newTestProjectService(t, ownedProject(models.VisibilityPublic))
	ctx := context.Background()

	if _, err := svc.UploadCover(ctx, ownerID, projectID, "a.png", strings.NewReader("a"), 1, "image/png"); err != nil {
		t.Fatalf("UploadCover() error: %v", err)
	}

	if err := svc.Delete(ctx, otherID, projectID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Delete() by other user error = %v, want ErrAccessDenied", err)
	}
	if err := svc.Delete(ctx, ownerID, projectID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, ok := store.rows[projectID]; ok {
		t.Error("project row still present after Delete")
	}
	if n := coverCount(t, svc); n != 0 {
		t.Errorf("stored covers = %d, want 0", n)
	}
}

func TestProjectService_ExplorePublic_Paging(t *testing.T) {
	var projects []*models.Project
	for i := 0; i < 5; i++ {
		projects = append(projects, &models.Project{
			ID: strings.Repeat(string(rune('a'+i)), 8) + "-0000-0000-0000-000000000000", UserID: ownerID,
			Title: "p", Visibility: models.VisibilityPublic,
		})
	}
	svc, store := newTestProjectService(t, projects...)

	tests := []struct {
		name                      string
		page, limit               int
		wantPage, wantLimit, want int
		wantOffset, wantPages     int
	}{
		{"defaults", 0, 0, 1, DefaultExploreLimit, 5, 0, 1},
		{"second page", 2, 2, 2, 2, 2, 2, 3},
		{"capped", 1, 500, 1, MaxExploreLimit, 5, 0, 1},
		{"past the end", 9, 2, 9, 2, 0, 16, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ExplorePublic(context.Background(), "  dune ", tt.page, tt.limit)
			if err != nil {
				t.Fatalf("ExplorePublic() error: %v", err)
			}
			if page.Page != tt.wantPage || page.Limit != tt.wantLimit {
				t.Errorf("page/limit = %d/%d, want %d/%d", page.Page, page.Limit, tt.wantPage, tt.wantLimit)
			}
			if page.Projects == nil {
				t.Error("Projects = nil, want a non-nil slice")
			}
			if len(page.Projects) != tt.want {
				t.Errorf("len(Projects) = %d, want %d", len(page.Projects), tt.want)
			}
			if page.Total != 5 || page.TotalPages != tt.wantPages {
				t.Errorf("total/pages = %d/%d, want 5/%d", page.Total, page.TotalPages, tt.wantPages)
			}
			if store.searchArg[0] != "dune" {
				t.Errorf("search = %v, want trimmed dune", store.searchArg[0])
			}
			if store.searchArg[2] != tt.wantOffset {
				t.Errorf("offset = %v, want %d", store.searchArg[2], tt.wantOffset)
			}
		})
	}
}

func TestProjectService_ListMine_NeverNil(t *testing.T) {
	svc, _ := newTestProjectService(t)
	projects, err := svc.ListMine(context.Background(), otherID)
	if err != nil {
		t.Fatalf("ListMine() error: %v", err)
	}
	if projects == nil || len(projects) != 0 {
		t.Errorf("ListMine() = %v, want an empty non-nil slice", projects)
	}
}
