package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/db/repositories"
	"golang.org/x/sync/errgroup"
)

const (
	projectID = "11111111-1111-1111-1111-111111111111"
	ownerID   = "22222222-2222-2222-2222-222222222222"
	otherID   = "33333333-3333-3333-3333-333333333333"
	chapterA  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	chapterB  = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	chapterC  = "cccccccc-cccc-cccc-cccc-cccccccccccc"
)

var (
	projectCols = []string{"id", "user_id", "title", "description", "cover_image", "visibility", "created_at", "updated_at"}
	chapterCols = []string{"id", "project_id", "title", "content", "video_url", "order_index", "created_at", "updated_at"}
)

func projectRows(visibility string) *sqlmock.Rows {
	return sqlmock.NewRows(projectCols).
		AddRow(projectID, ownerID, "Book", nil, nil, visibility, time.Now(), time.Now())
}

func newChapterService(t *testing.T) (*ChapterService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewChapterService(repositories.NewProjectRepository(db), repositories.NewChapterRepository(db)), mock
}

func ch(id, title string, order int) *models.Chapter {
	return &models.Chapter{ID: id, Title: title, OrderIndex: order}
}

// ---------------------------------------------------------------------------
// SortChapters / BuildTOC
// ---------------------------------------------------------------------------

func TestBuildTOC_AscendingAndStable(t *testing.T) {
	chapters := []*models.Chapter{
		ch("c3", "Third", 2),
		ch("c1", "First", 0),
		ch("tie-a", "Tie A", 1),
		ch("tie-b", "Tie B", 1),
		ch("c4", "Fourth", 3),
	}

	toc := BuildTOC(chapters)
	if len(toc) != len(chapters) {
		t.Fatalf("len(toc) = %d, want %d", len(toc), len(chapters))
	}
	want := []string{"c1", "tie-a", "tie-b", "c3", "c4"}
	for i, id := range want {
		if toc[i].ID != id {
			t.Errorf("toc[%d] = %s, want %s", i, toc[i].ID, id)
		}
	}
	for i := 1; i < len(toc); i++ {
		if toc[i].OrderIndex < toc[i-1].OrderIndex {
			t.Errorf("toc not ascending at %d", i)
		}
	}
	if chapters[0].ID != "c3" {
		t.Error("SortChapters must not reorder its input")
	}
}

func TestSortChapters_Empty(t *testing.T) {
	if got := SortChapters(nil); len(got) != 0 {
		t.Errorf("SortChapters(nil) = %v", got)
	}
	if toc := BuildTOC(nil); toc == nil || len(toc) != 0 {
		t.Errorf("BuildTOC(nil) = %#v, want empty non-nil", toc)
	}
}

// ---------------------------------------------------------------------------
// Navigate
// ---------------------------------------------------------------------------

func TestNavigate(t *testing.T) {
	chapters := []*models.Chapter{ch("b", "B", 1), ch("a", "A", 0), ch("c", "C", 2)}

	tests := []struct {
		name      string
		id        string
		wantIndex int
		wantPrev  string
		wantNext  string
	}{
		{"first has no prev", "a", 0, "", "b"},
		{"interior has both", "b", 1, "a", "c"},
		{"last has no next", "c", 2, "b", ""},
		{"unknown id", "zzz", -1, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := Navigate(chapters, tt.id)
			if nav.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", nav.Index, tt.wantIndex)
			}
			if got := entryID(nav.Prev); got != tt.wantPrev {
				t.Errorf("Prev = %q, want %q", got, tt.wantPrev)
			}
			if got := entryID(nav.Next); got != tt.wantNext {
				t.Errorf("Next = %q, want %q", got, tt.wantNext)
			}
			if len(nav.TOC) != 3 {
				t.Errorf("len(TOC) = %d", len(nav.TOC))
			}
		})
	}
}

func TestNavigate_SingleChapter(t *testing.T) {
	nav := Navigate([]*models.Chapter{ch("only", "Only", 0)}, "only")
	if nav.Index != 0 || nav.Prev != nil || nav.Next != nil {
		t.Errorf("nav = %+v", nav)
	}
}

func entryID(e *TOCEntry) string {
	if e == nil {
		return ""
	}
	return e.ID
}

// ---------------------------------------------------------------------------
// EmbedURL
// ---------------------------------------------------------------------------

func TestEmbedURL(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "https://www.youtube.com/embed/dQw4w9WgXcQ", true},
		{"https://vimeo.com/76979871", "https://player.vimeo.com/video/76979871", true},
		{"https://vimeo.com/channels/staffpicks/76979871", "https://player.vimeo.com/video/76979871", true},
		{"https://example.com/movie.mp4", "https://example.com/movie.mp4", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := EmbedURL(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("EmbedURL(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestChapterCreate_AssignsSiblingCount(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WithArgs(projectID).WillReturnRows(projectRows("private"))
	mock.ExpectQuery("SELECT COUNT").WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec("INSERT INTO chapters").
		WithArgs(sqlmock.AnyArg(), projectID, "Four", "body", nil, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE projects SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := svc.Create(context.Background(), ownerID, projectID, ChapterInput{Title: " Four ", Content: "body"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if c.OrderIndex != 3 || c.Title != "Four" {
		t.Errorf("chapter = %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestChapterCreate_NonOwnerDenied(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("public"))

	_, err := svc.Create(context.Background(), otherID, projectID, ChapterInput{Title: "x"})
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("error = %v, want ErrAccessDenied", err)
	}
}

func TestChapterCreate_TitleRequired(t *testing.T) {
	svc, _ := newChapterService(t)
	_, err := svc.Create(context.Background(), ownerID, projectID, ChapterInput{Title: "  "})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// Two creates that both read the count before either inserts get the same
// order index. There is no transaction or lock around count+insert.
func TestChapterCreate_ConcurrentCreatesShareOrderIndex(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.MatchExpectationsInOrder(false)

	for i := 0; i < 2; i++ {
		mock.ExpectQuery("FROM projects WHERE id").WithArgs(projectID).WillReturnRows(projectRows("private"))
		mock.ExpectQuery("SELECT COUNT").WithArgs(projectID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec("INSERT INTO chapters").
			WithArgs(sqlmock.AnyArg(), projectID, sqlmock.AnyArg(), "", nil, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE projects SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	}

	results := make([]*models.Chapter, 2)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			c, err := svc.Create(context.Background(), ownerID, projectID, ChapterInput{Title: "Concurrent"})
			results[i] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if results[0].OrderIndex != 0 || results[1].OrderIndex != 0 {
		t.Errorf("order indexes = %d, %d; want both 0", results[0].OrderIndex, results[1].OrderIndex)
	}
	if results[0].ID == results[1].ID {
		t.Error("chapters must still get distinct ids")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// ---------------------------------------------------------------------------
// Get / View
// ---------------------------------------------------------------------------

func TestChapterGet_RejectsNewAndMalformed(t *testing.T) {
	svc, mock := newChapterService(t)
	for _, id := range []string{"new", "", "not-a-uuid"} {
		_, _, err := svc.Get(context.Background(), ownerID, projectID, id)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Get(%q) error = %v, want ErrValidation", id, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no queries expected: %v", err)
	}
}

func TestChapterGet_PrivateProjectDenied(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("private"))

	_, _, err := svc.Get(context.Background(), "", projectID, chapterA)
	if !errors.Is(err, ErrAccessDenied) {
		t.Errorf("error = %v, want ErrAccessDenied", err)
	}
}

func TestChapterGet_ChapterFromOtherProject(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("public"))
	mock.ExpectQuery("FROM chapters WHERE id").WithArgs(chapterA).
		WillReturnRows(sqlmock.NewRows(chapterCols).
			AddRow(chapterA, "99999999-9999-9999-9999-999999999999", "X", "", nil, 0, time.Now(), time.Now()))

	_, _, err := svc.Get(context.Background(), "", projectID, chapterA)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestChapterView_RendersAndNavigates(t *testing.T) {
	for _, safe := range []bool{false, true} {
		name := "legacy"
		if safe {
			name = "safe"
		}
		t.Run(name, func(t *testing.T) {
			svc, mock := newChapterService(t)
			now := time.Now()
			mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("public"))
			mock.ExpectQuery("FROM chapters WHERE id").WithArgs(chapterB).
				WillReturnRows(sqlmock.NewRows(chapterCols).
					AddRow(chapterB, projectID, "Two", "**hi** ![i](javascript:x)", "https://youtu.be/dQw4w9WgXcQ", 1, now, now))
			mock.ExpectQuery("FROM chapters.*WHERE project_id").WithArgs(projectID).
				WillReturnRows(sqlmock.NewRows(chapterCols).
					AddRow(chapterA, projectID, "One", "", nil, 0, now, now).
					AddRow(chapterB, projectID, "Two", "", nil, 1, now, now).
					AddRow(chapterC, projectID, "Three", "", nil, 2, now, now))

			view, err := svc.View(context.Background(), "", projectID, chapterB, safe)
			if err != nil {
				t.Fatalf("View() error: %v", err)
			}
			if view.Navigation.Index != 1 || entryID(view.Navigation.Prev) != chapterA || entryID(view.Navigation.Next) != chapterC {
				t.Errorf("navigation = %+v", view.Navigation)
			}
			if !strings.Contains(view.HTML, "<strong>hi</strong>") {
				t.Errorf("HTML = %q", view.HTML)
			}
			if safe == strings.Contains(view.HTML, "javascript:") {
				t.Errorf("safe=%v HTML = %q", safe, view.HTML)
			}
			if view.EmbedURL != "https://www.youtube.com/embed/dQw4w9WgXcQ" {
				t.Errorf("EmbedURL = %q", view.EmbedURL)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Reorder
// ---------------------------------------------------------------------------

func TestChapterReorder_OneUpdatePerID(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("private"))
	for i, id := range []string{chapterC, chapterA, chapterB} {
		mock.ExpectExec("UPDATE chapters SET order_index").
			WithArgs(id, projectID, i, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("UPDATE projects SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Reorder(context.Background(), ownerID, projectID, []string{chapterC, chapterA, chapterB}); err != nil {
		t.Fatalf("Reorder() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestChapterReorder_PartialFailureKeepsEarlierWrites(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("private"))
	mock.ExpectExec("UPDATE chapters SET order_index").WithArgs(chapterB, projectID, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE chapters SET order_index").WithArgs(chapterA, projectID, 1, sqlmock.AnyArg()).
		WillReturnError(errFake)

	err := svc.Reorder(context.Background(), ownerID, projectID, []string{chapterB, chapterA})
	if !errors.Is(err, errFake) {
		t.Errorf("error = %v, want errFake", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestChapterReorder_Validation(t *testing.T) {
	svc, _ := newChapterService(t)
	for name, ids := range map[string][]string{
		"empty":     nil,
		"malformed": {"nope"},
		"duplicate": {chapterA, chapterA},
	} {
		t.Run(name, func(t *testing.T) {
			if err := svc.Reorder(context.Background(), ownerID, projectID, ids); !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestChapterDelete(t *testing.T) {
	svc, mock := newChapterService(t)
	mock.ExpectQuery("FROM projects WHERE id").WillReturnRows(projectRows("private"))
	mock.ExpectQuery("FROM chapters WHERE id").WithArgs(chapterA).
		WillReturnRows(sqlmock.NewRows(chapterCols).AddRow(chapterA, projectID, "One", "", nil, 0, time.Now(), time.Now()))
	mock.ExpectExec("DELETE FROM chapters").WithArgs(chapterA).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE projects SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Delete(context.Background(), ownerID, projectID, chapterA); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
}
