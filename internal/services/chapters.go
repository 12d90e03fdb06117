package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/markdown"
	"github.com/sharebook/sharebook/internal/telemetry"
)

// TOCEntry is one line of a project's table of contents
type TOCEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	OrderIndex int    `json:"order_index"`
}

// Navigation locates one chapter within its project's ordered chapter list.
// Index is -1 when the chapter is not in the list. Prev is nil for the first
// chapter and Next is nil for the last.
type Navigation struct {
	Index int        `json:"index"`
	Prev  *TOCEntry  `json:"prev,omitempty"`
	Next  *TOCEntry  `json:"next,omitempty"`
	TOC   []TOCEntry `json:"toc"`
}

// SortChapters returns a copy of chapters ordered by ascending OrderIndex.
// Chapters with equal OrderIndex keep their input order.
func SortChapters(chapters []*models.Chapter) []*models.Chapter {
	out := make([]*models.Chapter, len(chapters))
	copy(out, chapters)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

// BuildTOC sorts chapters and returns one entry per chapter.
func BuildTOC(chapters []*models.Chapter) []TOCEntry {
	sorted := SortChapters(chapters)
	toc := make([]TOCEntry, len(sorted))
	for i, c := range sorted {
		toc[i] = TOCEntry{ID: c.ID, Title: c.Title, OrderIndex: c.OrderIndex}
	}
	return toc
}

// Navigate builds the table of contents and finds chapterID in it.
func Navigate(chapters []*models.Chapter, chapterID string) Navigation {
	toc := BuildTOC(chapters)
	nav := Navigation{Index: -1, TOC: toc}
	for i := range toc {
		if toc[i].ID != chapterID {
			continue
		}
		nav.Index = i
		if i > 0 {
			prev := toc[i-1]
			nav.Prev = &prev
		}
		if i < len(toc)-1 {
			next := toc[i+1]
			nav.Next = &next
		}
		break
	}
	return nav
}

var (
	youtubeRe = regexp.MustCompile(`(?i)(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)
	vimeoRe   = regexp.MustCompile(`(?i)vimeo\.com/(?:channels/(?:\w+/)?|groups/[^/]*/videos/|album/\d+/video/|)(\d+)(?:$|/|\?)`)
)

// EmbedURL converts a YouTube or Vimeo link to its player URL. Other URLs are
// returned unchanged with ok=false.
func EmbedURL(raw string) (embed string, ok bool) {
	raw = strings.TrimSpace(raw)
	if m := youtubeRe.FindStringSubmatch(raw); m != nil {
		return "https://www.youtube.com/embed/" + m[1], true
	}
	if m := vimeoRe.FindStringSubmatch(raw); m != nil {
		return "https://player.vimeo.com/video/" + m[1], true
	}
	return raw, false
}

// ChapterInput carries the editable chapter fields
type ChapterInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	VideoURL *string `json:"video_url"`
}

func (in *ChapterInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: chapter title is required", ErrValidation)
	}
	if in.VideoURL != nil {
		v := strings.TrimSpace(*in.VideoURL)
		if v == "" {
			in.VideoURL = nil
		} else {
			in.VideoURL = &v
		}
	}
	return nil
}

// ChapterView is a rendered chapter with its navigation context
type ChapterView struct {
	Project    *models.Project `json:"project"`
	Chapter    *models.Chapter `json:"chapter"`
	HTML       string          `json:"html"`
	EmbedURL   string          `json:"embed_url,omitempty"`
	Navigation Navigation      `json:"navigation"`
}

// ChapterService implements chapter ordering, navigation and rendering
type ChapterService struct {
	projects ProjectStore
	chapters ChapterStore
}

// NewChapterService creates a ChapterService
func NewChapterService(projects ProjectStore, chapters ChapterStore) *ChapterService {
	return &ChapterService{projects: projects, chapters: chapters}
}

// loadProject fetches a project the viewer may read.
func loadProject(ctx context.Context, projects ProjectStore, viewerID, projectID string) (*models.Project, error) {
	if err := parseID("project", projectID); err != nil {
		return nil, err
	}
	p, err := projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	if !p.CanView(viewerID) {
		return nil, fmt.Errorf("%w: project %s is private", ErrAccessDenied, projectID)
	}
	return p, nil
}

// loadOwnedProject fetches a project and checks that userID owns it.
func loadOwnedProject(ctx context.Context, projects ProjectStore, userID, projectID string) (*models.Project, error) {
	p, err := loadProject(ctx, projects, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !p.IsOwner(userID) {
		return nil, fmt.Errorf("%w: only the owner can modify project %s", ErrAccessDenied, projectID)
	}
	return p, nil
}

// List returns the project's chapters in reading order.
func (s *ChapterService) List(ctx context.Context, viewerID, projectID string) ([]*models.Chapter, error) {
	if _, err := loadProject(ctx, s.projects, viewerID, projectID); err != nil {
		return nil, err
	}
	chapters, err := s.chapters.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return SortChapters(chapters), nil
}

// TOC returns the project's table of contents.
func (s *ChapterService) TOC(ctx context.Context, viewerID, projectID string) ([]TOCEntry, error) {
	chapters, err := s.List(ctx, viewerID, projectID)
	if err != nil {
		return nil, err
	}
	return BuildTOC(chapters), nil
}

// Create appends a chapter with OrderIndex equal to the current chapter count.
// The count and the insert are separate statements, so two concurrent creates
// can receive the same OrderIndex.
func (s *ChapterService) Create(ctx context.Context, userID, projectID string, in ChapterInput) (*models.Chapter, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if _, err := loadOwnedProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}

	count, err := s.chapters.CountByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c := &models.Chapter{
		ProjectID:  projectID,
		Title:      in.Title,
		Content:    in.Content,
		VideoURL:   in.VideoURL,
		OrderIndex: count,
	}
	if err := s.chapters.Create(ctx, c); err != nil {
		return nil, err
	}
	s.touch(ctx, projectID)
	return c, nil
}

// Get returns one chapter of a readable project. The id "new" and malformed
// ids are rejected as validation errors.
func (s *ChapterService) Get(ctx context.Context, viewerID, projectID, chapterID string) (*models.Project, *models.Chapter, error) {
	if err := parseID("chapter", chapterID); err != nil {
		return nil, nil, err
	}
	p, err := loadProject(ctx, s.projects, viewerID, projectID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil || c.ProjectID != projectID {
		return nil, nil, fmt.Errorf("%w: chapter %s", ErrNotFound, chapterID)
	}
	return p, c, nil
}

// View renders a chapter and computes its navigation. safe selects the
// sanitizing renderer instead of the legacy pipeline.
func (s *ChapterService) View(ctx context.Context, viewerID, projectID, chapterID string, safe bool) (*ChapterView, error) {
	p, c, err := s.Get(ctx, viewerID, projectID, chapterID)
	if err != nil {
		return nil, err
	}
	siblings, err := s.chapters.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	nav := Navigate(siblings, chapterID)
	if nav.Index < 0 {
		return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, chapterID)
	}

	view := &ChapterView{Project: p, Chapter: c, Navigation: nav}
	if safe {
		html, err := markdown.RenderSafe(c.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to render chapter: %w", err)
		}
		view.HTML = html
		telemetry.ChapterRendersTotal.WithLabelValues("safe").Inc()
	} else {
		view.HTML = markdown.Render(c.Content)
		telemetry.ChapterRendersTotal.WithLabelValues("legacy").Inc()
	}
	if c.VideoURL != nil {
		if embed, ok := EmbedURL(*c.VideoURL); ok {
			view.EmbedURL = embed
		}
	}
	return view, nil
}

// Update replaces a chapter's title, content and video URL.
func (s *ChapterService) Update(ctx context.Context, userID, projectID, chapterID string, in ChapterInput) (*models.Chapter, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	c, err := s.ownedChapter(ctx, userID, projectID, chapterID)
	if err != nil {
		return nil, err
	}
	c.Title = in.Title
	c.Content = in.Content
	c.VideoURL = in.VideoURL
	if err := s.chapters.Update(ctx, c); err != nil {
		return nil, err
	}
	s.touch(ctx, projectID)
	return c, nil
}

// Delete removes a chapter. Sibling order indexes are not compacted.
func (s *ChapterService) Delete(ctx context.Context, userID, projectID, chapterID string) error {
	if _, err := s.ownedChapter(ctx, userID, projectID, chapterID); err != nil {
		return err
	}
	if err := s.chapters.Delete(ctx, chapterID); err != nil {
		return err
	}
	s.touch(ctx, projectID)
	return nil
}

// Reorder writes OrderIndex = position for each id, one update per chapter.
// A failure part-way leaves earlier updates applied.
func (s *ChapterService) Reorder(ctx context.Context, userID, projectID string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: chapter ids are required", ErrValidation)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := parseID("chapter", id); err != nil {
			return err
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate chapter id %s", ErrValidation, id)
		}
		seen[id] = true
	}
	if _, err := loadOwnedProject(ctx, s.projects, userID, projectID); err != nil {
		return err
	}
	for i, id := range ids {
		if err := s.chapters.SetOrderIndex(ctx, projectID, id, i); err != nil {
			return err
		}
	}
	s.touch(ctx, projectID)
	return nil
}

func (s *ChapterService) ownedChapter(ctx context.Context, userID, projectID, chapterID string) (*models.Chapter, error) {
	if err := parseID("chapter", chapterID); err != nil {
		return nil, err
	}
	if _, err := loadOwnedProject(ctx, s.projects, userID, projectID); err != nil {
		return nil, err
	}
	c, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if c == nil || c.ProjectID != projectID {
		return nil, fmt.Errorf("%w: chapter %s", ErrNotFound, chapterID)
	}
	return c, nil
}

// touch bumps the project's updated_at so explore ordering reflects chapter edits.
func (s *ChapterService) touch(ctx context.Context, projectID string) {
	if err := s.projects.Touch(ctx, projectID); err != nil {
		slog.Warn("failed to touch project", "project_id", projectID, "error", err)
	}
}
