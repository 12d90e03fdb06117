package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sharebook/sharebook/internal/db/models"
	"github.com/sharebook/sharebook/internal/export"
	"github.com/sharebook/sharebook/internal/markdown"
	"github.com/sharebook/sharebook/internal/telemetry"
)

// CoverSource loads a cover image by URL.
type CoverSource interface {
	Fetch(ctx context.Context, url string) (*export.Cover, error)
}

// ExportResult is a rendered project. URL is set when the PDF was uploaded.
type ExportResult struct {
	FileName string `json:"file_name"`
	URL      string `json:"url,omitempty"`
	Size     int    `json:"size"`
	PDF      []byte `json:"-"`
}

// ExportService renders projects to PDF.
type ExportService struct {
	projects ProjectStore
	chapters ChapterStore
	assets   *AssetService
	covers   CoverSource
	opts     export.Options
}

// NewExportService creates a new export service. assets may be nil when
// uploads are not needed.
func NewExportService(projects ProjectStore, chapters ChapterStore, assets *AssetService, covers CoverSource, opts export.Options) *ExportService {
	return &ExportService{projects: projects, chapters: chapters, assets: assets, covers: covers, opts: opts}
}

// Export renders the project viewerID may read. With upload set, the PDF is
// stored in the exports bucket under the project's folder and its URL returned;
// uploading requires ownership.
func (s *ExportService) Export(ctx context.Context, viewerID, projectID string, upload bool) (*ExportResult, error) {
	res, err := s.export(ctx, viewerID, projectID, upload)
	telemetry.ExportsTotal.WithLabelValues(telemetry.StatusLabel(err)).Inc()
	return res, err
}

func (s *ExportService) export(ctx context.Context, viewerID, projectID string, upload bool) (*ExportResult, error) {
	var (
		p   *models.Project
		err error
	)
	if upload {
		p, err = loadOwnedProject(ctx, s.projects, viewerID, projectID)
	} else {
		p, err = loadProject(ctx, s.projects, viewerID, projectID)
	}
	if err != nil {
		return nil, err
	}

	doc := &export.Document{Title: p.Title, GeneratedAt: time.Now()}
	if p.Description != nil {
		doc.Description = *p.Description
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		chapters, err := s.chapters.ListByProject(gctx, p.ID)
		if err != nil {
			return err
		}
		for _, c := range SortChapters(chapters) {
			doc.Chapters = append(doc.Chapters, export.Chapter{Title: c.Title, Body: markdown.PlainText(c.Content)})
		}
		return nil
	})
	if p.CoverImage != nil && *p.CoverImage != "" && s.covers != nil {
		coverURL := *p.CoverImage
		g.Go(func() error {
			cover, err := s.covers.Fetch(gctx, coverURL)
			if err != nil {
				slog.Warn("export continues without cover", "project_id", p.ID, "error", err)
				return nil
			}
			doc.Cover = cover
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pdf, err := export.RenderBytes(doc, s.opts)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{FileName: export.FileName(p.Title), Size: len(pdf), PDF: pdf}
	if !upload {
		return res, nil
	}

	if s.assets == nil {
		return nil, fmt.Errorf("%w: export storage is not configured", ErrConfiguration)
	}
	asset, err := s.assets.Upload(ctx, viewerID, s.assets.Buckets().Exports, p.ID, res.FileName,
		bytes.NewReader(pdf), int64(len(pdf)), "application/pdf")
	if err != nil {
		return nil, err
	}
	res.URL = asset.URL
	return res, nil
}
