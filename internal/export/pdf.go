// Package export renders ebook projects to PDF.
//
// The layout is an optional cover page, a title page with the description and
// generation date, then one page (or more) per chapter with a "Page N" footer.
// Core Helvetica fonts are used, so text is translated from UTF-8 to cp1252.
package export

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Layout constants, in millimetres and points.
const (
	DefaultMargin = 20.0

	titleFontSize   = 24
	chapterFontSize = 18
	bodyFontSize    = 12
	footerFontSize  = 10

	bodyLineHeight = bodyFontSize * 0.5
	fontFamily     = "Helvetica"
)

// Chapter is one chapter as it appears in the PDF. Body is plain text.
type Chapter struct {
	Title string
	Body  string
}

// Cover is a decoded cover image. Type is an fpdf image type: JPG, PNG or GIF.
type Cover struct {
	Data []byte
	Type string
}

// Document is everything needed to lay out a project.
type Document struct {
	Title       string
	Description string
	Cover       *Cover
	Chapters    []Chapter
	GeneratedAt time.Time
}

// Options control page geometry.
type Options struct {
	// PageSize is an fpdf size name such as "A4" or "Letter".
	PageSize string
	Margin   float64
	// Uncompressed disables stream compression; tests use it to inspect text.
	Uncompressed bool
}

// Render writes the PDF for doc to w.
func Render(w io.Writer, doc *Document, opts Options) error {
	pdf, err := build(doc, opts)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// RenderBytes renders doc into memory.
func RenderBytes(doc *Document, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, doc, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func build(doc *Document, opts Options) (*fpdf.Fpdf, error) {
	if opts.PageSize == "" {
		opts.PageSize = "A4"
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}
	generated := doc.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf := fpdf.New("P", "mm", opts.PageSize, "")
	pdf.SetCompression(!opts.Uncompressed)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("Sharebook", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	contentW := pageW - 2*margin

	titlePage := 1
	pdf.SetFooterFunc(func() {
		page := pdf.PageNo()
		if page < titlePage {
			return
		}
		pdf.SetY(pageH - margin)
		if page == titlePage {
			pdf.SetFont(fontFamily, "I", footerFontSize)
			pdf.CellFormat(0, 5, "Generated on "+generated.Format("2006-01-02"), "", 0, "C", false, 0, "")
			return
		}
		pdf.SetFont(fontFamily, "", footerFontSize)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", page), "", 0, "C", false, 0, "")
	})

	if doc.Cover != nil && addCover(pdf, doc.Cover, pageW, pageH, margin) {
		titlePage = 2
	}

	// Title page
	pdf.AddPage()
	pdf.SetY(pageH / 3)
	pdf.SetFont(fontFamily, "B", titleFontSize)
	pdf.MultiCell(contentW, titleFontSize*0.5, tr(doc.Title), "", "C", false)
	if desc := strings.TrimSpace(doc.Description); desc != "" {
		pdf.Ln(20)
		pdf.SetFont(fontFamily, "", bodyFontSize)
		pdf.MultiCell(contentW, bodyLineHeight, tr(desc), "", "C", false)
	}

	for _, ch := range doc.Chapters {
		pdf.AddPage()
		pdf.SetY(margin + 5)
		pdf.SetFont(fontFamily, "B", chapterFontSize)
		pdf.MultiCell(contentW, chapterFontSize*0.5, tr(ch.Title), "", "L", false)
		if body := strings.TrimSpace(ch.Body); body != "" {
			pdf.Ln(6)
			pdf.SetFont(fontFamily, "", bodyFontSize)
			pdf.MultiCell(contentW, bodyLineHeight, tr(body), "", "L", false)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to build pdf: %w", err)
	}
	return pdf, nil
}

// addCover places the image on its own page, fitted to the content width and
// scaled down when too tall. It reports whether a page was added.
func addCover(pdf *fpdf.Fpdf, cover *Cover, pageW, pageH, margin float64) bool {
	opts := fpdf.ImageOptions{ImageType: cover.Type}
	info := pdf.RegisterImageOptionsReader("cover", opts, bytes.NewReader(cover.Data))
	if pdf.Err() || info == nil || info.Height() == 0 {
		// An undecodable cover is skipped rather than failing the export.
		pdf.ClearError()
		return false
	}

	ratio := info.Width() / info.Height()
	w := pageW - 2*margin
	h := w / ratio
	if maxH := pageH - 4*margin; h > maxH {
		h = maxH
		w = h * ratio
	}

	pdf.AddPage()
	pdf.ImageOptions("cover", (pageW-w)/2, 2*margin, w, h, false, opts, 0, "")
	return true
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileName derives the download name from a title: every character that is
// not an ASCII letter or digit becomes "_", then the result is lowercased.
func FileName(title string) string {
	name := strings.ToLower(nonAlnum.ReplaceAllString(title, "_"))
	if name == "" {
		name = "ebook"
	}
	return name + ".pdf"
}
