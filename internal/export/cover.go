package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxCoverBytes bounds a cover image download.
const MaxCoverBytes = 10 << 20

// ErrUnsupportedImage is returned for cover formats the PDF writer cannot embed.
var ErrUnsupportedImage = errors.New("unsupported cover image format")

// CoverFetcher downloads cover images over HTTP.
type CoverFetcher struct {
	client *http.Client
}

// NewCoverFetcher creates a fetcher whose requests time out after timeout.
func NewCoverFetcher(timeout time.Duration) *CoverFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CoverFetcher{client: &http.Client{Timeout: timeout}}
}

// imageType maps a MIME type to an fpdf image type.
func imageType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	}
	return ""
}

// Fetch downloads url. The format is sniffed from the bytes, so a wrong
// Content-Type header does not matter.
func (f *CoverFetcher) Fetch(ctx context.Context, url string) (*Cover, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid cover url: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch cover: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxCoverBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	if len(data) > MaxCoverBytes {
		return nil, fmt.Errorf("cover exceeds %d bytes", MaxCoverBytes)
	}

	typ := imageType(http.DetectContentType(data))
	if typ == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, http.DetectContentType(data))
	}
	return &Cover{Data: data, Type: typ}, nil
}
