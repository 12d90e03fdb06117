// Package respond holds the helpers every handler package uses to turn service
// errors into JSON responses and to read multipart uploads.
package respond

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharebook/sharebook/internal/middleware"
	"github.com/sharebook/sharebook/internal/services"
)

// Status maps a service error to an HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Error writes {"error": ...} for err. Internal errors are logged and replaced
// with a generic message so database details never reach the client.
func Error(c *gin.Context, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"request_id", middleware.RequestID(c),
			"error", err)
		msg = "Internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BadRequest writes a 400 with msg.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// BindJSON decodes the body into v and writes a 400 on failure.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// Upload is one file read from a multipart form.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	File        multipart.File
}

// Close releases the uploaded file.
func (u *Upload) Close() error {
	return u.File.Close()
}

// ReadUpload reads form field from a multipart request of at most maxBytes.
// A missing or generic part content type is replaced by a sniffed one.
func ReadUpload(c *gin.Context, field string, maxBytes int64) (*Upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: file exceeds %d MB", services.ErrValidation, maxBytes>>20)
		}
		return nil, fmt.Errorf("%w: form field %q is required", services.ErrValidation, field)
	}
	if header.Size > maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d MB", services.ErrValidation, maxBytes>>20)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}

	ct := header.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		ct = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to rewind upload: %w", err)
		}
	}

	return &Upload{Filename: header.Filename, Size: header.Size, ContentType: ct, File: f}, nil
}
