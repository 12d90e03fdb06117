// Package checksum provides SHA-256 helpers for uploaded assets and generated
// exports. Storage backends and the export service hash content while it is
// streamed, so callers get a digest without buffering the payload twice.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// CalculateSHA256 calculates the SHA256 checksum of data from a reader
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Bytes returns the hex SHA256 of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Reader hashes and counts everything read through it.
type Reader struct {
	r      io.Reader
	hasher hash.Hash
	n      int64
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	h := sha256.New()
	return &Reader{r: io.TeeReader(r, h), hasher: h}
}

func (c *Reader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Sum returns the hex digest of the bytes read so far.
func (c *Reader) Sum() string {
	return hex.EncodeToString(c.hasher.Sum(nil))
}

// Size returns the number of bytes read so far.
func (c *Reader) Size() int64 {
	return c.n
}
