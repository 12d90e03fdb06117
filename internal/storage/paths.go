package storage

import (
	"net/url"
	"path"
	"strings"
)

// ObjectPath joins a logical bucket, an optional folder and an object name into
// a storage path.
func ObjectPath(bucket, folder, name string) string {
	parts := []string{bucket}
	if folder = strings.Trim(folder, "/"); folder != "" {
		parts = append(parts, folder)
	}
	parts = append(parts, name)
	return path.Join(parts...)
}

// BucketOf returns the logical bucket of a storage path (its first segment).
func BucketOf(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// SplitPublicURL locates the first path segment of rawURL that names one of
// buckets and returns that bucket together with the remainder after it. The
// storage path of the object is bucket + "/" + remainder.
//
// Public URLs from every backend contain the logical bucket as a segment:
//
//	https://cdn.example.com/project-covers/u1-abc.png
//	https://acct.blob.core.windows.net/sharebook/ebook-assets/img/u1-def.jpg
//	http://localhost:8080/files/ebook-exports/my_book.pdf
func SplitPublicURL(rawURL string, buckets []string) (bucket, remainder string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}

	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range segments {
		for _, b := range buckets {
			if b == "" || seg != b {
				continue
			}
			rest := strings.Join(segments[i+1:], "/")
			if rest == "" {
				return "", "", false
			}
			return b, rest, true
		}
	}
	return "", "", false
}
