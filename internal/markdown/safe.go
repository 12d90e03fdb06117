package markdown

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	safeParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	safePolicy = newSafePolicy()
)

func newSafePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowURLSchemes("http", "https")
	p.AllowDataURIImages()
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code")
	return p
}

// RenderSafe renders content with a CommonMark parser (GFM tables, strikethrough
// and autolinks enabled) and passes the result through a UGC sanitizer. Raw HTML
// is dropped, and image and link URLs are limited to http, https and data:image.
func RenderSafe(content string) (string, error) {
	var buf bytes.Buffer
	if err := safeParser.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return safePolicy.Sanitize(buf.String()), nil
}

var strictPolicy = bluemonday.StrictPolicy()

// StripTags removes every HTML tag from s. Project descriptions go through it
// before they are stored.
func StripTags(s string) string {
	return strictPolicy.Sanitize(s)
}
