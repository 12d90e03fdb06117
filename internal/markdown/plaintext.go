package markdown

import (
	"regexp"
	"strings"
)

var (
	fenceLineRe   = regexp.MustCompile("(?m)^```\\w*[ \t]*\\n?")
	headingMarkRe = regexp.MustCompile(`(?m)^#{1,6} `)
	plainImageRe  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]*)\)`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips the markdown subset down to readable text for PDF output.
// Code fences lose their markers but keep their content, images become their
// alt text and links become "text (url)".
func PlainText(content string) string {
	s := strings.ReplaceAll(content, "\r\n", "\n")
	s = fenceLineRe.ReplaceAllString(s, "")
	s = plainImageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1 ($2)")
	s = boldRe.ReplaceAllString(s, "$1")
	s = italicRe.ReplaceAllString(s, "$1")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = headingMarkRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
