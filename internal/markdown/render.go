// Package markdown turns chapter content into HTML.
//
// Render is the legacy regex pipeline that chapter pages have always used. It
// applies a fixed sequence of substitutions, escapes nothing outside code, and
// copies image src/alt through verbatim, so its output must only be shown for
// trusted content. RenderSafe is the hardened alternative: a real CommonMark
// parser followed by an allow-list sanitizer.
package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)\\n```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*)\)`)
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*]+)\*`)
	h1Re         = regexp.MustCompile(`(?m)^# (.*)$`)
	h2Re         = regexp.MustCompile(`(?m)^## (.*)$`)
	h3Re         = regexp.MustCompile(`(?m)^### (.*)$`)
	bulletRe     = regexp.MustCompile(`(?m)^- (.*)$`)
	orderedRe    = regexp.MustCompile(`(?m)^(\d+)\. (.*)$`)
	placeholder  = regexp.MustCompile("\x00(\\d+)\x00")

	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)
)

// Class attributes emitted by Render. The frontend stylesheet keys off them.
const (
	preClass        = "bg-muted p-4 rounded-md overflow-x-auto my-4"
	inlineCodeClass = "bg-muted px-1 py-0.5 rounded text-sm"
	imageClass      = "max-w-full h-auto rounded-md my-4"
)

// EscapeHTML escapes the five characters & < > " '.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Render converts the markdown subset to HTML in this order: fenced code,
// inline code, images, bold, italic, headings, list items, paragraph breaks.
//
// Code is replaced by opaque placeholders as soon as it is rendered so that the
// later passes never touch code interiors; the placeholders are swapped back at
// the end. NUL bytes are dropped from the input first so content cannot forge a
// placeholder. List items are emitted as bare <li> elements with no enclosing list.
// The pipeline is not idempotent.
func Render(content string) string {
	var blocks []string
	stash := func(html string) string {
		blocks = append(blocks, html)
		return "\x00" + strconv.Itoa(len(blocks)-1) + "\x00"
	}

	content = strings.ReplaceAll(content, "\x00", "")

	html := fencedCodeRe.ReplaceAllStringFunc(content, func(m string) string {
		sub := fencedCodeRe.FindStringSubmatch(m)
		lang := sub[1]
		if lang == "" {
			lang = "plaintext"
		}
		return stash(fmt.Sprintf(`<pre class="%s"><code class="language-%s">%s</code></pre>`,
			preClass, lang, EscapeHTML(sub[2])))
	})

	html = inlineCodeRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := inlineCodeRe.FindStringSubmatch(m)
		return stash(fmt.Sprintf(`<code class="%s">%s</code>`, inlineCodeClass, EscapeHTML(sub[1])))
	})

	// src and alt are interpolated as written.
	html = imageRe.ReplaceAllString(html, `<img src="$2" alt="$1" class="`+imageClass+`" />`)

	html = boldRe.ReplaceAllString(html, "<strong>$1</strong>")
	html = italicRe.ReplaceAllString(html, "<em>$1</em>")
	html = h1Re.ReplaceAllString(html, `<h1 class="text-2xl font-bold my-4">$1</h1>`)
	html = h2Re.ReplaceAllString(html, `<h2 class="text-xl font-bold my-3">$1</h2>`)
	html = h3Re.ReplaceAllString(html, `<h3 class="text-lg font-bold my-2">$1</h3>`)
	html = bulletRe.ReplaceAllString(html, "<li>$1</li>")
	html = orderedRe.ReplaceAllString(html, "<li>$2</li>")
	html = strings.ReplaceAll(html, "\n\n", "<br/><br/>")

	return placeholder.ReplaceAllStringFunc(html, func(m string) string {
		i, err := strconv.Atoi(strings.Trim(m, "\x00"))
		if err != nil || i >= len(blocks) {
			return m
		}
		return blocks[i]
	})
}
