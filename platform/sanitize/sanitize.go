// Package sanitize provides text sanitization for rendered message bodies.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	emailPolicy  = newEmailPolicy()

	blockBreakRegex = regexp.MustCompile(`(?i)<\s*(br\s*/?|/p|/div|/li|/tr|/h[1-6])\s*>`)
	blankRunRegex   = regexp.MustCompile(`\n{3,}`)
	tagRegex        = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
)

func newEmailPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style").OnElements("p", "div", "span", "td", "table", "a")
	p.AllowAttrs("width", "height", "align").OnElements("table", "td", "img")
	p.RequireNoReferrerOnLinks(true)
	return p
}

// StripHTML removes all markup and returns plain text. Block-level tags become
// line breaks so paragraphs survive in channels without HTML (WhatsApp, SMS).
func StripHTML(s string) string {
	withBreaks := blockBreakRegex.ReplaceAllString(s, "\n")
	result := html.UnescapeString(strictPolicy.Sanitize(withBreaks))
	result = strings.ReplaceAll(result, "\r\n", "\n")
	result = blankRunRegex.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// EmailHTML keeps formatting markup but drops scripts, event handlers and
// other active content from HTML email bodies.
func EmailHTML(s string) string {
	return emailPolicy.Sanitize(s)
}

// LooksLikeHTML reports whether the body contains tags.
func LooksLikeHTML(s string) bool {
	return tagRegex.MatchString(s)
}
