// Package sanitize strips disallowed markup from document content.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy allows formatting, blocks, links, images, styles, and tables.
var policy = buildPolicy()

// strictPolicy allows basic formatting only.
var strictPolicy = bluemonday.NewPolicy().
	AllowElements("b", "i", "u", "s", "em", "strong", "sub", "sup", "code")

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowImages()
	p.AllowLists()
	p.AllowTables()
	p.AllowAttrs("style").OnElements("span", "p", "div", "li", "td", "th", "table")
	p.AllowStyles("color", "background-color", "text-align", "font-weight", "font-style", "text-decoration").Globally()
	return p
}

// Sanitize returns HTML reduced to the allowed formatting subset.
// Empty input passes through unchanged.
func Sanitize(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	return policy.Sanitize(html)
}

// SanitizeStrict keeps inline formatting tags only.
func SanitizeStrict(html string) string {
	if strings.TrimSpace(html) == "" {
		return html
	}
	return strictPolicy.Sanitize(html)
}
