// Package sanitize cleans free text typed by service advisors and
// technicians before it is stored: arrival notes, checklist remarks and
// work order notes.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	blankLines = regexp.MustCompile(`\n{3,}`)

	entities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`, "&#39;", "'")
)

// Text strips markup from s and trims it. Entities are decoded and the
// result stripped again so encoded tags do not survive. Line breaks are kept,
// runs of blank lines collapse to one.
func Text(s string) string {
	out := htmlTag.ReplaceAllString(s, "")
	out = htmlTag.ReplaceAllString(entities.Replace(out), "")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// TextPtr is Text for optional fields. A value that is empty after cleaning
// becomes nil.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := Text(*s)
	if out == "" {
		return nil
	}
	return &out
}
