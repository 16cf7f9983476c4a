// Package sanitize escapes untrusted finding content before it is rendered.
package sanitize

import "strings"

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces the five HTML-significant characters with character
// references. It is not idempotent: escaping twice double-escapes, so callers
// apply it once where content enters the render path.
func Escape(text string) string {
	return htmlReplacer.Replace(text)
}
