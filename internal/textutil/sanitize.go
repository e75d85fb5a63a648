// Package textutil provides filename sanitization helpers shared by the
// organizer and anything else that renders user-controlled text into paths.
package textutil

import "strings"

// componentReplacer swaps filesystem-hostile runes for spaces so that
// collapsing whitespace afterwards never glues words together.
var componentReplacer = strings.NewReplacer(
	"/", " ",
	"\\", " ",
	":", " ",
	"*", " ",
	"?", " ",
	"\"", " ",
	"<", " ",
	">", " ",
	"|", " ",
)

// SanitizeComponent strips path separators and other filesystem-hostile
// runes from a single path component and collapses runs of whitespace.
func SanitizeComponent(value string) string {
	return strings.Join(strings.Fields(componentReplacer.Replace(value)), " ")
}

// TrimHusks removes the leftovers a template leaves behind when its
// placeholders render empty: "()" and "[]" pairs, then trailing layout
// punctuation per path component.
func TrimHusks(rendered string) string {
	rendered = strings.ReplaceAll(rendered, "()", "")
	rendered = strings.ReplaceAll(rendered, "[]", "")
	parts := strings.Split(rendered, "/")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.TrimRight(part, "#-. ")
		parts[i] = part
	}
	return strings.Join(parts, "/")
}
