package kconsole

import (
	"strings"

	"golang.org/x/text/width"
)

// DisplayWidth returns the terminal column width of s, folding
// fullwidth/halfwidth East Asian forms the way a real monospace
// terminal renders them (two columns for fullwidth, one otherwise).
// cmd/ksim's multi-VT viewer uses this to lay VTs out side by side
// without garbling column alignment.
func DisplayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

// PadTo returns s padded with trailing spaces until its DisplayWidth
// reaches cols, truncating nothing (a VT wider than cols is returned
// unchanged; callers that need truncation do it themselves, since a
// console only ever has a few VTs and this is a rendering nicety, not
// a syscall-facing primitive).
func PadTo(s string, cols int) string {
	w := DisplayWidth(s)
	if w >= cols {
		return s
	}
	return s + strings.Repeat(" ", cols-w)
}

// SideBySide joins two single-line VT renderings with a column
// separator for cmd/ksim's two-pane viewer, padding the left column to
// leftCols first so the separator lines up regardless of the
// left-hand text's East Asian width.
func SideBySide(left, right string, leftCols int) string {
	return PadTo(left, leftCols) + "| " + right
}
