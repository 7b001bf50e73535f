package main

import (
	"strings"
	"unicode/utf8"

	"riscvkernel/kconsole"
)

// paneCols is the column budget each VT pane gets in split view.
const paneCols = 40

// lastLine returns the text after the final newline of s, trimmed from
// the front until it fits a pane, so a long line never pushes its
// neighbors off the row.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	for kconsole.DisplayWidth(s) > paneCols {
		_, size := utf8.DecodeRuneInString(s)
		s = s[size:]
	}
	return s
}

// renderPanes lays the VT tails out side by side, one fixed-width pane
// per VT, aligned by display width so fullwidth runes do not skew the
// columns.
func renderPanes(tails []string) string {
	line := kconsole.PadTo(tails[0], paneCols)
	for _, t := range tails[1:] {
		line = kconsole.SideBySide(line, kconsole.PadTo(t, paneCols), kconsole.DisplayWidth(line))
	}
	return line
}
