package core

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Ellipsis marks a truncated description.
const Ellipsis = "..."

// Truncate shortens s to at most limit visible characters, appending
// Ellipsis when anything was cut. A character is a grapheme cluster, so a
// Burmese consonant keeps its medials and vowel signs. Whitespace runs are
// collapsed first so the result reads as a single line.
func Truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 {
		return s
	}
	g := uniseg.NewGraphemes(s)
	end, n := 0, 0
	for g.Next() {
		if n == limit {
			return strings.TrimSpace(s[:end]) + Ellipsis
		}
		_, end = g.Positions()
		n++
	}
	return s
}

// SynthesizeDescription derives a description from the note text.
func SynthesizeDescription(text string) string {
	if d := Truncate(text, DescriptionLimit); d != "" {
		return d
	}
	return DefaultDescription
}
