// Package schema resolves human-authored CSV headers onto the canonical
// metric vocabulary and tracks which canonical metrics an upload populates.
package schema

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Normalize maps a raw header onto its canonical key candidate.
//
// Steps run in a fixed order: parenthesized groups are removed (nested and
// repeated groups included, an unclosed "(" drops the remainder), the text is
// lower-cased, every run of non-alphanumeric characters becomes a single "_",
// and leading/trailing underscores are trimmed. Normalize is idempotent.
func Normalize(raw string) string {
	return collapse(strings.Map(unicode.ToLower, stripGroups(raw)))
}

// stripGroups removes every parenthesized group from s.
func stripGroups(s string) string {
	if !strings.ContainsRune(s, '(') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapse replaces separator runs with one underscore and trims the ends.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// ParseNumber reports the finite value held in cell. Empty, whitespace-only,
// non-numeric and non-finite cells are missing, never zero.
func ParseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
