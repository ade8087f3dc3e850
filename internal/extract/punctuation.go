package extract

import (
	"github.com/Aman-CERP/marcindex/internal/marc"
)

// NormalizeTrailingPunctuation returns the FieldList values with trailing
// periods and whitespace removed, so string facets match their text-field
// equivalents. A period that closes a lone capital initial ("Smith, J.") is kept.
func NormalizeTrailingPunctuation(rec *marc.Record, spec string) []string {
	result := marc.NewSet()
	for _, v := range rec.FieldList(spec).Values() {
		if v = StripTrailingPunctuation(v); v != "" {
			result.Add(v)
		}
	}
	return nonEmpty(result)
}

// StripTrailingPunctuation removes the trailing run of '.' and whitespace
// unless the run follows a single uppercase letter at a word boundary, in
// which case the first character of the run survives.
func StripTrailingPunctuation(s string) string {
	cut := len(s)
	for cut > 0 && isTrailingPunct(s[cut-1]) {
		cut--
	}
	if cut == len(s) {
		return s
	}
	if isInitial(s, cut) {
		return s[:cut+1]
	}
	return s[:cut]
}

func isTrailingPunct(c byte) bool {
	switch c {
	case '.', ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// isInitial reports whether s[end-1] is an uppercase ASCII letter preceded by
// a non-word character or the start of the string.
func isInitial(s string, end int) bool {
	if end < 1 {
		return false
	}
	c := s[end-1]
	if c < 'A' || c > 'Z' {
		return false
	}
	return end == 1 || !isWordChar(s[end-2])
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
