package fulltext

import (
	"strings"
	"unicode/utf8"
)

// Sanitize replaces each run of characters that are not legal in XML 1.0
// with a single space. Tab, newline and carriage return are kept. Invalid
// UTF-8 bytes count as illegal.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inBad := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if legalRune(r, size) {
			b.WriteRune(r)
			inBad = false
			continue
		}
		if !inBad {
			b.WriteByte(' ')
			inBad = true
		}
	}
	return b.String()
}

func legalRune(r rune, size int) bool {
	if r == utf8.RuneError && size <= 1 {
		return false
	}
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}
