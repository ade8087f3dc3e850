package marc

import (
	"log/slog"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSpecCacheSize bounds the number of distinct spec strings kept parsed.
// Index configurations use a few dozen specs, so this is never the limit in practice.
const DefaultSpecCacheSize = 512

// FieldSpec is one parsed `tag[subfields]` token of a colon-separated spec,
// e.g. "245ab" or "008[7-10]".
type FieldSpec struct {
	// Tag is the three-character field tag.
	Tag string

	// Codes lists the subfield codes to select. Empty selects all subfields.
	Codes string

	// Start and End bound a character range of a control field (inclusive).
	// Both are -1 when no range was given.
	Start int
	End   int
}

// HasRange reports whether the token selects a control-field position range.
func (fs FieldSpec) HasRange() bool {
	return fs.Start >= 0
}

var specCache, _ = lru.New[string, []FieldSpec](DefaultSpecCacheSize)

// ParseSpec parses a colon-separated field spec such as "100a:700a".
// Tokens shorter than three characters are skipped with a warning; the rest
// of the spec is still honored. Results are cached by spec string.
func ParseSpec(spec string) []FieldSpec {
	if cached, ok := specCache.Get(spec); ok {
		return cached
	}

	var out []FieldSpec
	for _, token := range strings.Split(spec, ":") {
		fs, ok := parseToken(token)
		if !ok {
			slog.Warn("fieldspec_invalid_token",
				slog.String("token", token),
				slog.String("spec", spec))
			continue
		}
		out = append(out, fs)
	}

	specCache.Add(spec, out)
	return out
}

func parseToken(token string) (FieldSpec, bool) {
	token = strings.TrimSpace(token)
	if len(token) < 3 {
		return FieldSpec{}, false
	}

	fs := FieldSpec{Tag: token[:3], Start: -1, End: -1}
	rest := token[3:]
	if rest == "" {
		return fs, true
	}

	if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
		start, end, ok := parseRange(rest[1 : len(rest)-1])
		if !ok {
			return FieldSpec{}, false
		}
		fs.Start, fs.End = start, end
		return fs, true
	}

	fs.Codes = rest
	return fs, true
}

// parseRange parses "n" or "n-m".
func parseRange(s string) (int, int, bool) {
	lo, hi, isRange := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || start < 0 {
		return 0, 0, false
	}
	if !isRange {
		return start, start, true
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || end < start {
		return 0, 0, false
	}
	return start, end, true
}
