package callnum

import (
	"regexp"
	"strings"
)

var (
	lcClassPattern  = regexp.MustCompile(`^([A-Z]{1,3})\s*(\d{1,4})(\.\d+)?`)
	lcCutterPattern = regexp.MustCompile(`^\.?\s*([A-Z])(\d+)\s*`)
)

// maxCutters is the number of cutters parsed before the remainder is treated as suffix.
const maxCutters = 3

// LC is a Library of Congress call number, e.g. "QA76.73.J38 H6 2005".
type LC struct {
	raw      string
	valid    bool
	letters  string
	integer  string
	fraction string
	cutters  []string
	suffix   string
}

// NewLC parses raw as an LC call number.
func NewLC(raw string) *LC {
	lc := &LC{raw: raw}
	lc.parse()
	return lc
}

func (lc *LC) parse() {
	s := strings.ToUpper(strings.TrimSpace(lc.raw))
	m := lcClassPattern.FindStringSubmatch(s)
	if m == nil || strings.ContainsAny(m[1][:1], "IOWXY") {
		return
	}
	lc.valid = true
	lc.letters = m[1]
	lc.integer = m[2]
	lc.fraction = strings.TrimPrefix(m[3], ".")

	rest := strings.TrimSpace(s[len(m[0]):])
	for len(lc.cutters) < maxCutters {
		cm := lcCutterPattern.FindStringSubmatch(rest)
		if cm == nil {
			break
		}
		lc.cutters = append(lc.cutters, cm[1]+cm[2])
		rest = rest[len(cm[0]):]
	}
	lc.suffix = normalizeSpaces(rest)
}

// Raw implements CallNumber.
func (lc *LC) Raw() string { return lc.raw }

// IsValid implements CallNumber.
func (lc *LC) IsValid() bool { return lc.valid }

// Classification implements CallNumber.
func (lc *LC) Classification() string {
	if !lc.valid {
		return ""
	}
	if lc.fraction == "" {
		return lc.letters + lc.integer
	}
	return lc.letters + lc.integer + "." + lc.fraction
}

// ShelfKey implements CallNumber. Class letters are padded to three columns,
// the class number to four integer and six fractional digits; cutters sort
// as decimals so they are kept verbatim.
func (lc *LC) ShelfKey() string {
	if !lc.valid {
		return normalizeSpaces(lc.raw)
	}

	var sb strings.Builder
	sb.WriteString(padRight(lc.letters, 3, ' '))
	sb.WriteByte(' ')
	sb.WriteString(padLeft(lc.integer, 4, '0'))
	sb.WriteByte('.')
	sb.WriteString(padRight(lc.fraction, 6, '0'))
	for _, c := range lc.cutters {
		sb.WriteByte(' ')
		sb.WriteString(c)
	}
	if lc.suffix != "" {
		sb.WriteByte(' ')
		sb.WriteString(lc.suffix)
	}
	return sb.String()
}

func padLeft(s string, n int, c byte) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat(string(c), n-len(s)) + s
}

func padRight(s string, n int, c byte) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(string(c), n-len(s))
}
