package callnum

import (
	"regexp"
	"strconv"
	"strings"
)

var deweyClassPattern = regexp.MustCompile(`^(\d{1,3})(\.\d+)?`)

// Dewey is a Dewey Decimal call number, e.g. "519.283 S63".
type Dewey struct {
	raw      string
	valid    bool
	integer  string
	fraction string
	cutter   string
}

// NewDewey parses raw as a Dewey call number.
func NewDewey(raw string) *Dewey {
	d := &Dewey{raw: raw}
	s := strings.TrimSpace(raw)
	m := deweyClassPattern.FindStringSubmatch(s)
	if m == nil {
		return d
	}
	d.valid = true
	d.integer = m[1]
	d.fraction = strings.TrimPrefix(m[2], ".")
	d.cutter = normalizeSpaces(strings.TrimLeft(s[len(m[0]):], ". "))
	return d
}

// Raw implements CallNumber.
func (d *Dewey) Raw() string { return d.raw }

// IsValid implements CallNumber.
func (d *Dewey) IsValid() bool { return d.valid }

// Classification implements CallNumber.
func (d *Dewey) Classification() string {
	if !d.valid {
		return ""
	}
	if d.fraction == "" {
		return d.integer
	}
	return d.integer + "." + d.fraction
}

// Value returns the classification as a number.
func (d *Dewey) Value() (float64, bool) {
	if !d.valid {
		return 0, false
	}
	v, err := strconv.ParseFloat(d.Classification(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Searchable returns the raw number uppercased with spaces removed.
func (d *Dewey) Searchable() string {
	return strings.ReplaceAll(strings.ToUpper(d.raw), " ", "")
}

// ShelfKey implements CallNumber. The integer part is padded to three digits;
// the fraction is kept as written since it already sorts lexically.
func (d *Dewey) ShelfKey() string {
	if !d.valid {
		return normalizeSpaces(d.raw)
	}
	key := padLeft(d.integer, 3, '0')
	if d.fraction != "" {
		key += "." + d.fraction
	}
	if d.cutter != "" {
		key += " " + d.cutter
	}
	return key
}
