// Package callnum parses Library of Congress and Dewey Decimal call numbers
// into validated, sortable shelf keys.
package callnum

import (
	"fmt"
	"math"
	"strings"
)

// CallNumber is a classified call number.
type CallNumber interface {
	// Raw returns the input string as given.
	Raw() string

	// IsValid reports whether the input follows the scheme's syntax.
	IsValid() bool

	// ShelfKey returns a string that sorts in shelf order.
	// Invalid input still yields a key (the normalized raw string).
	ShelfKey() string

	// Classification returns the class portion, e.g. "QA76.73" or "519.283".
	Classification() string
}

// Scheme names a classification scheme.
type Scheme string

const (
	SchemeLC    Scheme = "LC"
	SchemeDewey Scheme = "DDC"
)

// Parse classifies raw under scheme. Unknown schemes fall back to LC.
func Parse(scheme Scheme, raw string) CallNumber {
	if scheme == SchemeDewey {
		return NewDewey(raw)
	}
	return NewLC(raw)
}

// RoundDown floors v to a multiple of precision. Precision must be positive.
func RoundDown(v, precision float64) float64 {
	if precision <= 0 {
		return v
	}
	// The epsilon keeps binary representation error (519.3/0.1 = 5192.999...)
	// from dropping a whole step.
	return math.Floor(v/precision+1e-9) * precision
}

// FormatDeweyNumber renders v with three integer digits and three decimals,
// e.g. 519.2 -> "519.200", 5 -> "005.000".
func FormatDeweyNumber(v float64) string {
	return fmt.Sprintf("%07.3f", v)
}

// normalizeSpaces uppercases s and collapses runs of whitespace.
func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
