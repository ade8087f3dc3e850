// Package geo converts the coordinate notations found in cartographic
// records into signed decimal degrees and bounding envelopes.
package geo

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// hemisphere letter + degrees, e.g. "W0790000" or "N45.5"
	hdmsPattern = regexp.MustCompile(`^([eEwWnNsS])(\d+(\.\d+)?)$`)
	// hemisphere letter + fixed-width hhh mm ss
	dmsPattern = regexp.MustCompile(`^([EWNS])(\d{3})(\d{2})(\d{2})$`)
	// signed decimal degrees, e.g. "-79.5"
	pmddPattern = regexp.MustCompile(`^([+-])(\d+(\.\d+)?)$`)
)

// ConvertCoordinate parses a single coordinate into signed decimal degrees.
//
// Hemisphere notation whose magnitude exceeds 90 (N/S) or 180 (E/W) is read
// as packed degrees-minutes-seconds. South and west are negative.
// The second return is false when the value cannot be parsed.
func ConvertCoordinate(s string) (float64, bool) {
	if m := hdmsPattern.FindStringSubmatch(s); m != nil {
		hemisphere := strings.ToUpper(m[1])
		degrees, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, false
		}

		limit := 180.0
		if hemisphere == "N" || hemisphere == "S" {
			limit = 90.0
		}
		if degrees > limit {
			digits := m[2]
			if limit == 90.0 && len(digits) == 6 {
				// hddmmss latitude; pad to the hdddmmss layout.
				digits = "0" + digits
			}
			return CoordinateToDecimal(hemisphere + digits)
		}
		if hemisphere == "S" || hemisphere == "W" {
			degrees = -degrees
		}
		return degrees, true
	}

	if m := pmddPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, false
		}
		if m[1] == "-" {
			v = -v
		}
		return v, true
	}

	return 0, false
}

// CoordinateToDecimal converts a fixed-width hemisphere coordinate
// ("W0790530" = 79°05'30" W) to decimal degrees.
func CoordinateToDecimal(s string) (float64, bool) {
	m := dmsPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	deg, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])

	v := float64(deg) + float64(minutes)/60.0 + float64(seconds)/3600.0
	if m[1] == "W" || m[1] == "S" {
		v = -v
	}
	return v, true
}
