package geo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Envelope is a bounding box in decimal degrees.
type Envelope struct {
	West  float64
	East  float64
	North float64
	South float64
}

var envelopePattern = regexp.MustCompile(`^ENVELOPE\(\s*([^,]+),\s*([^,]+),\s*([^,]+),\s*([^,)]+)\)$`)

// ValidateCoordinates reports whether the bounds form a usable envelope:
// longitudes within ±180, latitudes within ±90, north >= south, west <= east.
func ValidateCoordinates(west, east, north, south float64) bool {
	if west > 180 || west < -180 || east > 180 || east < -180 {
		return false
	}
	if north > 90 || north < -90 || south > 90 || south < -90 {
		return false
	}
	return north >= south && west <= east
}

// Valid reports whether e passes ValidateCoordinates.
func (e Envelope) Valid() bool {
	return ValidateCoordinates(e.West, e.East, e.North, e.South)
}

// IsPoint reports whether the envelope has zero area.
func (e Envelope) IsPoint() bool {
	return e.West == e.East && e.North == e.South
}

// String renders the envelope in west, east, north, south order,
// e.g. "ENVELOPE(-79.0,-78.5,45.0,44.0)".
func (e Envelope) String() string {
	return fmt.Sprintf("ENVELOPE(%s,%s,%s,%s)",
		FormatDegrees(e.West), FormatDegrees(e.East),
		FormatDegrees(e.North), FormatDegrees(e.South))
}

// ParseEnvelope reads the String form back.
func ParseEnvelope(s string) (Envelope, error) {
	m := envelopePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Envelope{}, fmt.Errorf("not an envelope: %q", s)
	}
	var bounds [4]float64
	for i := range bounds {
		v, err := strconv.ParseFloat(strings.TrimSpace(m[i+1]), 64)
		if err != nil {
			return Envelope{}, fmt.Errorf("envelope bound %d: %w", i, err)
		}
		bounds[i] = v
	}
	return Envelope{West: bounds[0], East: bounds[1], North: bounds[2], South: bounds[3]}, nil
}

// Point is a longitude/latitude pair.
type Point struct {
	Lon float64
	Lat float64
}

// String renders "lon,lat".
func (p Point) String() string {
	return FormatDegrees(p.Lon) + "," + FormatDegrees(p.Lat)
}

// ParsePoint reads the String form back.
func ParsePoint(s string) (Point, error) {
	lon, lat, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("not a point: %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Point{}, fmt.Errorf("point longitude: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Point{}, fmt.Errorf("point latitude: %w", err)
	}
	return Point{Lon: x, Lat: y}, nil
}

// FormatDegrees prints the shortest decimal form of v that round-trips,
// always carrying a fractional part ("45" prints as "45.0").
func FormatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
