package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/marcindex/internal/geo"
	"github.com/Aman-CERP/marcindex/internal/marc"
)

// coordinateTag holds coded cartographic mathematical data.
const coordinateTag = "034"

// bounds are the raw 034 $d $e $f $g values (west, east, north, south).
type bounds struct {
	d, e, f, g string
}

func readBounds(f marc.Field) bounds {
	first := func(code byte) string {
		if v := f.SubfieldValues(code); len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return bounds{d: first('d'), e: first('e'), f: first('f'), g: first('g')}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// mirrored fills a missing pair from the other one so a point becomes a
// zero-area envelope.
func (b bounds) mirrored() bounds {
	if !blank(b.d) && blank(b.e) && !blank(b.f) && blank(b.g) {
		b.e, b.g = b.d, b.f
	}
	if !blank(b.e) && blank(b.d) && !blank(b.g) && blank(b.f) {
		b.d, b.f = b.e, b.g
	}
	return b
}

// Envelopes returns the valid bounding boxes of every 034 field.
// Fields with unparseable or out-of-range bounds are skipped.
func Envelopes(rec *marc.Record) []geo.Envelope {
	var out []geo.Envelope
	for _, f := range rec.FieldsByTag(coordinateTag) {
		b := readBounds(f).mirrored()
		west, ok1 := geo.ConvertCoordinate(b.d)
		east, ok2 := geo.ConvertCoordinate(b.e)
		north, ok3 := geo.ConvertCoordinate(b.f)
		south, ok4 := geo.ConvertCoordinate(b.g)
		env := geo.Envelope{West: west, East: east, North: north, South: south}
		if !ok1 || !ok2 || !ok3 || !ok4 || !env.Valid() {
			slog.Debug("coordinate_rejected",
				slog.String("west", b.d), slog.String("east", b.e),
				slog.String("north", b.f), slog.String("south", b.g))
			continue
		}
		out = append(out, env)
	}
	return out
}

// AllCoordinates renders Envelopes as "ENVELOPE(w,e,n,s)" strings.
func AllCoordinates(rec *marc.Record) []string {
	var out []string
	for _, env := range Envelopes(rec) {
		out = append(out, env.String())
	}
	return out
}

// Points returns longitude/latitude pairs for 034 fields that describe a
// single point: one side of each pair missing, or west==east and north==south.
func Points(rec *marc.Record) []geo.Point {
	var out []geo.Point
	add := func(lon, lat string) {
		x, ok1 := geo.ConvertCoordinate(lon)
		y, ok2 := geo.ConvertCoordinate(lat)
		if ok1 && ok2 {
			out = append(out, geo.Point{Lon: x, Lat: y})
		}
	}

	for _, f := range rec.FieldsByTag(coordinateTag) {
		b := readBounds(f)
		if !blank(b.d) && blank(b.e) && !blank(b.f) && blank(b.g) {
			add(b.d, b.f)
		}
		if !blank(b.e) && blank(b.d) && !blank(b.g) && blank(b.f) {
			add(b.e, b.g)
		}
		if !blank(b.d) && !blank(b.f) && b.d == b.e && b.f == b.g {
			add(b.d, b.f)
		}
	}
	return out
}

// PointCoordinates renders Points as "lon,lat" strings.
func PointCoordinates(rec *marc.Record) []string {
	var out []string
	for _, p := range Points(rec) {
		out = append(out, p.String())
	}
	return out
}

// DisplayCoordinates returns the raw "d e f g" values of each 034 that has any.
func DisplayCoordinates(rec *marc.Record) []string {
	var out []string
	for _, f := range rec.FieldsByTag(coordinateTag) {
		b := readBounds(f)
		if b.d == "" && b.e == "" && b.f == "" && b.g == "" {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s %s %s", b.d, b.e, b.f, b.g))
	}
	return out
}
