package extract

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/Aman-CERP/marcindex/internal/callnum"
	"github.com/Aman-CERP/marcindex/internal/marc"
)

// CallNumberByType returns the distinct call numbers of fields whose
// type subfield (typeCode) equals callType. spec has the form "098abc:099ab";
// the subfield codes of each token select what is joined into the call number.
func CallNumberByType(rec *marc.Record, spec string, typeCode byte, callType string) []string {
	result := marc.NewSet()
	for _, v := range callNumbersByType(rec, spec, typeCode, callType) {
		result.Add(v)
	}
	return nonEmpty(result)
}

// CallNumberByTypeAsList is CallNumberByType keeping duplicates and order.
func CallNumberByTypeAsList(rec *marc.Record, spec string, typeCode byte, callType string) []string {
	return callNumbersByType(rec, spec, typeCode, callType)
}

func callNumbersByType(rec *marc.Record, spec string, typeCode byte, callType string) []string {
	var out []string
	for _, fs := range marc.ParseSpec(spec) {
		for _, f := range rec.FieldsByTag(fs.Tag) {
			if f.IsControl() || !hasCallType(f, typeCode, callType) {
				continue
			}
			out = append(out, f.SubfieldsAsString(fs.Codes))
		}
	}
	return out
}

// firstCallNumberByType returns the first matching call number across the
// spec tokens, in spec order.
func firstCallNumberByType(rec *marc.Record, spec string, typeCode byte, callType string) (string, bool) {
	values := callNumbersByType(rec, spec, typeCode, callType)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func hasCallType(f marc.Field, typeCode byte, callType string) bool {
	for _, v := range f.SubfieldValues(typeCode) {
		if v == callType {
			return true
		}
	}
	return false
}

// LCSortable returns the shelf key of the first valid LC call number in spec.
// Without a valid one, it falls back to the shelf key of the first value, and
// without any value, to the shelf key of the empty string.
func LCSortable(rec *marc.Record, spec string) string {
	first := ""
	for _, v := range rec.FieldList(spec).Values() {
		lc := callnum.NewLC(v)
		if lc.IsValid() {
			return lc.ShelfKey()
		}
		if first == "" {
			first = v
		}
	}
	return callnum.NewLC(first).ShelfKey()
}

// LCSortableByType returns the shelf key of the first call number whose type
// subfield matches callType.
func LCSortableByType(rec *marc.Record, spec string, typeCode byte, callType string) (string, bool) {
	return SortableByType(rec, spec, typeCode, callType, callnum.SchemeLC)
}

// SortableByType returns the shelf key, under scheme, of the first call
// number whose type subfield matches callType.
func SortableByType(rec *marc.Record, spec string, typeCode byte, callType string, scheme callnum.Scheme) (string, bool) {
	v, ok := firstCallNumberByType(rec, spec, typeCode, callType)
	if !ok {
		return "", false
	}
	return callnum.Parse(scheme, v).ShelfKey(), true
}

// DeweyNumber floors every valid Dewey classification to precision
// ("100", "10", "1", "0.1", ...) and formats it as "519.200".
func DeweyNumber(rec *marc.Record, spec, precision string) []string {
	p, err := strconv.ParseFloat(strings.TrimSpace(precision), 64)
	if err != nil || p <= 0 {
		slog.Warn("invalid dewey precision",
			slog.String("precision", precision),
			slog.String("spec", spec))
		return nil
	}

	result := marc.NewSet()
	for _, v := range rec.FieldList(spec).Values() {
		val, ok := callnum.NewDewey(v).Value()
		if !ok {
			continue
		}
		result.Add(callnum.FormatDeweyNumber(callnum.RoundDown(val, p)))
	}
	return nonEmpty(result)
}

// DeweySearchable returns valid Dewey numbers uppercased with spaces removed.
func DeweySearchable(rec *marc.Record, spec string) []string {
	result := marc.NewSet()
	for _, v := range rec.FieldList(spec).Values() {
		d := callnum.NewDewey(v)
		if d.IsValid() {
			result.Add(d.Searchable())
		}
	}
	return nonEmpty(result)
}

// DeweySortable returns the shelf key of the first valid Dewey number.
func DeweySortable(rec *marc.Record, spec string) (string, bool) {
	for _, v := range rec.FieldList(spec).Values() {
		d := callnum.NewDewey(v)
		if d.IsValid() {
			return d.ShelfKey(), true
		}
	}
	return "", false
}

// DeweySortableByType returns the shelf key of the first Dewey call number
// whose type subfield matches callType.
func DeweySortableByType(rec *marc.Record, spec string, typeCode byte, callType string) (string, bool) {
	return SortableByType(rec, spec, typeCode, callType, callnum.SchemeDewey)
}

// DeweySortables returns shelf keys for every value in spec, valid or not,
// in order. Browse indexes need one key per call number.
func DeweySortables(rec *marc.Record, spec string) []string {
	var out []string
	for _, v := range rec.FieldList(spec).Values() {
		out = append(out, callnum.NewDewey(v).ShelfKey())
	}
	return out
}
