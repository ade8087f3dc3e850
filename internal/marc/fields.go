package marc

import "strings"

// FieldList returns the distinct, trimmed, non-empty values selected by spec,
// in record order.
//
// Selection rules per token:
//   - control field: whole data, or the [n-m] character range when given
//   - data field, one subfield code: one value per subfield occurrence
//   - data field, several codes: selected subfields of each field joined by a space
//   - data field, no codes: all subfields of each field joined by a space
func (r *Record) FieldList(spec string) *Set {
	result := NewSet()
	for _, fs := range ParseSpec(spec) {
		for _, v := range r.valuesFor(fs) {
			v = strings.TrimSpace(v)
			if v != "" {
				result.Add(v)
			}
		}
	}
	return result
}

// FirstFieldVal returns the first value FieldList would produce.
func (r *Record) FirstFieldVal(spec string) (string, bool) {
	values := r.FieldList(spec).Values()
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (r *Record) valuesFor(fs FieldSpec) []string {
	var values []string
	for _, f := range r.FieldsByTag(fs.Tag) {
		if f.IsControl() {
			values = append(values, controlSlice(f.Data, fs))
			continue
		}
		if len(fs.Codes) == 1 {
			values = append(values, f.SubfieldValues(fs.Codes[0])...)
			continue
		}
		values = append(values, f.SubfieldsAsString(fs.Codes))
	}
	return values
}

func controlSlice(data string, fs FieldSpec) string {
	if !fs.HasRange() {
		return data
	}
	if fs.Start >= len(data) {
		return ""
	}
	end := fs.End + 1
	if end > len(data) {
		end = len(data)
	}
	return data[fs.Start:end]
}
