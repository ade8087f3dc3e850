// Package marc models bibliographic records as an ordered list of control and
// data fields, and provides the field-selection primitives used by extractors.
package marc

import "strings"

// Subfield is a single coded value inside a data field.
type Subfield struct {
	Code  byte
	Value string
}

// Field is either a control field (Tag + Data) or a data field
// (Tag + indicators + ordered subfields).
type Field struct {
	Tag       string
	Data      string
	Ind1      byte
	Ind2      byte
	Subfields []Subfield
}

// IsControlTag reports whether tag names a control field (001-009).
func IsControlTag(tag string) bool {
	return len(tag) == 3 && tag[0] == '0' && tag[1] == '0'
}

// IsControl reports whether f is a control field.
func (f Field) IsControl() bool {
	return IsControlTag(f.Tag)
}

// SubfieldValues returns the values of every subfield with the given code, in order.
func (f Field) SubfieldValues(code byte) []string {
	var values []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			values = append(values, sf.Value)
		}
	}
	return values
}

// SubfieldsAsString joins the subfields whose codes appear in codes with a
// single space. An empty codes string selects every subfield.
func (f Field) SubfieldsAsString(codes string) string {
	var sb strings.Builder
	for _, sf := range f.Subfields {
		if codes != "" && strings.IndexByte(codes, sf.Code) < 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(sf.Value)
	}
	return sb.String()
}

// Record is a structured bibliographic record. Field order is preserved and
// repeated tags are independent statements.
type Record struct {
	Leader string
	Fields []Field
}

// NewRecord creates an empty record with the given leader.
func NewRecord(leader string) *Record {
	return &Record{Leader: leader}
}

// AddControlField appends a control field.
func (r *Record) AddControlField(tag, data string) *Record {
	r.Fields = append(r.Fields, Field{Tag: tag, Data: data})
	return r
}

// AddDataField appends a data field with the given indicators and subfields.
func (r *Record) AddDataField(tag string, ind1, ind2 byte, subfields ...Subfield) *Record {
	r.Fields = append(r.Fields, Field{Tag: tag, Ind1: ind1, Ind2: ind2, Subfields: subfields})
	return r
}

// Sub is shorthand for constructing a Subfield.
func Sub(code byte, value string) Subfield {
	return Subfield{Code: code, Value: value}
}

// FieldsByTag returns every field carrying tag, in record order.
func (r *Record) FieldsByTag(tag string) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// ControlField returns the data of the first control field with tag.
func (r *Record) ControlField(tag string) (string, bool) {
	for _, f := range r.Fields {
		if f.Tag == tag {
			return f.Data, true
		}
	}
	return "", false
}

// LeaderAt returns the leader byte at offset i, or 0 when the leader is too short.
func (r *Record) LeaderAt(i int) byte {
	if i < 0 || i >= len(r.Leader) {
		return 0
	}
	return r.Leader[i]
}
