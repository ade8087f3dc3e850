package marc

import (
	"bytes"
	"fmt"
)

// MarshalBinary encodes the record in ISO 2709. Leader positions 0-4 and 12-16
// are recomputed; the rest of the leader is kept (padded to 24 bytes).
func (r *Record) MarshalBinary() ([]byte, error) {
	var dir, body bytes.Buffer
	for _, f := range r.Fields {
		if len(f.Tag) != 3 {
			return nil, fmt.Errorf("invalid tag %q", f.Tag)
		}
		start := body.Len()
		if f.IsControl() {
			body.WriteString(f.Data)
		} else {
			body.WriteByte(orBlank(f.Ind1))
			body.WriteByte(orBlank(f.Ind2))
			for _, sf := range f.Subfields {
				body.WriteByte(subfieldDelimiter)
				body.WriteByte(sf.Code)
				body.WriteString(sf.Value)
			}
		}
		body.WriteByte(fieldTerminator)
		fmt.Fprintf(&dir, "%s%04d%05d", f.Tag, body.Len()-start, start)
	}
	dir.WriteByte(fieldTerminator)
	body.WriteByte(recordTerminator)

	leader := []byte(fmt.Sprintf("%-24s", r.Leader))[:leaderLength]
	base := leaderLength + dir.Len()
	total := base + body.Len()
	copy(leader[0:5], fmt.Sprintf("%05d", total))
	copy(leader[12:17], fmt.Sprintf("%05d", base))

	out := make([]byte, 0, total)
	out = append(out, leader...)
	out = append(out, dir.Bytes()...)
	out = append(out, body.Bytes()...)
	return out, nil
}

func orBlank(b byte) byte {
	if b == 0 {
		return ' '
	}
	return b
}
