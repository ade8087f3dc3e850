package marc

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ISO 2709 structural bytes.
const (
	recordTerminator  = 0x1D
	fieldTerminator   = 0x1E
	subfieldDelimiter = 0x1F
	leaderLength      = 24
	directoryEntryLen = 12
)

// ErrMalformedRecord is returned when a serialized record cannot be decoded.
var ErrMalformedRecord = errors.New("malformed MARC record")

// Reader yields records one at a time. Next returns io.EOF after the last record.
type Reader interface {
	Next() (*Record, error)
}

// Format identifies a serialization.
type Format string

const (
	// FormatBinary is ISO 2709 transmission format (.mrc).
	FormatBinary Format = "binary"
	// FormatXML is MARCXML (.xml).
	FormatXML Format = "xml"
)

// DetectFormat infers the serialization from a file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".marcxml":
		return FormatXML
	default:
		return FormatBinary
	}
}

// NewReader returns a reader for the given format.
func NewReader(r io.Reader, format Format) Reader {
	if format == FormatXML {
		return NewXMLReader(r)
	}
	return NewBinaryReader(r)
}

// OpenFile opens path and returns a reader for its detected format.
// The caller must close the returned closer.
func OpenFile(path string) (Reader, io.Closer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewReader(f, DetectFormat(path)), f, nil
}

// BinaryReader decodes ISO 2709 records. UTF-8 content is assumed.
type BinaryReader struct {
	br *bufio.Reader
}

// NewBinaryReader creates a reader over ISO 2709 input.
func NewBinaryReader(r io.Reader) *BinaryReader {
	return &BinaryReader{br: bufio.NewReader(r)}
}

// Next implements Reader.
func (r *BinaryReader) Next() (*Record, error) {
	// Skip stray whitespace between records (common in hand-edited files).
	for {
		b, err := r.br.Peek(1)
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if b[0] != '\n' && b[0] != '\r' && b[0] != ' ' {
			break
		}
		_, _ = r.br.ReadByte()
	}

	head := make([]byte, 5)
	if _, err := io.ReadFull(r.br, head); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: short record length: %v", ErrMalformedRecord, err)
	}
	n, ok := digits(head)
	if !ok || n <= leaderLength {
		return nil, fmt.Errorf("%w: invalid record length %q", ErrMalformedRecord, head)
	}

	buf := make([]byte, n)
	copy(buf, head)
	if _, err := io.ReadFull(r.br, buf[5:]); err != nil {
		return nil, fmt.Errorf("%w: truncated record: %v", ErrMalformedRecord, err)
	}
	return UnmarshalBinary(buf)
}

// UnmarshalBinary decodes a single ISO 2709 record.
func UnmarshalBinary(data []byte) (*Record, error) {
	if len(data) <= leaderLength {
		return nil, fmt.Errorf("%w: record shorter than leader", ErrMalformedRecord)
	}
	leader := string(data[:leaderLength])

	dirEnd := bytes.IndexByte(data[leaderLength:], fieldTerminator)
	if dirEnd < 0 {
		return nil, fmt.Errorf("%w: missing directory terminator", ErrMalformedRecord)
	}
	dir := data[leaderLength : leaderLength+dirEnd]
	if len(dir)%directoryEntryLen != 0 {
		return nil, fmt.Errorf("%w: directory length %d", ErrMalformedRecord, len(dir))
	}

	// Field data starts after the directory and its terminator.
	base, ok := digits(data[12:17])
	if !ok || base < leaderLength+len(dir)+1 || base > len(data) {
		return nil, fmt.Errorf("%w: invalid base address %q", ErrMalformedRecord, leader[12:17])
	}

	rec := NewRecord(leader)
	for i := 0; i < len(dir); i += directoryEntryLen {
		entry := dir[i : i+directoryEntryLen]
		tag := string(entry[:3])
		length, ok1 := digits(entry[3:7])
		start, ok2 := digits(entry[7:12])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: bad directory entry %q", ErrMalformedRecord, entry)
		}
		from, to := base+start, base+start+length
		if to > len(data) {
			return nil, fmt.Errorf("%w: field %s out of bounds", ErrMalformedRecord, tag)
		}
		raw := bytes.TrimRight(data[from:to], string([]byte{fieldTerminator, recordTerminator}))

		if IsControlTag(tag) {
			rec.AddControlField(tag, string(raw))
			continue
		}
		rec.Fields = append(rec.Fields, decodeDataField(tag, raw))
	}
	return rec, nil
}

// digits parses an unsigned, fixed-width decimal field. Signs and spaces
// are rejected.
func digits(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func decodeDataField(tag string, raw []byte) Field {
	f := Field{Tag: tag, Ind1: ' ', Ind2: ' '}
	if len(raw) >= 1 {
		f.Ind1 = raw[0]
	}
	if len(raw) >= 2 {
		f.Ind2 = raw[1]
		raw = raw[2:]
	} else {
		return f
	}
	parts := bytes.Split(raw, []byte{subfieldDelimiter})
	for _, part := range parts[1:] {
		if len(part) == 0 {
			continue
		}
		f.Subfields = append(f.Subfields, Subfield{Code: part[0], Value: string(part[1:])})
	}
	return f
}

// XMLReader streams records out of a MARCXML document or collection.
type XMLReader struct {
	dec *xml.Decoder
}

// NewXMLReader creates a reader over MARCXML input.
func NewXMLReader(r io.Reader) *XMLReader {
	return &XMLReader{dec: xml.NewDecoder(r)}
}

type xmlRecord struct {
	Leader        string `xml:"leader"`
	ControlFields []struct {
		Tag  string `xml:"tag,attr"`
		Data string `xml:",chardata"`
	} `xml:"controlfield"`
	DataFields []struct {
		Tag       string `xml:"tag,attr"`
		Ind1      string `xml:"ind1,attr"`
		Ind2      string `xml:"ind2,attr"`
		Subfields []struct {
			Code  string `xml:"code,attr"`
			Value string `xml:",chardata"`
		} `xml:"subfield"`
	} `xml:"datafield"`
}

// Next implements Reader.
func (r *XMLReader) Next() (*Record, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}
		var xr xmlRecord
		if err := r.dec.DecodeElement(&xr, &start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return xr.toRecord(), nil
	}
}

// toRecord converts the decoded element. MARCXML keeps control fields before
// data fields, so that order is preserved here.
func (xr xmlRecord) toRecord() *Record {
	rec := NewRecord(xr.Leader)
	for _, cf := range xr.ControlFields {
		rec.AddControlField(cf.Tag, cf.Data)
	}
	for _, df := range xr.DataFields {
		f := Field{Tag: df.Tag, Ind1: indicator(df.Ind1), Ind2: indicator(df.Ind2)}
		for _, sf := range df.Subfields {
			if sf.Code == "" {
				continue
			}
			f.Subfields = append(f.Subfields, Subfield{Code: sf.Code[0], Value: sf.Value})
		}
		rec.Fields = append(rec.Fields, f)
	}
	return rec
}

func indicator(s string) byte {
	if s == "" {
		return ' '
	}
	return s[0]
}
