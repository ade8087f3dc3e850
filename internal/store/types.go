// Package store writes built index documents to a sink: a local bleve
// index that the search command can query, or a JSON-lines file for
// loading into an external search server.
package store

import (
	"context"
	"sort"

	"github.com/Aman-CERP/marcindex/internal/geo"
)

// Document is one index document. Fields map an index field name to its
// values in extraction order.
type Document struct {
	ID     string              `json:"id"`
	Fields map[string][]string `json:"fields"`
}

// Add appends values to field, skipping empty strings.
func (d *Document) Add(field string, values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if d.Fields == nil {
			d.Fields = make(map[string][]string)
		}
		d.Fields[field] = append(d.Fields[field], v)
	}
}

// First returns the first value of field.
func (d *Document) First(field string) string {
	if vs := d.Fields[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// FieldNames returns the populated field names, sorted.
func (d *Document) FieldNames() []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sink receives documents in batches.
type Sink interface {
	// Write adds or replaces documents by ID.
	Write(ctx context.Context, docs []*Document) error
	// Delete removes documents by ID.
	Delete(ctx context.Context, ids []string) error
	// Close flushes and releases the sink.
	Close() error
}

// Hit is one search result.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

// SearchOptions narrows a search.
type SearchOptions struct {
	// Limit caps the number of hits. Zero means 10.
	Limit int
	// BBox restricts hits to records whose long_lat point lies inside.
	BBox *geo.Envelope
	// Fields lists the stored fields to return. Empty returns all.
	Fields []string
}
