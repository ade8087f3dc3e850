package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends one JSON object per document to a file, ready for a
// bulk loader. Deletes are written as {"id":..., "delete":true}.
type JSONLSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	enc  *json.Encoder
	path string
}

type jsonlDelete struct {
	ID     string `json:"id"`
	Delete bool   `json:"delete"`
}

// NewJSONLSink truncates path and opens it for writing.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLSink{f: f, w: w, enc: enc, path: path}, nil
}

// flat turns a Document into {"id": ..., field: value-or-values}.
func flat(d *Document) map[string]any {
	out := make(map[string]any, len(d.Fields)+1)
	for name, values := range d.Fields {
		if len(values) == 1 {
			out[name] = values[0]
		} else if len(values) > 1 {
			out[name] = values
		}
	}
	out["id"] = d.ID
	return out
}

// Write implements Sink.
func (s *JSONLSink) Write(ctx context.Context, docs []*Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errClosed
	}
	for _, d := range docs {
		if err := s.enc.Encode(flat(d)); err != nil {
			return fmt.Errorf("failed to write document %s: %w", d.ID, err)
		}
	}
	return s.w.Flush()
}

// Delete implements Sink.
func (s *JSONLSink) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errClosed
	}
	for _, id := range ids {
		if err := s.enc.Encode(jsonlDelete{ID: id, Delete: true}); err != nil {
			return fmt.Errorf("failed to write delete %s: %w", id, err)
		}
	}
	return s.w.Flush()
}

// Close implements Sink.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	s.f = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

var _ Sink = (*JSONLSink)(nil)
