package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/marcindex/internal/geo"
)

const (
	// TextAnalyzerName folds diacritics so "Muller" finds "Müller".
	TextAnalyzerName = "marc_text"

	// GeoPointField holds "lon,lat" points and is indexed as a geopoint.
	GeoPointField = "long_lat"
)

// keywordFields are indexed verbatim: identifiers, sort keys, facets, dates.
var keywordFields = []string{
	"id",
	"callnumber-sort",
	"callnumber-raw",
	"dewey-hundreds",
	"dewey-tens",
	"dewey-ones",
	"dewey-full",
	"dewey-sort",
	"dewey-sort-browse",
	"dewey-raw",
	"illustrated",
	"publishDate",
	"publishDateSort",
	"topic_facet",
	"genre_facet",
	"first_indexed",
	"last_indexed",
	"location_geo",
	"long_lat_display",
}

var errClosed = errors.New("index is closed")

// BleveIndex is a local full-text index of built documents.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// validateIndexIntegrity checks index_meta.json before opening, so a
// half-written index is rebuilt instead of failing every run.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveIndex opens or creates the index at path. An empty path creates
// an in-memory index. A corrupted index is removed and recreated empty;
// the next full run repopulates it.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("search_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]any{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	doc := bleve.NewDocumentMapping()
	for _, name := range keywordFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		doc.AddFieldMappingsAt(name, fm)
	}
	doc.AddFieldMappingsAt(GeoPointField, bleve.NewGeoPointFieldMapping())
	indexMapping.DefaultMapping = doc

	return indexMapping, nil
}

// toBleve flattens a Document into the shape bleve maps: one string for a
// single value, a slice otherwise, and a lon/lat object for the geopoint.
func toBleve(d *Document) map[string]any {
	out := make(map[string]any, len(d.Fields)+1)
	out["id"] = d.ID
	for name, values := range d.Fields {
		if len(values) == 0 {
			continue
		}
		if name == GeoPointField {
			p, err := geo.ParsePoint(values[0])
			if err != nil {
				slog.Debug("geopoint_skipped", slog.String("id", d.ID), slog.String("value", values[0]))
				continue
			}
			out[name] = map[string]any{"lon": p.Lon, "lat": p.Lat}
			continue
		}
		if len(values) == 1 {
			out[name] = values[0]
		} else {
			out[name] = values
		}
	}
	return out
}

// Write implements Sink.
func (b *BleveIndex) Write(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, toBleve(doc)); err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Delete implements Sink.
func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Search runs a query-string query ("title:weather", "+author:smith").
// An empty query matches everything.
func (b *BleveIndex) Search(ctx context.Context, q string, opts SearchOptions) ([]Hit, uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, 0, errClosed
	}

	var qq query.Query
	if strings.TrimSpace(q) == "" {
		qq = bleve.NewMatchAllQuery()
	} else {
		qq = bleve.NewQueryStringQuery(q)
	}
	if opts.BBox != nil {
		bbox := bleve.NewGeoBoundingBoxQuery(opts.BBox.West, opts.BBox.North, opts.BBox.East, opts.BBox.South)
		bbox.SetField(GeoPointField)
		qq = bleve.NewConjunctionQuery(qq, bbox)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(qq, limit, 0, false)
	req.Fields = opts.Fields
	if len(req.Fields) == 0 {
		req.Fields = []string{"*"}
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return hits, res.Total, nil
}

// Get returns the stored fields of one document.
func (b *BleveIndex) Get(ctx context.Context, id string) (Hit, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return Hit{}, false, errClosed
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
	req.Fields = []string{"*"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return Hit{}, false, fmt.Errorf("lookup failed: %w", err)
	}
	if len(res.Hits) == 0 {
		return Hit{}, false, nil
	}
	h := res.Hits[0]
	return Hit{ID: h.ID, Score: h.Score, Fields: h.Fields}, true, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, errClosed
	}
	return b.index.DocCount()
}

// Close implements Sink.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

var _ Sink = (*BleveIndex)(nil)
