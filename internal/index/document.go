package index

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/marcindex/internal/callnum"
	"github.com/Aman-CERP/marcindex/internal/extract"
	"github.com/Aman-CERP/marcindex/internal/fulltext"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/metrics"
	"github.com/Aman-CERP/marcindex/internal/store"
	"github.com/Aman-CERP/marcindex/internal/tracker"
)

// Index field names.
const (
	FieldID              = "id"
	FieldTitle           = "title"
	FieldAuthor          = "author"
	FieldPublisher       = "publisher"
	FieldPublishDate     = "publishDate"
	FieldPublishDateSort = "publishDateSort"
	FieldIllustrated     = "illustrated"
	FieldCallNumberSort  = "callnumber-sort"
	FieldCallNumberRaw   = "callnumber-raw"
	FieldDeweyHundreds   = "dewey-hundreds"
	FieldDeweyTens       = "dewey-tens"
	FieldDeweyOnes       = "dewey-ones"
	FieldDeweyFull       = "dewey-full"
	FieldDeweySort       = "dewey-sort"
	FieldDeweySortBrowse = "dewey-sort-browse"
	FieldDeweyRaw        = "dewey-raw"
	FieldTopicFacet      = "topic_facet"
	FieldGenreFacet      = "genre_facet"
	FieldLocationGeo     = "location_geo"
	FieldLongLat         = "long_lat"
	FieldLongLatDisplay  = "long_lat_display"
	FieldFirstIndexed    = "first_indexed"
	FieldLastIndexed     = "last_indexed"
	FieldFulltext        = "fulltext"
)

// DefaultFieldSpecs are the field specs of the spec-driven fields. Every
// entry can be replaced through the "fields" config section.
var DefaultFieldSpecs = map[string]string{
	FieldTitle:          "245ab",
	FieldAuthor:         "100abcd",
	FieldCallNumberSort: "099ab:090ab:050ab",
	FieldCallNumberRaw:  "050ab:090ab:099ab",
	FieldDeweyRaw:       "082a:083a",
	FieldTopicFacet:     "600x:610x:611x:630x:648x:650a:650x:651x:655x",
	FieldGenreFacet:     "655a:655v:650v:651v:600v:610v:611v:630v:648v",
}

// Builder turns records into index documents.
// It is safe for concurrent use when its tracker and harvester are.
type Builder struct {
	specs     map[string]string
	idSpec    string
	core      string
	callTypes CallNumberTypes
	tracker   *tracker.Tracker
	harvester *fulltext.Harvester
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// CallNumberTypes selects call numbers from holdings fields that mark their
// scheme in a type subfield, e.g. 952 $w "LC". The zero value disables it.
type CallNumberTypes struct {
	// Spec lists the holdings fields and the subfields joined into the call
	// number. Empty uses the callnumber-sort spec.
	Spec     string
	Subfield byte
	LC       string
	Dewey    string
}

// Enabled reports whether a type subfield and at least one type code are set.
func (c CallNumberTypes) Enabled() bool {
	return c.Subfield != 0 && (c.LC != "" || c.Dewey != "")
}

// BuilderConfig configures a Builder. Tracker, Harvester, Metrics and
// CallNumberTypes are optional.
type BuilderConfig struct {
	Core            string
	IDSpec          string
	Fields          map[string]string
	CallNumberTypes CallNumberTypes
	Tracker   *tracker.Tracker
	Harvester *fulltext.Harvester
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

// NewBuilder creates a Builder, layering cfg.Fields over DefaultFieldSpecs.
// Overrides for fields that are not spec-driven are ignored with a warning.
func NewBuilder(cfg BuilderConfig) *Builder {
	b := &Builder{
		specs:     make(map[string]string, len(DefaultFieldSpecs)),
		idSpec:    cfg.IDSpec,
		core:      cfg.Core,
		callTypes: cfg.CallNumberTypes,
		tracker:   cfg.Tracker,
		harvester: cfg.Harvester,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if b.idSpec == "" {
		b.idSpec = tracker.DefaultIDSpec
	}
	if b.core == "" {
		b.core = tracker.DefaultCore
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	for name, spec := range DefaultFieldSpecs {
		b.specs[name] = spec
	}
	if !b.callTypes.Enabled() {
		b.callTypes = CallNumberTypes{}
	}

	names := make([]string, 0, len(cfg.Fields))
	for name := range cfg.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := b.specs[name]; !ok {
			b.logger.Warn("field_override_ignored", slog.String("field", name))
			continue
		}
		b.specs[name] = cfg.Fields[name]
	}
	return b
}

// Spec returns the field spec used for an index field.
func (b *Builder) Spec(field string) string {
	return b.specs[field]
}

// IDSpec returns the field spec that selects record identifiers.
func (b *Builder) IDSpec() string {
	return b.idSpec
}

// Result is the outcome of building one record.
type Result struct {
	Document *store.Document
	// Status is empty when no tracker is configured.
	Status tracker.Status
}

// ErrNoID is returned for records whose id spec selects nothing.
var ErrNoID = errors.New("record has no identifier")

// Build extracts every index field from rec. Extractor anomalies never fail
// a record; tracker errors are returned so the caller can decide whether
// the run can go on.
func (b *Builder) Build(ctx context.Context, rec *marc.Record) (Result, error) {
	id, ok := rec.FirstFieldVal(b.idSpec)
	if !ok || id == "" {
		return Result{}, ErrNoID
	}

	doc := &store.Document{ID: id}
	doc.Add(FieldID, id)
	doc.Add(FieldTitle, extract.NormalizeTrailingPunctuation(rec, b.specs[FieldTitle])...)
	doc.Add(FieldAuthor, extract.NormalizeTrailingPunctuation(rec, b.specs[FieldAuthor])...)
	doc.Add(FieldPublisher, extract.Publishers(rec)...)
	doc.Add(FieldPublishDate, extract.Dates(rec)...)
	if d, ok := extract.FirstDate(rec); ok {
		doc.Add(FieldPublishDateSort, d)
	}
	doc.Add(FieldIllustrated, extract.IsIllustrated(rec))

	doc.Add(FieldCallNumberSort, b.callNumberSort(rec))
	doc.Add(FieldCallNumberRaw, rec.FieldList(b.specs[FieldCallNumberRaw]).Values()...)
	if b.callTypes.LC != "" {
		doc.Add(FieldCallNumberRaw, extract.CallNumberByType(rec, b.typedSpec(), b.callTypes.Subfield, b.callTypes.LC)...)
	}

	dewey := b.specs[FieldDeweyRaw]
	doc.Add(FieldDeweyHundreds, extract.DeweyNumber(rec, dewey, "100")...)
	doc.Add(FieldDeweyTens, extract.DeweyNumber(rec, dewey, "10")...)
	doc.Add(FieldDeweyOnes, extract.DeweyNumber(rec, dewey, "1")...)
	doc.Add(FieldDeweyFull, extract.DeweySearchable(rec, dewey)...)
	if s, ok := b.deweySort(rec); ok {
		doc.Add(FieldDeweySort, s)
	}
	doc.Add(FieldDeweySortBrowse, extract.DeweySortables(rec, dewey)...)
	if b.callTypes.Dewey != "" {
		for _, v := range extract.CallNumberByTypeAsList(rec, b.typedSpec(), b.callTypes.Subfield, b.callTypes.Dewey) {
			doc.Add(FieldDeweySortBrowse, callnum.NewDewey(v).ShelfKey())
		}
	}
	doc.Add(FieldDeweyRaw, rec.FieldList(dewey).Values()...)

	doc.Add(FieldTopicFacet, extract.NormalizeTrailingPunctuation(rec, b.specs[FieldTopicFacet])...)
	doc.Add(FieldGenreFacet, extract.NormalizeTrailingPunctuation(rec, b.specs[FieldGenreFacet])...)

	doc.Add(FieldLocationGeo, extract.AllCoordinates(rec)...)
	doc.Add(FieldLongLat, extract.PointCoordinates(rec)...)
	doc.Add(FieldLongLatDisplay, extract.DisplayCoordinates(rec)...)

	res := Result{Document: doc}
	if b.tracker != nil {
		entry, status, err := b.tracker.Index(ctx, b.core, id, tracker.LatestTransaction(rec))
		if err != nil {
			return Result{}, err
		}
		doc.Add(FieldFirstIndexed, tracker.FormatTimestamp(entry.FirstIndexed))
		doc.Add(FieldLastIndexed, tracker.FormatTimestamp(entry.LastIndexed))
		res.Status = status
		if b.metrics != nil {
			b.metrics.Tracked(b.core, string(status))
		}
	}

	if b.harvester != nil && b.harvester.Enabled() {
		text, _ := b.harvester.Harvest(ctx, rec)
		doc.Add(FieldFulltext, text)
		if b.metrics != nil {
			b.metrics.Harvested(string(b.harvester.Backend()), text != "")
		}
	}

	return res, nil
}

// typedSpec is the holdings spec searched for typed call numbers.
func (b *Builder) typedSpec() string {
	if b.callTypes.Spec != "" {
		return b.callTypes.Spec
	}
	return b.specs[FieldCallNumberSort]
}

// callNumberSort prefers a holdings call number typed as LC and falls back
// to the bibliographic call number fields.
func (b *Builder) callNumberSort(rec *marc.Record) string {
	if b.callTypes.LC != "" {
		if key, ok := extract.LCSortableByType(rec, b.typedSpec(), b.callTypes.Subfield, b.callTypes.LC); ok {
			return key
		}
	}
	return extract.LCSortable(rec, b.specs[FieldCallNumberSort])
}

func (b *Builder) deweySort(rec *marc.Record) (string, bool) {
	if b.callTypes.Dewey != "" {
		if key, ok := extract.DeweySortableByType(rec, b.typedSpec(), b.callTypes.Subfield, b.callTypes.Dewey); ok {
			return key, true
		}
	}
	return extract.DeweySortable(rec, b.specs[FieldDeweyRaw])
}

// IsDeleted reports whether the leader marks rec as a deletion (leader/05 "d").
func IsDeleted(rec *marc.Record) bool {
	return rec.LeaderAt(5) == 'd'
}

// Delete resolves the identifier of a deletion record and flags it in the
// tracker, when one is configured.
func (b *Builder) Delete(ctx context.Context, rec *marc.Record) (string, error) {
	id, ok := rec.FirstFieldVal(b.idSpec)
	if !ok || id == "" {
		return "", ErrNoID
	}
	if b.tracker != nil {
		if _, err := b.tracker.MarkDeleted(ctx, b.core, id); err != nil {
			return id, err
		}
	}
	return id, nil
}
