package index

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/marcindex/internal/extract"
	"github.com/Aman-CERP/marcindex/internal/fulltext"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/tracker"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(t *testing.T) (*tracker.Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "tracker.db")
	tr, err := tracker.New("sqlite://"+path, tracker.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, clock
}

// atlas is a map record with a Dewey number, an LC call number and a
// bounding box.
func atlas(id string) *marc.Record {
	return marc.NewRecord("00000cem a2200000 a 4500").
		AddControlField("001", id).
		AddControlField("005", "20200115103000.0").
		AddControlField("008", "200115s1999    nyua          000 0 eng d").
		AddDataField("034", '1', ' ',
			marc.Sub('a', "a"),
			marc.Sub('d', "W0950000"), marc.Sub('e', "W0940000"),
			marc.Sub('f', "N0450000"), marc.Sub('g', "N0440000")).
		AddDataField("050", '0', '0', marc.Sub('a', "G1425"), marc.Sub('b', ".M5 1999")).
		AddDataField("082", '0', '4', marc.Sub('a', "912.776")).
		AddDataField("100", '1', ' ', marc.Sub('a', "Smith, John,"), marc.Sub('d', "1950-")).
		AddDataField("245", '1', '0', marc.Sub('a', "Atlas of Minnesota /"), marc.Sub('c', "John Smith.")).
		AddDataField("260", ' ', ' ', marc.Sub('a', "St. Paul :"), marc.Sub('b', "North Star Press,"), marc.Sub('c', "1999.")).
		AddDataField("650", ' ', '0', marc.Sub('a', "Minnesota"), marc.Sub('v', "Maps.")).
		AddDataField("651", ' ', '0', marc.Sub('a', "Minnesota"), marc.Sub('x', "History.")).
		AddDataField("655", ' ', '7', marc.Sub('a', "Atlases."))
}

func TestBuilder_Build_ExtractsFields(t *testing.T) {
	rec := atlas("map1")
	b := NewBuilder(BuilderConfig{})

	res, err := b.Build(context.Background(), rec)
	require.NoError(t, err)
	doc := res.Document
	require.NotNil(t, doc)

	assert.Equal(t, "map1", doc.ID)
	assert.Equal(t, []string{"map1"}, doc.Fields[FieldID])
	assert.Equal(t, extract.NormalizeTrailingPunctuation(rec, "245ab"), doc.Fields[FieldTitle])
	assert.Equal(t, extract.NormalizeTrailingPunctuation(rec, "100abcd"), doc.Fields[FieldAuthor])
	assert.Equal(t, extract.Publishers(rec), doc.Fields[FieldPublisher])
	assert.Equal(t, extract.Dates(rec), doc.Fields[FieldPublishDate])
	assert.Equal(t, extract.IsIllustrated(rec), doc.First(FieldIllustrated))

	assert.Equal(t, []string{"900.000"}, doc.Fields[FieldDeweyHundreds])
	assert.Equal(t, []string{"910.000"}, doc.Fields[FieldDeweyTens])
	assert.Equal(t, []string{"912.000"}, doc.Fields[FieldDeweyOnes])
	assert.Equal(t, []string{"912.776"}, doc.Fields[FieldDeweyFull])
	assert.Equal(t, []string{"912.776"}, doc.Fields[FieldDeweyRaw])
	assert.NotEmpty(t, doc.First(FieldDeweySort))
	assert.Len(t, doc.Fields[FieldDeweySortBrowse], 1)

	assert.Equal(t, []string{"G1425 .M5 1999"}, doc.Fields[FieldCallNumberRaw])
	assert.Equal(t, extract.LCSortable(rec, "099ab:090ab:050ab"), doc.First(FieldCallNumberSort))

	assert.Contains(t, doc.Fields[FieldTopicFacet], "History")
	assert.Contains(t, doc.Fields[FieldGenreFacet], "Atlases")
	assert.Contains(t, doc.Fields[FieldGenreFacet], "Maps")

	require.Len(t, doc.Fields[FieldLocationGeo], 1)
	assert.Equal(t, extract.AllCoordinates(rec), doc.Fields[FieldLocationGeo])
	assert.Equal(t, []string{"W0950000 W0940000 N0450000 N0440000"}, doc.Fields[FieldLongLatDisplay])
	assert.Empty(t, doc.Fields[FieldLongLat], "a box is not a point")

	// no tracker, no harvester
	assert.Empty(t, res.Status)
	assert.NotContains(t, doc.Fields, FieldFirstIndexed)
	assert.NotContains(t, doc.Fields, FieldFulltext)
}

func TestBuilder_Build_TracksChanges(t *testing.T) {
	tr, clock := newTestTracker(t)
	ctx := context.Background()
	b := NewBuilder(BuilderConfig{Tracker: tr})
	first := tracker.FormatTimestamp(clock.Now())

	// Given: a record seen for the first time
	res, err := b.Build(ctx, atlas("map1"))
	require.NoError(t, err)
	assert.Equal(t, tracker.StatusNew, res.Status)
	assert.Equal(t, []string{first}, res.Document.Fields[FieldFirstIndexed])
	assert.Equal(t, []string{first}, res.Document.Fields[FieldLastIndexed])

	// When: the same version is indexed an hour later
	clock.Advance(time.Hour)
	res, err = b.Build(ctx, atlas("map1"))
	require.NoError(t, err)

	// Then: nothing moves
	assert.Equal(t, tracker.StatusUnchanged, res.Status)
	assert.Equal(t, []string{first}, res.Document.Fields[FieldLastIndexed])

	// When: the record changes
	clock.Advance(time.Hour)
	changed := atlas("map1")
	changed.Fields[1].Data = "20230601000000.0"
	res, err = b.Build(ctx, changed)
	require.NoError(t, err)

	// Then: last_indexed moves, first_indexed stays
	assert.Equal(t, tracker.StatusChanged, res.Status)
	assert.Equal(t, []string{first}, res.Document.Fields[FieldFirstIndexed])
	assert.Equal(t, []string{tracker.FormatTimestamp(clock.Now())}, res.Document.Fields[FieldLastIndexed])
}

func TestBuilder_Build_ClosedTracker(t *testing.T) {
	tr, _ := newTestTracker(t)
	require.NoError(t, tr.Close())
	b := NewBuilder(BuilderConfig{Tracker: tr})

	_, err := b.Build(context.Background(), atlas("map1"))
	assert.ErrorIs(t, err, tracker.ErrClosed)
}

func TestBuilder_Build_NoID(t *testing.T) {
	rec := marc.NewRecord("00000nam a2200000 a 4500").
		AddDataField("245", '0', '0', marc.Sub('a', "Untitled."))
	b := NewBuilder(BuilderConfig{})

	_, err := b.Build(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNoID)
}

func TestBuilder_Build_CustomIDSpec(t *testing.T) {
	rec := atlas("ignored").AddDataField("035", ' ', ' ', marc.Sub('a', "(OCoLC)123"))
	b := NewBuilder(BuilderConfig{IDSpec: "035a"})

	res, err := b.Build(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "(OCoLC)123", res.Document.ID)
}

func TestBuilder_Build_DisabledHarvester(t *testing.T) {
	b := NewBuilder(BuilderConfig{Harvester: fulltext.New(fulltext.Config{})})

	res, err := b.Build(context.Background(), atlas("map1"))
	require.NoError(t, err)
	assert.NotContains(t, res.Document.Fields, FieldFulltext)
}

func TestBuilder_Build_TypedCallNumbers(t *testing.T) {
	// Given: a record whose holdings mark the scheme of each call number
	rec := atlas("map2").
		AddDataField("952", ' ', ' ', marc.Sub('a', "912.7"), marc.Sub('b', "M66"), marc.Sub('w', "1")).
		AddDataField("952", ' ', ' ', marc.Sub('a', "G1426"), marc.Sub('b', ".A1"), marc.Sub('w', "0"))
	b := NewBuilder(BuilderConfig{CallNumberTypes: CallNumberTypes{
		Spec: "952ab", Subfield: 'w', LC: "0", Dewey: "1",
	}})

	// When: it is built
	res, err := b.Build(context.Background(), rec)
	require.NoError(t, err)

	// Then: the sort keys come from the typed holdings, not 050/082
	doc := res.Document
	lc, ok := extract.LCSortableByType(rec, "952ab", 'w', "0")
	require.True(t, ok)
	assert.Equal(t, lc, doc.First(FieldCallNumberSort))
	assert.NotEqual(t, extract.LCSortable(rec, "050ab"), doc.First(FieldCallNumberSort))
	assert.Equal(t, "912.7 M66", doc.First(FieldDeweySort))

	// And: typed holdings are added to the raw and browse fields
	assert.Equal(t, []string{"G1425 .M5 1999", "G1426 .A1"}, doc.Fields[FieldCallNumberRaw])
	assert.Equal(t, []string{"912.776", "912.7 M66"}, doc.Fields[FieldDeweySortBrowse])
	assert.Equal(t, []string{"912.776"}, doc.Fields[FieldDeweyRaw])
}

func TestBuilder_Build_TypedCallNumbersFallBack(t *testing.T) {
	// no 952 in the record: the untyped keys are used
	rec := atlas("map3")
	b := NewBuilder(BuilderConfig{CallNumberTypes: CallNumberTypes{
		Spec: "952ab", Subfield: 'w', LC: "0", Dewey: "1",
	}})

	res, err := b.Build(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, extract.LCSortable(rec, DefaultFieldSpecs[FieldCallNumberSort]), res.Document.First(FieldCallNumberSort))
	key, ok := extract.DeweySortable(rec, DefaultFieldSpecs[FieldDeweyRaw])
	require.True(t, ok)
	assert.Equal(t, key, res.Document.First(FieldDeweySort))
}

func TestCallNumberTypes_Enabled(t *testing.T) {
	assert.False(t, CallNumberTypes{}.Enabled())
	assert.False(t, CallNumberTypes{Subfield: 'w'}.Enabled())
	assert.False(t, CallNumberTypes{LC: "0"}.Enabled())
	assert.True(t, CallNumberTypes{Subfield: 'w', Dewey: "1"}.Enabled())
}

func TestNewBuilder_FieldOverrides(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	b := NewBuilder(BuilderConfig{
		Fields: map[string]string{
			FieldTitle: "245a",
			"format":   "000[6]",
		},
		Logger: logger,
	})

	assert.Equal(t, "245a", b.Spec(FieldTitle))
	assert.Equal(t, DefaultFieldSpecs[FieldAuthor], b.Spec(FieldAuthor))
	assert.Empty(t, b.Spec("format"))
	assert.Contains(t, logs.String(), "field_override_ignored")
	assert.Contains(t, logs.String(), "field=format")

	// defaults are not modified
	assert.Equal(t, "245ab", DefaultFieldSpecs[FieldTitle])
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := NewBuilder(BuilderConfig{})

	assert.Equal(t, tracker.DefaultIDSpec, b.idSpec)
	assert.Equal(t, tracker.DefaultCore, b.core)
	for field, spec := range DefaultFieldSpecs {
		assert.Equal(t, spec, b.Spec(field), field)
	}
}

func TestIsDeleted(t *testing.T) {
	assert.True(t, IsDeleted(marc.NewRecord("00000dam a2200000 a 4500")))
	assert.False(t, IsDeleted(marc.NewRecord("00000cam a2200000 a 4500")))
	assert.False(t, IsDeleted(marc.NewRecord("")))
}

func TestBuilder_Delete(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()
	b := NewBuilder(BuilderConfig{Tracker: tr})

	_, err := b.Build(ctx, atlas("map1"))
	require.NoError(t, err)

	gone := marc.NewRecord("00000dem a2200000 a 4500").AddControlField("001", "map1")
	id, err := b.Delete(ctx, gone)
	require.NoError(t, err)
	assert.Equal(t, "map1", id)

	entry, ok, err := tr.Get(ctx, tracker.DefaultCore, "map1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotNil(t, entry.Deleted)

	// unknown records are not an error
	id, err = b.Delete(ctx, marc.NewRecord("00000dem a2200000 a 4500").AddControlField("001", "never"))
	require.NoError(t, err)
	assert.Equal(t, "never", id)

	_, err = b.Delete(ctx, marc.NewRecord("00000dem a2200000 a 4500"))
	assert.ErrorIs(t, err, ErrNoID)
}
