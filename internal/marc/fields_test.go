package marc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	return NewRecord("00000nam a2200000 a 4500").
		AddControlField("001", "u1").
		AddControlField("008", "850101s1985    nyua          000 0 eng d").
		AddDataField("100", '1', ' ', Sub('a', "Smith, John."), Sub('d', "1950-")).
		AddDataField("245", '1', '0', Sub('a', "Maps of the world /"), Sub('c', "Smith.")).
		AddDataField("650", ' ', '0', Sub('a', "Cartography."), Sub('a', "Atlases.")).
		AddDataField("650", ' ', '0', Sub('a', "Cartography.")).
		AddDataField("700", '1', ' ', Sub('a', "Doe, Jane."))
}

func TestParseSpec(t *testing.T) {
	specs := ParseSpec("100a:245ab:008[7-10]")
	require.Len(t, specs, 3)

	assert.Equal(t, "100", specs[0].Tag)
	assert.Equal(t, "a", specs[0].Codes)
	assert.False(t, specs[0].HasRange())

	assert.Equal(t, "245", specs[1].Tag)
	assert.Equal(t, "ab", specs[1].Codes)

	assert.Equal(t, "008", specs[2].Tag)
	assert.Equal(t, 7, specs[2].Start)
	assert.Equal(t, 10, specs[2].End)
}

func TestParseSpec_SkipsShortTokens(t *testing.T) {
	specs := ParseSpec("10:700a:x")
	require.Len(t, specs, 1)
	assert.Equal(t, "700", specs[0].Tag)
}

func TestParseSpec_Cached(t *testing.T) {
	first := ParseSpec("650a:651a")
	second := ParseSpec("650a:651a")
	assert.Equal(t, first, second)
	assert.True(t, specCache.Contains("650a:651a"))
}

func TestFieldList(t *testing.T) {
	rec := sampleRecord()

	tests := []struct {
		name string
		spec string
		want []string
	}{
		{"control field", "001", []string{"u1"}},
		{"control range", "008[7-10]", []string{"1985"}},
		{"single code per occurrence, deduplicated", "650a", []string{"Cartography.", "Atlases."}},
		{"multiple codes joined", "245ac", []string{"Maps of the world / Smith."}},
		{"all subfields", "100", []string{"Smith, John. 1950-"}},
		{"multiple tokens", "100a:700a", []string{"Smith, John.", "Doe, Jane."}},
		{"missing tag", "999a", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.FieldList(tt.spec).Values())
		})
	}
}

func TestFirstFieldVal(t *testing.T) {
	rec := sampleRecord()

	v, ok := rec.FirstFieldVal("001")
	assert.True(t, ok)
	assert.Equal(t, "u1", v)

	_, ok = rec.FirstFieldVal("035a")
	assert.False(t, ok)
}

func TestSubfieldsAsString(t *testing.T) {
	f := Field{Tag: "099", Subfields: []Subfield{Sub('a', "QA76"), Sub('b', ".C65"), Sub('w', "LC")}}
	assert.Equal(t, "QA76 .C65", f.SubfieldsAsString("ab"))
	assert.Equal(t, "QA76 .C65 LC", f.SubfieldsAsString(""))
}

func TestSet(t *testing.T) {
	s := NewSet("b", "a", "b")
	assert.Equal(t, []string{"b", "a"}, s.Values())
	assert.True(t, s.Contains("a"))
	assert.False(t, s.Add("a"))
	assert.Equal(t, 2, s.Len())
}

func TestLeaderAt(t *testing.T) {
	rec := NewRecord("00000nam")
	assert.Equal(t, byte('a'), rec.LeaderAt(6))
	assert.Equal(t, byte(0), rec.LeaderAt(20))
}
