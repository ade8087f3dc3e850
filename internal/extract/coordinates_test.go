package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/marcindex/internal/geo"
	"github.com/Aman-CERP/marcindex/internal/marc"
)

func mapRecord(subs ...marc.Subfield) *marc.Record {
	return marc.NewRecord("00000nem a2200000 a 4500").AddDataField("034", '1', ' ', subs...)
}

func TestAllCoordinates(t *testing.T) {
	rec := mapRecord(
		marc.Sub('a', "a"),
		marc.Sub('d', "W0790000"), marc.Sub('e', "W0783000"),
		marc.Sub('f', "N0450000"), marc.Sub('g', "N0440000"))

	assert.Equal(t, []string{"ENVELOPE(-79.0,-78.5,45.0,44.0)"}, AllCoordinates(rec))
}

func TestAllCoordinates_PointMirrored(t *testing.T) {
	rec := mapRecord(marc.Sub('d', "+10.5"), marc.Sub('f', "-20"))
	assert.Equal(t, []string{"ENVELOPE(10.5,10.5,-20.0,-20.0)"}, AllCoordinates(rec))

	envs := Envelopes(rec)
	require.Len(t, envs, 1)
	assert.True(t, envs[0].IsPoint())
}

func TestAllCoordinates_RejectsInvalid(t *testing.T) {
	tests := []*marc.Record{
		mapRecord(marc.Sub('d', "E010"), marc.Sub('e', "W010"), marc.Sub('f', "N10"), marc.Sub('g', "S10")),
		mapRecord(marc.Sub('d', "W010"), marc.Sub('e', "E010"), marc.Sub('f', "S10"), marc.Sub('g', "N10")),
		mapRecord(marc.Sub('d', "garbage"), marc.Sub('e', "E010"), marc.Sub('f', "N10"), marc.Sub('g', "S10")),
		mapRecord(marc.Sub('d', "W010")),
	}
	for _, rec := range tests {
		assert.Nil(t, AllCoordinates(rec))
	}
}

func TestAllCoordinates_RoundTrip(t *testing.T) {
	rec := mapRecord(
		marc.Sub('d', "W0790530"), marc.Sub('e', "W0783015"),
		marc.Sub('f', "N0451045"), marc.Sub('g', "N0440001"))

	envs := Envelopes(rec)
	require.Len(t, envs, 1)

	parsed, err := geo.ParseEnvelope(AllCoordinates(rec)[0])
	require.NoError(t, err)
	assert.InDelta(t, envs[0].West, parsed.West, 1e-9)
	assert.InDelta(t, envs[0].East, parsed.East, 1e-9)
	assert.InDelta(t, envs[0].North, parsed.North, 1e-9)
	assert.InDelta(t, envs[0].South, parsed.South, 1e-9)
}

func TestPointCoordinates(t *testing.T) {
	onlyWestNorth := mapRecord(marc.Sub('d', "W079"), marc.Sub('f', "N45"))
	assert.Equal(t, []string{"-79.0,45.0"}, PointCoordinates(onlyWestNorth))

	onlyEastSouth := mapRecord(marc.Sub('e', "E010"), marc.Sub('g', "S05"))
	assert.Equal(t, []string{"10.0,-5.0"}, PointCoordinates(onlyEastSouth))

	degenerate := mapRecord(marc.Sub('d', "+1"), marc.Sub('e', "+1"), marc.Sub('f', "+2"), marc.Sub('g', "+2"))
	assert.Equal(t, []string{"1.0,2.0"}, PointCoordinates(degenerate))

	box := mapRecord(marc.Sub('d', "+1"), marc.Sub('e', "+3"), marc.Sub('f', "+4"), marc.Sub('g', "+2"))
	assert.Nil(t, PointCoordinates(box))
}

func TestDisplayCoordinates(t *testing.T) {
	rec := mapRecord(marc.Sub('d', "W079"), marc.Sub('e', "W078"), marc.Sub('f', "N45"), marc.Sub('g', "N44"))
	assert.Equal(t, []string{"W079 W078 N45 N44"}, DisplayCoordinates(rec))

	assert.Nil(t, DisplayCoordinates(mapRecord(marc.Sub('a', "a"))))
}
