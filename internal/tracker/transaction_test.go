package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

func TestLatestTransaction(t *testing.T) {
	tests := []struct {
		name string
		f005 string
		f008 string
		want time.Time
	}{
		{"005 with fraction", "20230405101112.0", "850101s1985", time.Date(2023, 4, 5, 10, 11, 12, 0, time.UTC)},
		{"bad 005 falls to 008", "garbage", "850101s1985", time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"008 recent century", "", "120315s2012", time.Date(2012, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"nothing usable", "", "xx", Epoch},
		{"no fields", "", "", Epoch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := marc.NewRecord("")
			if tt.f005 != "" {
				rec.AddControlField("005", tt.f005)
			}
			if tt.f008 != "" {
				rec.AddControlField("008", tt.f008)
			}
			assert.Equal(t, tt.want, LatestTransaction(rec))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 1, 7, 8, 9, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2024-03-01T06:08:09Z", FormatTimestamp(ts))
}
