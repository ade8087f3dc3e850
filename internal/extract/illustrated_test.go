package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

// fixed008 builds a 40-character 008 with illus at positions 18-21.
func fixed008(illus string) string {
	b := []byte("850101s1985    nyu                 eng d")
	copy(b[18:22], illus)
	return string(b)
}

func TestIsIllustrated(t *testing.T) {
	tests := []struct {
		name string
		rec  *marc.Record
		want string
	}{
		{
			name: "008 position 20",
			rec:  book().AddControlField("008", fixed008("  a ")),
			want: Illustrated,
		},
		{
			name: "uppercase code in 008",
			rec:  book().AddControlField("008", fixed008("A   ")),
			want: Illustrated,
		},
		{
			name: "006 positions 1-4",
			rec: book().
				AddControlField("006", "a b").
				AddControlField("008", fixed008("    ")),
			want: Illustrated,
		},
		{
			name: "no codes and plain 300",
			rec: book().
				AddControlField("008", fixed008("    ")).
				AddDataField("300", ' ', ' ', marc.Sub('a', "200 p."), marc.Sub('b', "25 cm.")),
			want: NotIllustrated,
		},
		{
			name: "300$b ill.",
			rec: marc.NewRecord("00000ngm a2200000 a 4500").
				AddDataField("300", ' ', ' ', marc.Sub('b', "col. Ill. ;")),
			want: Illustrated,
		},
		{
			name: "fixed fields ignored for non-language material",
			rec: marc.NewRecord("00000ngm a2200000 a 4500").
				AddControlField("008", fixed008("aaaa")),
			want: NotIllustrated,
		},
		{
			name: "short 008",
			rec:  book().AddControlField("008", "850101"),
			want: NotIllustrated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIllustrated(tt.rec))
		})
	}
}
