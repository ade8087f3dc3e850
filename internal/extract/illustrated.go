package extract

import (
	"strings"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

// Illustration facet values.
const (
	Illustrated    = "Illustrated"
	NotIllustrated = "Not Illustrated"
)

// illustrationCodes are the 008/18-21 (and 006/01-04) codes that mean the
// item has illustrations.
const illustrationCodes = "abcdefghijklmop"

// IsIllustrated inspects the fixed fields of language material and the
// 300$b physical description.
func IsIllustrated(rec *marc.Record) string {
	if rec.LeaderAt(6) == 'a' {
		if data, ok := rec.ControlField("008"); ok && hasIllustrationCode(data, 18, 21) {
			return Illustrated
		}
		for _, f := range rec.FieldsByTag("006") {
			if hasIllustrationCode(f.Data, 1, 4) {
				return Illustrated
			}
		}
	}

	for _, f := range rec.FieldsByTag("300") {
		for _, desc := range f.SubfieldValues('b') {
			desc = strings.ToLower(desc)
			if strings.Contains(desc, "ill.") || strings.Contains(desc, "illus.") {
				return Illustrated
			}
		}
	}
	return NotIllustrated
}

// hasIllustrationCode checks positions from..to inclusive. Positions past the
// end of data are ignored.
func hasIllustrationCode(data string, from, to int) bool {
	data = strings.ToLower(data)
	for i := from; i <= to && i < len(data); i++ {
		if strings.IndexByte(illustrationCodes, data[i]) >= 0 {
			return true
		}
	}
	return false
}
