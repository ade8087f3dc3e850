package extract

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

// 264 second indicator values that carry publication data.
const (
	ind2Publication = '1'
	ind2Copyright   = '4'
)

// Publishers returns publisher names from 260$b followed by 264$b.
// Among 264 fields, publication statements (ind2=1) win over copyright
// statements (ind2=4); other 264 functions are ignored.
func Publishers(rec *marc.Record) []string {
	joined := func(f marc.Field) []string {
		s := strings.TrimSpace(strings.Join(trimAll(f.SubfieldValues('b')), " "))
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return rdaGated(rec, joined)
}

// Dates returns cleaned publication years from 260$c and 264$c with the same
// indicator gating as Publishers. Values that do not clean to a year are dropped.
func Dates(rec *marc.Record) []string {
	cleaned := func(f marc.Field) []string {
		var out []string
		for _, raw := range f.SubfieldValues('c') {
			if d, ok := CleanDate(raw); ok {
				out = append(out, d)
			} else {
				slog.Debug("date_dropped", slog.String("tag", f.Tag), slog.String("value", raw))
			}
		}
		return out
	}
	return rdaGated(rec, cleaned)
}

// rdaGated collects values from every 260, then from the preferred 264 group.
func rdaGated(rec *marc.Record, values func(marc.Field) []string) []string {
	result := marc.NewSet()
	for _, f := range rec.FieldsByTag("260") {
		result.AddAll(values(f)...)
	}

	pub, copyright := marc.NewSet(), marc.NewSet()
	for _, f := range rec.FieldsByTag("264") {
		switch f.Ind2 {
		case ind2Publication:
			pub.AddAll(values(f)...)
		case ind2Copyright:
			copyright.AddAll(values(f)...)
		}
	}
	if pub.Len() > 0 {
		result.AddAll(pub.Values()...)
	} else {
		result.AddAll(copyright.Values()...)
	}
	return nonEmpty(result)
}

// FirstDate returns the numerically smallest year in Dates.
// Values that are not integers are skipped.
func FirstDate(rec *marc.Record) (string, bool) {
	var (
		best    string
		bestVal int
	)
	for _, d := range Dates(rec) {
		v, err := strconv.Atoi(d)
		if err != nil {
			slog.Debug("first_date_skipped", slog.String("value", d))
			continue
		}
		if best == "" || v < bestVal {
			best, bestVal = d, v
		}
	}
	return best, best != ""
}

// earliestYear bounds plausible publication years from below.
const earliestYear = 500

var (
	bracketedYear  = regexp.MustCompile(`\[([12]\d{3})\]`)
	correctedYear  = regexp.MustCompile(`i\.\s*e\.?\s*,?\s*(\d{4})`)
	openBracket    = regexp.MustCompile(`\[([12]\d{3})`)
	plainYear      = regexp.MustCompile(`((?:20|19|18|17|16|15)\d{2})`)
	letterLYear    = regexp.MustCompile(`l(\d{3})`)
	bracketCentury = regexp.MustCompile(`\[19\](\d{2})`)
	decadeOnly     = regexp.MustCompile(`((?:20|19|18|17|16|15)\d)[-?u]`)
)

// CleanDate reduces a transcribed date ("[1985?]", "c1999", "198-",
// "1883 [i.e. 1884]") to a bare four-digit year.
func CleanDate(raw string) (string, bool) {
	return cleanDate(raw, time.Now().Year()+1)
}

func cleanDate(raw string, latestYear int) (string, bool) {
	s := strings.TrimSpace(raw)
	var year string
	switch {
	case bracketedYear.MatchString(s):
		year = bracketedYear.FindStringSubmatch(s)[1]
	case correctedYear.MatchString(s):
		year = correctedYear.FindStringSubmatch(s)[1]
	case openBracket.MatchString(s):
		year = openBracket.FindStringSubmatch(s)[1]
	case plainYear.MatchString(s):
		year = plainYear.FindStringSubmatch(s)[1]
	case letterLYear.MatchString(s):
		// "l" typed for "1"
		year = "1" + letterLYear.FindStringSubmatch(s)[1]
	case bracketCentury.MatchString(s):
		year = "19" + bracketCentury.FindStringSubmatch(s)[1]
	case decadeOnly.MatchString(s):
		year = decadeOnly.FindStringSubmatch(s)[1] + "0"
	default:
		return "", false
	}

	v, err := strconv.Atoi(year)
	if err != nil || v < earliestYear || v > latestYear {
		return "", false
	}
	return year, true
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// nonEmpty converts a set to a slice, mapping empty to nil.
func nonEmpty(s *marc.Set) []string {
	if s.Len() == 0 {
		return nil
	}
	return s.Values()
}
