package tracker

import (
	"time"

	"github.com/Aman-CERP/marcindex/internal/marc"
)

const (
	layout005 = "20060102150405"
	layout008 = "060102"

	// TimestampLayout is how tracker dates are rendered for index fields.
	TimestampLayout = "2006-01-02T15:04:05Z"

	// storage layout sorts lexically and fits every SQL dialect's VARCHAR.
	storeLayout = "2006-01-02 15:04:05"
)

// Epoch is the transaction date assigned to records without a usable 005 or
// 008, so they compare as maximally old.
var Epoch = time.Unix(0, 0).UTC()

// LatestTransaction returns the record's last-modified date: 005 when it
// parses, else 008/00-05, else Epoch. All results are UTC.
func LatestTransaction(rec *marc.Record) time.Time {
	if v, ok := rec.ControlField("005"); ok {
		if t, ok := parse005(v); ok {
			return t
		}
	}
	if v, ok := rec.ControlField("008"); ok {
		if t, ok := parse008(v); ok {
			return t
		}
	}
	return Epoch
}

// parse005 reads yyyyMMddHHmmss, ignoring the optional .S fraction.
func parse005(v string) (time.Time, bool) {
	if len(v) < len(layout005) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout005, v[:len(layout005)], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parse008 reads the yyMMdd date entered on file. Two-digit years follow
// Go's pivot: 69-99 map to 19xx, 00-68 to 20xx.
func parse008(v string) (time.Time, bool) {
	if len(v) < 6 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout008, v[:6], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func toStore(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(storeLayout)
}

func fromStore(s string) (time.Time, error) {
	return time.ParseInLocation(storeLayout, s, time.UTC)
}
