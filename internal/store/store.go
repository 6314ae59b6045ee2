// Package store defines the persistence gateway used by the controller and
// the attendance exporter.
package store

import (
	"context"
	"sort"
	"time"
)

// ScanEvent is one card detection, authorized or not.
type ScanEvent struct {
	UID       string
	Timestamp time.Time
}

// SensorReading is one complete temperature and humidity sample.
type SensorReading struct {
	Temperature float64
	Humidity    float64
	Timestamp   time.Time
}

// FirstLast is the earliest and latest scan of one identifier on one
// calendar day. Day is 00:00 of that day in the store's location. Nil means
// the bound is absent.
type FirstLast struct {
	UID   string
	Day   time.Time
	First *time.Time
	Last  *time.Time
}

// ScanRecorder appends scan events. The timestamp is assigned by the store.
type ScanRecorder interface {
	RecordScan(ctx context.Context, uid string) error
}

// ReadingRecorder appends sensor readings. The timestamp is assigned by
// the store.
type ReadingRecorder interface {
	RecordReading(ctx context.Context, temperature, humidity float64) error
}

// AttendanceSource aggregates scan events per identifier.
type AttendanceSource interface {
	// DailyFirstLast covers the calendar day containing day, in the store's
	// location. Rows are ordered by identifier.
	DailyFirstLast(ctx context.Context, day time.Time) ([]FirstLast, error)

	// FirstLastAll covers all recorded history with one row per identifier
	// and calendar day, newest day first, then by identifier.
	FirstLastAll(ctx context.Context) ([]FirstLast, error)
}

// Gateway is the full persistence surface.
type Gateway interface {
	ScanRecorder
	ReadingRecorder
	AttendanceSource
}

// DayBounds returns [00:00, next 00:00) of the calendar day containing t,
// in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Aggregate groups scans by identifier and calendar day in loc. Scans
// without an identifier are skipped. Rows are ordered newest day first,
// then by identifier.
func Aggregate(scans []ScanEvent, loc *time.Location) []FirstLast {
	if loc == nil {
		loc = time.Local
	}

	type key struct {
		uid string
		day int64
	}
	groups := make(map[key]*FirstLast)
	for _, s := range scans {
		if s.UID == "" {
			continue
		}
		ts := s.Timestamp.In(loc)
		day, _ := DayBounds(ts, loc)
		k := key{uid: s.UID, day: day.Unix()}

		fl, ok := groups[k]
		if !ok {
			first, last := ts, ts
			groups[k] = &FirstLast{UID: s.UID, Day: day, First: &first, Last: &last}
			continue
		}
		if ts.Before(*fl.First) {
			*fl.First = ts
		}
		if ts.After(*fl.Last) {
			*fl.Last = ts
		}
	}

	out := make([]FirstLast, 0, len(groups))
	for _, fl := range groups {
		out = append(out, *fl)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.After(out[j].Day)
		}
		return out[i].UID < out[j].UID
	})
	return out
}
