// Package memory is an in-memory store.Gateway for tests and hardware-less
// development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/door-controller/internal/store"
)

// Gateway keeps every record in memory.
type Gateway struct {
	mu       sync.Mutex
	scans    []store.ScanEvent
	readings []store.SensorReading
	now      func() time.Time
	loc      *time.Location

	scanErr    error
	readingErr error
	queryErr   error
}

// New returns an empty gateway using the wall clock and local time.
func New() *Gateway {
	return &Gateway{now: time.Now, loc: time.Local}
}

// SetClock replaces the clock that stamps new records.
func (g *Gateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// SetLocation sets the location calendar days are computed in.
func (g *Gateway) SetLocation(loc *time.Location) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loc = loc
}

// FailScans makes RecordScan return err until called again with nil.
func (g *Gateway) FailScans(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scanErr = err
}

// FailReadings makes RecordReading return err until called again with nil.
func (g *Gateway) FailReadings(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readingErr = err
}

// FailQueries makes the attendance queries return err until called again
// with nil.
func (g *Gateway) FailQueries(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryErr = err
}

// RecordScan appends a scan stamped with the gateway clock.
func (g *Gateway) RecordScan(_ context.Context, uid string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.scanErr != nil {
		return g.scanErr
	}
	g.scans = append(g.scans, store.ScanEvent{UID: uid, Timestamp: g.now()})
	return nil
}

// AddScan appends a scan with an explicit timestamp. Test-only helper.
func (g *Gateway) AddScan(uid string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scans = append(g.scans, store.ScanEvent{UID: uid, Timestamp: at})
}

// RecordReading appends a reading stamped with the gateway clock.
func (g *Gateway) RecordReading(_ context.Context, temperature, humidity float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.readingErr != nil {
		return g.readingErr
	}
	g.readings = append(g.readings, store.SensorReading{
		Temperature: temperature,
		Humidity:    humidity,
		Timestamp:   g.now(),
	})
	return nil
}

// Scans returns a copy of all recorded scans.
func (g *Gateway) Scans() []store.ScanEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]store.ScanEvent, len(g.scans))
	copy(out, g.scans)
	return out
}

// Readings returns a copy of all recorded readings.
func (g *Gateway) Readings() []store.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]store.SensorReading, len(g.readings))
	copy(out, g.readings)
	return out
}

// DailyFirstLast aggregates scans within the calendar day containing day.
func (g *Gateway) DailyFirstLast(_ context.Context, day time.Time) ([]store.FirstLast, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.queryErr != nil {
		return nil, g.queryErr
	}
	start, end := store.DayBounds(day, g.loc)
	var within []store.ScanEvent
	for _, s := range g.scans {
		if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			within = append(within, s)
		}
	}
	return store.Aggregate(within, g.loc), nil
}

// FirstLastAll aggregates every recorded scan per identifier and day.
func (g *Gateway) FirstLastAll(_ context.Context) ([]store.FirstLast, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return store.Aggregate(g.scans, g.loc), nil
}
