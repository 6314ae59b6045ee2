// Package status provides a thread-safe status tracker for the door-controller
// daemon. It is read by the web status page and the MQTT heartbeat.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Driver           string
	AllowListSize    int
	CloseDelayMs     int64
	SensorIntervalMs int64
	ReportAt         string
	ExportAt         string // empty = exporter not scheduled in-process
	Broker           string
	HTTPAddr         string
}

// Scan is the most recent card detection.
type Scan struct {
	UID      string
	Decision string
	At       time.Time
}

// Reading is the most recent complete sensor sample.
type Reading struct {
	Temperature float64
	Humidity    float64
	At          time.Time
}

// Export is the outcome of the most recent attendance export.
type Export struct {
	At    time.Time
	Rows  int
	Error string
}

// Counts tracks activity since startup.
type Counts struct {
	Granted      int
	AlreadyOpen  int
	Denied       int
	Readings     int
	SensorErrors int
	StoreErrors  int
}

// Scans returns the total number of detections.
func (c Counts) Scans() int {
	return c.Granted + c.AlreadyOpen + c.Denied
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Door          string
	LastScan      *Scan
	LastReading   *Reading
	LastExport    *Export
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Decision labels counted by RecordScan.
const (
	DecisionGranted     = "GRANTED"
	DecisionAlreadyOpen = "ALREADY_OPEN"
	DecisionDenied      = "DENIED"
)

// Tracker holds mutable daemon state behind an RWMutex.
// A nil *Tracker is valid and ignores every update.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Door:      "CLOSED",
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetDoor records the door state.
func (t *Tracker) SetDoor(state string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Door = state
	t.mu.Unlock()
}

// RecordScan records a detection and counts its decision.
func (t *Tracker) RecordScan(uid, decision string, at time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.LastScan = &Scan{UID: uid, Decision: decision, At: at}
	switch decision {
	case DecisionGranted:
		t.snap.Counts.Granted++
	case DecisionAlreadyOpen:
		t.snap.Counts.AlreadyOpen++
	case DecisionDenied:
		t.snap.Counts.Denied++
	}
	t.mu.Unlock()
}

// RecordReading records a complete sensor sample.
func (t *Tracker) RecordReading(temperature, humidity float64, at time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.LastReading = &Reading{Temperature: temperature, Humidity: humidity, At: at}
	t.snap.Counts.Readings++
	t.mu.Unlock()
}

// RecordExport records an exporter run. A nil err means delivered or
// nothing to send.
func (t *Tracker) RecordExport(at time.Time, rows int, err error) {
	if t == nil {
		return
	}
	e := &Export{At: at, Rows: rows}
	if err != nil {
		e.Error = err.Error()
	}
	t.mu.Lock()
	t.snap.LastExport = e
	t.mu.Unlock()
}

// IncSensorErrors counts a failed sensor read.
func (t *Tracker) IncSensorErrors() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Counts.SensorErrors++
	t.mu.Unlock()
}

// IncStoreErrors counts a failed persistence call.
func (t *Tracker) IncStoreErrors() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Counts.StoreErrors++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	// Pointer fields are replaced, never mutated, so sharing them is safe.
	s.Now = time.Now()
	return s
}
