package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Driver: "sqlite", AllowListSize: 3, CloseDelayMs: 5000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Door != "CLOSED" {
		t.Errorf("Door: got %q, want CLOSED", snap.Door)
	}
	if snap.Config.AllowListSize != 3 {
		t.Errorf("Config.AllowListSize: got %d, want 3", snap.Config.AllowListSize)
	}
	if snap.LastScan != nil || snap.LastReading != nil || snap.LastExport != nil {
		t.Error("expected no activity initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRecordScanCountsDecisions(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	tr.RecordScan("AB12", DecisionGranted, at)
	tr.RecordScan("AB12", DecisionAlreadyOpen, at.Add(time.Second))
	tr.RecordScan("FFFF", DecisionDenied, at.Add(2*time.Second))
	tr.RecordScan("FFFF", DecisionDenied, at.Add(3*time.Second))

	snap := tr.Snapshot()
	if snap.Counts.Granted != 1 || snap.Counts.AlreadyOpen != 1 || snap.Counts.Denied != 2 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
	if snap.Counts.Scans() != 4 {
		t.Errorf("Scans: got %d, want 4", snap.Counts.Scans())
	}
	if snap.LastScan == nil || snap.LastScan.UID != "FFFF" || snap.LastScan.Decision != DecisionDenied {
		t.Errorf("LastScan: got %+v", snap.LastScan)
	}
}

func TestRecordReadingAndErrors(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordReading(23.4, 55.1, time.Now())
	tr.IncSensorErrors()
	tr.IncStoreErrors()
	tr.IncStoreErrors()

	snap := tr.Snapshot()
	if snap.LastReading == nil || snap.LastReading.Temperature != 23.4 {
		t.Errorf("LastReading: got %+v", snap.LastReading)
	}
	if snap.Counts.Readings != 1 {
		t.Errorf("Readings: got %d, want 1", snap.Counts.Readings)
	}
	if snap.Counts.SensorErrors != 1 {
		t.Errorf("SensorErrors: got %d, want 1", snap.Counts.SensorErrors)
	}
	if snap.Counts.StoreErrors != 2 {
		t.Errorf("StoreErrors: got %d, want 2", snap.Counts.StoreErrors)
	}
}

func TestRecordExport(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordExport(time.Now(), 4, nil)
	if e := tr.Snapshot().LastExport; e == nil || e.Rows != 4 || e.Error != "" {
		t.Errorf("LastExport: got %+v", e)
	}

	tr.RecordExport(time.Now(), 4, errors.New("delivery failed"))
	if e := tr.Snapshot().LastExport; e == nil || e.Error != "delivery failed" {
		t.Errorf("LastExport: got %+v", e)
	}
}

func TestNilTrackerIgnoresUpdates(t *testing.T) {
	var tr *Tracker

	tr.SetDoor("OPEN_PENDING")
	tr.RecordScan("AB12", DecisionGranted, time.Now())
	tr.RecordReading(1, 2, time.Now())
	tr.RecordExport(time.Now(), 0, nil)
	tr.IncSensorErrors()
	tr.IncStoreErrors()
	tr.SetMQTTConnected(true)
	tr.SetNetwork(&NetworkInfo{})
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetDoor("OPEN_PENDING")
	tr.RecordScan("AB12", DecisionGranted, time.Now())

	snap1 := tr.Snapshot()

	tr.SetDoor("CLOSED")
	tr.RecordScan("CD34", DecisionDenied, time.Now())

	if snap1.Door != "OPEN_PENDING" {
		t.Error("snapshot should be a copy; Door was modified")
	}
	if snap1.LastScan.UID != "AB12" {
		t.Error("snapshot should be a copy; LastScan was modified")
	}
	if snap1.Counts.Denied != 0 {
		t.Error("snapshot should be a copy; Counts were modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Door:          "OPEN_PENDING",
		LastScan:      &Scan{UID: "AB12", Decision: DecisionGranted, At: start.Add(time.Minute)},
		LastReading:   &Reading{Temperature: 23.4, Humidity: 55.1, At: start.Add(2 * time.Minute)},
		Counts:        Counts{Granted: 5, Denied: 2, Readings: 90},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Driver: "sqlite", CloseDelayMs: 5000, ReportAt: "00:00", Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Door != "OPEN_PENDING" {
		t.Errorf("Door: got %q, want OPEN_PENDING", parsed.Status.Door)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Scans != 7 {
		t.Errorf("Counts.Scans: got %d, want 7", parsed.Status.Counts.Scans)
	}
	if parsed.Status.LastScan == nil || parsed.Status.LastScan.At != "2026-01-01T00:01:00Z" {
		t.Errorf("LastScan: got %+v", parsed.Status.LastScan)
	}
	if parsed.Status.LastReading == nil || parsed.Status.LastReading.Humidity != 55.1 {
		t.Errorf("LastReading: got %+v", parsed.Status.LastReading)
	}
	if parsed.Status.LastExport != nil {
		t.Error("expected LastExport omitted")
	}
	if parsed.Status.Config.CloseDelayMs != 5000 {
		t.Errorf("Config.CloseDelayMs: got %d, want 5000", parsed.Status.Config.CloseDelayMs)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONUnknownDoor(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Door != "UNKNOWN" {
		t.Errorf("Door: got %q, want UNKNOWN", parsed.Status.Door)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Door:      "CLOSED",
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 1800 {
		t.Errorf("UptimeSeconds: got %d, want 1800", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		Door:      "CLOSED",
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.RecordScan("AB12", DecisionGranted, time.Now())
			tr.RecordReading(float64(i), 50, time.Now())
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
