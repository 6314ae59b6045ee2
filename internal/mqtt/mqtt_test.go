package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTopic(t *testing.T) {
	tests := []struct {
		prefix, leaf, want string
	}{
		{"door/controller", TopicScans, "door/controller/scans"},
		{"site/a/door/", TopicReadings, "site/a/door/readings"},
		{"", TopicSystem, "door/controller/system"},
	}
	for _, tt := range tests {
		if got := Topic(tt.prefix, tt.leaf); got != tt.want {
			t.Errorf("Topic(%q, %q): got %q, want %q", tt.prefix, tt.leaf, got, tt.want)
		}
	}
}

func TestFormatScanPayloadExactJSON(t *testing.T) {
	event := ScanEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		UID:       "04A1B2C3",
		Decision:  "GRANTED",
	}

	payload, err := FormatScanPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"scan":{"timestamp":"2026-02-02T22:18:12Z","uid":"04A1B2C3","decision":"GRANTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatReadingPayload(t *testing.T) {
	event := ReadingEvent{
		Timestamp:   time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Temperature: 23.4,
		Humidity:    55.1,
	}

	payload, err := FormatReadingPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed ReadingPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Reading.Temperature != 23.4 {
		t.Errorf("temperature: got %v, want 23.4", parsed.Reading.Temperature)
	}
	if parsed.Reading.Humidity != 55.1 {
		t.Errorf("humidity: got %v, want 55.1", parsed.Reading.Humidity)
	}
	if parsed.Reading.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp: got %s", parsed.Reading.Timestamp)
	}
}

func TestFormatDoorPayloadTimezoneConversion(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	event := DoorEvent{
		Timestamp: time.Date(2026, 2, 3, 9, 0, 0, 0, kst),
		State:     "OPEN_PENDING",
	}

	payload, err := FormatDoorPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"door":{"timestamp":"2026-02-03T00:00:00Z","state":"OPEN_PENDING"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 19, 10, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T19:10:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "STARTUP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	system := parsed["system"].(map[string]interface{})
	if _, exists := system["reason"]; exists {
		t.Error("reason field should be omitted for startup events")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	now := time.Now()

	if err := f.PublishScan(ScanEvent{Timestamp: now, UID: "AB12", Decision: "DENIED"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishReading(ReadingEvent{Timestamp: now, Temperature: 20, Humidity: 40}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishDoor(DoorEvent{Timestamp: now, State: "CLOSED"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: now, Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Scans()) != 1 || f.Scans()[0].UID != "AB12" {
		t.Errorf("scans: got %+v", f.Scans())
	}
	if len(f.Readings()) != 1 {
		t.Errorf("readings: got %d, want 1", len(f.Readings()))
	}
	if len(f.Doors()) != 1 || f.Doors()[0].State != "CLOSED" {
		t.Errorf("doors: got %+v", f.Doors())
	}
	if len(f.SystemEvents()) != 1 {
		t.Errorf("system events: got %d, want 1", len(f.SystemEvents()))
	}
	for _, leaf := range []string{TopicScans, TopicReadings, TopicDoor, TopicSystem} {
		if len(f.Payloads(leaf)) != 1 {
			t.Errorf("%s payloads: got %d, want 1", leaf, len(f.Payloads(leaf)))
		}
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker unavailable")
	f.PublishSystemError = errors.New("broker unavailable")

	if err := f.PublishScan(ScanEvent{}); err == nil {
		t.Error("expected error from PublishScan")
	}
	if err := f.PublishReading(ReadingEvent{}); err == nil {
		t.Error("expected error from PublishReading")
	}
	if err := f.PublishDoor(DoorEvent{}); err == nil {
		t.Error("expected error from PublishDoor")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected error from PublishSystem")
	}
	if len(f.Scans())+len(f.Readings())+len(f.Doors())+len(f.SystemEvents()) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.SetConnected(true)
	_ = f.PublishScan(ScanEvent{UID: "AB12"})
	_ = f.Close()

	if !f.Closed() {
		t.Error("expected Closed=true")
	}
	if !f.IsConnected() {
		t.Error("expected IsConnected=true")
	}

	f.Reset()
	if f.Closed() || f.IsConnected() || len(f.Scans()) != 0 || len(f.Payloads(TopicScans)) != 0 {
		t.Error("Reset should clear all state")
	}
}

func TestFakePublisherConcurrent(t *testing.T) {
	f := NewFakePublisher()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.PublishScan(ScanEvent{UID: "AB12"})
		}()
		go func() {
			defer wg.Done()
			_ = f.PublishReading(ReadingEvent{})
		}()
	}
	wg.Wait()

	if len(f.Scans()) != 50 || len(f.Readings()) != 50 {
		t.Errorf("got %d scans and %d readings, want 50 each", len(f.Scans()), len(f.Readings()))
	}
}

func TestDiscard(t *testing.T) {
	var p Publisher = Discard{}
	if err := p.PublishScan(ScanEvent{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if (Discard{}).IsConnected() {
		t.Error("Discard should never report connected")
	}
}
