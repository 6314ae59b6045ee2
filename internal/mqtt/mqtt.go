// Package mqtt publishes door-controller telemetry with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// Topic leaves under the configured prefix.
const (
	TopicScans    = "scans"
	TopicReadings = "readings"
	TopicDoor     = "door"
	TopicSystem   = "system"
)

// DefaultPrefix is used when no topic prefix is configured.
const DefaultPrefix = "door/controller"

// Topic joins prefix and leaf.
func Topic(prefix, leaf string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "/" + leaf
}

// Publisher publishes telemetry to MQTT.
// Errors are for logging only; callers never stop on them.
type Publisher interface {
	PublishScan(event ScanEvent) error
	PublishReading(event ReadingEvent) error
	PublishDoor(event DoorEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ScanEvent is one card detection and the access decision.
type ScanEvent struct {
	Timestamp time.Time
	UID       string
	Decision  string
}

// ReadingEvent is one complete sensor sample.
type ReadingEvent struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
}

// DoorEvent is a door state change.
type DoorEvent struct {
	Timestamp time.Time
	State     string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ScanPayload is the JSON envelope on the scans topic.
type ScanPayload struct {
	Scan ScanPayloadInner `json:"scan"`
}

// ScanPayloadInner contains the scan details.
type ScanPayloadInner struct {
	Timestamp string `json:"timestamp"`
	UID       string `json:"uid"`
	Decision  string `json:"decision"`
}

// FormatScanPayload creates the JSON payload for a scan.
func FormatScanPayload(event ScanEvent) ([]byte, error) {
	return json.Marshal(ScanPayload{
		Scan: ScanPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			UID:       event.UID,
			Decision:  event.Decision,
		},
	})
}

// ReadingPayload is the JSON envelope on the readings topic.
type ReadingPayload struct {
	Reading ReadingPayloadInner `json:"reading"`
}

// ReadingPayloadInner contains the reading details.
type ReadingPayloadInner struct {
	Timestamp   string  `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// FormatReadingPayload creates the JSON payload for a reading.
func FormatReadingPayload(event ReadingEvent) ([]byte, error) {
	return json.Marshal(ReadingPayload{
		Reading: ReadingPayloadInner{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Temperature: event.Temperature,
			Humidity:    event.Humidity,
		},
	})
}

// DoorPayload is the JSON envelope on the door topic.
type DoorPayload struct {
	Door DoorPayloadInner `json:"door"`
}

// DoorPayloadInner contains the door state.
type DoorPayloadInner struct {
	Timestamp string `json:"timestamp"`
	State     string `json:"state"`
}

// FormatDoorPayload creates the JSON payload for a door state change.
func FormatDoorPayload(event DoorEvent) ([]byte, error) {
	return json.Marshal(DoorPayload{
		Door: DoorPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			State:     event.State,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Discard is a Publisher that drops everything. Used when no broker is
// configured.
type Discard struct{}

func (Discard) PublishScan(ScanEvent) error       { return nil }
func (Discard) PublishReading(ReadingEvent) error { return nil }
func (Discard) PublishDoor(DoorEvent) error       { return nil }
func (Discard) PublishSystem(SystemEvent) error   { return nil }
func (Discard) Close() error                      { return nil }
func (Discard) IsConnected() bool                 { return false }
