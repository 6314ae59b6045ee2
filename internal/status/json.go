package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Door          string       `json:"door"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	LastScan      *ScanJSON    `json:"last_scan,omitempty"`
	LastReading   *ReadingJSON `json:"last_reading,omitempty"`
	LastExport    *ExportJSON  `json:"last_export,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of activity counts.
type CountsJSON struct {
	Scans        int `json:"scans"`
	Granted      int `json:"granted"`
	AlreadyOpen  int `json:"already_open"`
	Denied       int `json:"denied"`
	Readings     int `json:"readings"`
	SensorErrors int `json:"sensor_errors"`
	StoreErrors  int `json:"store_errors"`
}

// ScanJSON is the JSON representation of the last scan.
type ScanJSON struct {
	UID      string `json:"uid"`
	Decision string `json:"decision"`
	At       string `json:"at"`
}

// ReadingJSON is the JSON representation of the last reading.
type ReadingJSON struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	At          string  `json:"at"`
}

// ExportJSON is the JSON representation of the last export.
type ExportJSON struct {
	At    string `json:"at"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Driver           string `json:"driver"`
	AllowListSize    int    `json:"allowlist_size"`
	CloseDelayMs     int64  `json:"close_delay_ms"`
	SensorIntervalMs int64  `json:"sensor_interval_ms"`
	ReportAt         string `json:"report_at"`
	ExportAt         string `json:"export_at,omitempty"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	door := snap.Door
	if door == "" {
		door = "UNKNOWN"
	}

	inner := StatusInner{
		Door:          door,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Scans:        snap.Counts.Scans(),
			Granted:      snap.Counts.Granted,
			AlreadyOpen:  snap.Counts.AlreadyOpen,
			Denied:       snap.Counts.Denied,
			Readings:     snap.Counts.Readings,
			SensorErrors: snap.Counts.SensorErrors,
			StoreErrors:  snap.Counts.StoreErrors,
		},
		Config: ConfigJSON{
			Driver:           snap.Config.Driver,
			AllowListSize:    snap.Config.AllowListSize,
			CloseDelayMs:     snap.Config.CloseDelayMs,
			SensorIntervalMs: snap.Config.SensorIntervalMs,
			ReportAt:         snap.Config.ReportAt,
			ExportAt:         snap.Config.ExportAt,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}

	if s := snap.LastScan; s != nil {
		inner.LastScan = &ScanJSON{UID: s.UID, Decision: s.Decision, At: s.At.UTC().Format(time.RFC3339)}
	}
	if r := snap.LastReading; r != nil {
		inner.LastReading = &ReadingJSON{Temperature: r.Temperature, Humidity: r.Humidity, At: r.At.UTC().Format(time.RFC3339)}
	}
	if e := snap.LastExport; e != nil {
		inner.LastExport = &ExportJSON{At: e.At.UTC().Format(time.RFC3339), Rows: e.Rows, Error: e.Error}
	}

	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
