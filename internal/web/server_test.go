package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/door-controller/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Driver:           "sqlite",
		AllowListSize:    3,
		CloseDelayMs:     5000,
		SensorIntervalMs: 10000,
		ReportAt:         "00:00",
		Broker:           "tcp://192.168.1.200:1883",
		HTTPAddr:         ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, WithPushInterval(20*time.Millisecond))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, srv, tr
}

func getStatus(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, _, tr := newTestServer(t)
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tr.RecordScan("AB12", status.DecisionGranted, at)
	tr.RecordScan("FFFF", status.DecisionDenied, at.Add(time.Second))
	tr.SetDoor("OPEN_PENDING")
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Door != "OPEN_PENDING" {
		t.Errorf("Door: got %q, want OPEN_PENDING", sj.Status.Door)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Scans != 2 {
		t.Errorf("Counts.Scans: got %d, want 2", sj.Status.Counts.Scans)
	}
	if sj.Status.Counts.Granted != 1 || sj.Status.Counts.Denied != 1 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.LastScan == nil || sj.Status.LastScan.UID != "FFFF" {
		t.Errorf("LastScan: got %+v, want FFFF", sj.Status.LastScan)
	}
	if sj.Status.Config.AllowListSize != 3 {
		t.Errorf("Config.AllowListSize: got %d, want 3", sj.Status.Config.AllowListSize)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getStatus(t, ts.URL)
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, _, tr := newTestServer(t)
	tr.RecordReading(22.5, 41, time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	tr.RecordExport(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 4, nil)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"CLOSED", "22.5C 41.0%", "4 rows", "tcp://192.168.1.200:1883"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, _, tr := newTestServer(t)

	if sj := getStatus(t, ts.URL); sj.Status.LastScan != nil {
		t.Error("expected no last scan initially")
	}

	tr.RecordScan("AB12", status.DecisionAlreadyOpen, time.Now())
	tr.SetMQTTConnected(true)

	sj := getStatus(t, ts.URL)
	if sj.Status.Counts.AlreadyOpen != 1 {
		t.Errorf("AlreadyOpen: got %d, want 1", sj.Status.Counts.AlreadyOpen)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) status.StatusJSON {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return sj
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	ts, _, tr := newTestServer(t)
	conn := dialWS(t, ts)

	if sj := readStatus(t, conn); sj.Status.Door != "CLOSED" {
		t.Errorf("first push Door: got %q, want CLOSED", sj.Status.Door)
	}

	tr.SetDoor("OPEN_PENDING")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if readStatus(t, conn).Status.Door == "OPEN_PENDING" {
			return
		}
	}
	t.Error("door change never pushed")
}

func TestWebsocketClosedOnShutdown(t *testing.T) {
	ts, srv, _ := newTestServer(t)
	conn := dialWS(t, ts)
	readStatus(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("read error: got %v, want going-away close", err)
		}
		return
	}
}

func TestPortFromAddr(t *testing.T) {
	cases := map[string]int{":80": 80, "0.0.0.0:8080": 8080, "[::1]:9000": 9000}
	for addr, want := range cases {
		got, err := PortFromAddr(addr)
		if err != nil || got != want {
			t.Errorf("PortFromAddr(%q) = %d, %v; want %d", addr, got, err, want)
		}
	}
	for _, addr := range []string{"", ":0", "localhost", ":http"} {
		if _, err := PortFromAddr(addr); err == nil {
			t.Errorf("PortFromAddr(%q): expected error", addr)
		}
	}
}
