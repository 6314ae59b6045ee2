package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stamp": func(t time.Time) string {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
	"doorClass": func(s string) string {
		switch s {
		case "CLOSED":
			return "closed"
		case "OPEN_PENDING":
			return "open"
		default:
			return "unknown"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Door Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: green; font-weight: bold; }
.closed { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Door Controller<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Door</h2>
<table>
<tr><th>State</th><td id="door-state" class="{{doorClass .Door}}">{{.Door}}</td></tr>
<tr><th>Last card</th><td id="last-scan">{{with .LastScan}}{{.UID}} {{.Decision}} at {{stamp .At}}{{else}}none{{end}}</td></tr>
<tr><th>Allow-list</th><td>{{.Config.AllowListSize}} cards</td></tr>
<tr><th>Close delay</th><td>{{.Config.CloseDelayMs}}ms</td></tr>
</table>

<h2>Environment</h2>
<table>
<tr><th>Last reading</th><td id="last-reading">{{with .LastReading}}{{printf "%.1f" .Temperature}}C {{printf "%.1f" .Humidity}}% at {{stamp .At}}{{else}}none{{end}}</td></tr>
<tr><th>Interval</th><td>{{.Config.SensorIntervalMs}}ms</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Granted</th><td id="count-granted">{{.Counts.Granted}}</td></tr>
<tr><th>Already open</th><td id="count-already-open">{{.Counts.AlreadyOpen}}</td></tr>
<tr><th>Denied</th><td id="count-denied">{{.Counts.Denied}}</td></tr>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Sensor errors</th><td>{{.Counts.SensorErrors}}</td></tr>
<tr><th>Store errors</th><td>{{.Counts.StoreErrors}}</td></tr>
</table>

<h2>Attendance</h2>
<table>
<tr><th>Report</th><td>{{if .Config.ReportAt}}daily at {{.Config.ReportAt}}{{else}}disabled{{end}}</td></tr>
<tr><th>Export</th><td>{{if .Config.ExportAt}}daily at {{.Config.ExportAt}}{{else}}external{{end}}</td></tr>
{{with .LastExport}}<tr><th>Last export</th><td>{{.Rows}} rows at {{stamp .At}}{{if .Error}} ({{.Error}}){{end}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Database</th><td>{{.Config.Driver}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var doorEl = document.getElementById("door-state");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function setText(id, text) {
    document.getElementById(id).textContent = text;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var st = JSON.parse(ev.data).status;
        doorEl.textContent = st.door;
        doorEl.className = st.door === "OPEN_PENDING" ? "open" : st.door === "CLOSED" ? "closed" : "unknown";
        if (st.last_scan) {
          setText("last-scan", st.last_scan.uid + " " + st.last_scan.decision + " at " + st.last_scan.at);
        }
        if (st.last_reading) {
          setText("last-reading", st.last_reading.temperature.toFixed(1) + "C " +
            st.last_reading.humidity.toFixed(1) + "% at " + st.last_reading.at);
        }
        setText("count-granted", st.counts.granted);
        setText("count-already-open", st.counts.already_open);
        setText("count-denied", st.counts.denied);
      } catch (e) {}
    };
  }

  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
