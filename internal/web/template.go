package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/scroll-stabilizer/internal/status"
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
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Scroll Stabilizer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.UP, .DOWN { color: green; font-weight: bold; }
.NONE { color: #888; }
.BLOCKED { color: red; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Scroll Stabilizer<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Status</h2>
<table>
<tr><th>Direction</th><td id="direction" class="{{.Engine.CurrentDirection}}">{{.Engine.CurrentDirection}}</td></tr>
<tr><th>Status</th><td id="message" class="{{.Engine.Status.Code}}">{{.Engine.Status}}</td></tr>
<tr><th>Total events</th><td id="total">{{.Engine.TotalEvents}}</td></tr>
<tr><th>Blocked events</th><td id="blocked">{{.Engine.BlockedEvents}}</td></tr>
</table>
<form method="post" action="/api/reset" onsubmit="fetch('/api/reset', {method: 'POST'}); return false;"><button>Reset counters</button></form>

<h2>Settings</h2>
<table>
<tr><th>Enabled</th><td id="enabled">{{if .Tunables.Enabled}}yes{{else}}no{{end}}</td></tr>
<tr><th>Block interval</th><td id="interval">{{ms .Tunables.TimeThreshold}}ms</td></tr>
<tr><th>Direction change threshold</th><td id="threshold">{{.Tunables.DirectionChangeCount}}</td></tr>
<tr><th>File</th><td>{{.Config.SettingsPath}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Buffered</th><td>{{.MQTTBuffered}}</td></tr>
<tr><th>Dropped</th><td>{{.MQTTDropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/api/config">Settings JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, text, cls) {
    var el = document.getElementById(id);
    el.textContent = text;
    if (cls !== undefined) { el.className = cls; }
  }
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
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
        var s = JSON.parse(ev.data).status;
        set("direction", s.current_direction, s.current_direction);
        set("message", s.message, s.code);
        set("total", s.total_events);
        set("blocked", s.blocked_events);
        set("enabled", s.settings.enabled ? "yes" : "no");
        set("interval", s.settings.block_interval_ms + "ms");
        set("threshold", s.settings.direction_change_threshold);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
