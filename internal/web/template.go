package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/wifi-sensor/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"millis": func(ms int64) string {
		if ms <= 0 {
			return "now"
		}
		return time.UnixMilli(ms).UTC().Format(time.RFC3339)
	},
	"ratio": func(r int) string {
		if r < 0 {
			return "invalid"
		}
		return fmt.Sprintf("%d (%.0f%%)", r, float64(r)*100/255)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Wi-Fi Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Wi-Fi Sensor</h1>

<h2>Device</h2>
<table>
<tr><th>Screen</th><td class="{{with orUnknown (printf "%s" .Input.Screen)}}{{if eq . "ON"}}on{{else if eq . "OFF"}}off{{else}}unknown{{end}}{{end}}">{{orUnknown (printf "%s" .Input.Screen)}}</td></tr>
<tr><th>Config lock</th><td class="{{with orUnknown (printf "%s" .Input.Lock)}}{{if eq . "ON"}}on{{else if eq . "OFF"}}off{{else}}unknown{{end}}{{end}}">{{orUnknown (printf "%s" .Input.Lock)}}</td></tr>
<tr><th>Ready</th><td>{{if .Input.Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Open Network Notifier</h2>
<table>
<tr><th>State</th><td>{{orUnknown (printf "%s" .Notifier.State)}}</td></tr>
<tr><th>Enabled</th><td>{{if .Notifier.Enabled}}yes{{else}}no{{end}}</td></tr>
{{if .Notifier.Recommendation}}<tr><th>Recommendation</th><td>{{.Notifier.Recommendation.SSID}} ({{.Notifier.Recommendation.Level}} dBm)</td></tr>{{end}}
<tr><th>Next recommendation</th><td>{{millis .Notifier.RepeatAtMillis}}</td></tr>
<tr><th>Blacklist</th><td>{{range $i, $s := .Notifier.Blacklist}}{{if $i}}, {{end}}{{$s}}{{else}}empty{{end}}</td></tr>
<tr><th>Recommendations</th><td>{{.Notifier.Counts.Recommendations}}</td></tr>
<tr><th>Connects</th><td>{{.Notifier.Counts.Connects}} ({{.Notifier.Counts.Connected}} ok, {{.Notifier.Counts.Failures}} failed)</td></tr>
<tr><th>Dismissals</th><td>{{.Notifier.Counts.Dismissals}}</td></tr>
</table>

<h2>Channel Utilization</h2>
<table>
<tr><th>Mobility</th><td>{{.Utilization.Mobility}}</td></tr>
<tr><th>Counter resets</th><td>{{.Utilization.CounterResets}}</td></tr>
{{range .Frequencies}}<tr><th>{{.}} MHz</th><td>{{ratio (index $.Utilization.Ratios .)}}</td></tr>
{{else}}<tr><th>Channels</th><td>no data</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTT.Connected}}connected{{else}}disconnected{{end}}">{{if .MQTT.Connected}}connected{{else}}disconnected{{end}}{{if .MQTT.Queued}} ({{.MQTT.Queued}} queued){{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topics</th><td>{{.Config.TopicPrefix}}/#</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>SCREEN ON</th><td>{{.Input.Counts.ScreenOn}}</td></tr>
<tr><th>SCREEN OFF</th><td>{{.Input.Counts.ScreenOff}}</td></tr>
<tr><th>LOCK ON</th><td>{{.Input.Counts.LockOn}}</td></tr>
<tr><th>LOCK OFF</th><td>{{.Input.Counts.LockOff}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO</th><td>{{if .Config.GPIOEnabled}}poll {{.Config.PollMs}}ms, debounce {{.Config.DebounceMs}}ms{{else}}disabled{{end}}</td></tr>
<tr><th>Repeat delay</th><td>{{.Config.RepeatDelayMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Store</th><td>{{.Config.StoreDriver}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
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
