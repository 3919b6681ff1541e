package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/vending-controller/internal/inventory"
	"github.com/sweeney/vending-controller/internal/status"
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
	"price": func(e inventory.Entry) string {
		if !e.Priced() {
			return "unset"
		}
		return fmt.Sprintf("%.2f", e.Price)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Vending Controller {{.Config.MachineID}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.warn { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Vending Controller {{.Config.MachineID}}</h1>

<h2>Machine</h2>
<table>
<tr><th>State</th><td id="state" class="{{if .Powered}}on{{else}}off{{end}}">{{orUnknown .State.String}}</td></tr>
<tr><th>Items</th><td>{{.TotalCount}}</td></tr>
<tr><th>Prices</th><td class="{{if .PricesCorrect}}on{{else}}warn{{end}}">{{if .PricesCorrect}}correct{{else}}missing{{end}}</td></tr>
{{with .LastEvent}}<tr><th>Last event</th><td>{{.Tag}} ({{.Source}}): {{.Outcome}}</td></tr>{{end}}
</table>

<h2>Inventory</h2>
<table>
<tr><th>Slot</th><td>Quantity / Price</td></tr>
{{range .Slots}}<tr><th>{{.ID}}</th><td>{{.Quantity}} / {{price .}}</td></tr>
{{else}}<tr><th colspan="2">empty</th></tr>
{{end}}</table>

<h2>Outcomes</h2>
<table>
<tr><th>Accepted</th><td>{{.Stats.Accepted}}</td></tr>
<tr><th>Rejected</th><td>{{.Stats.Rejected}}</td></tr>
<tr><th>Refused</th><td>{{.Stats.Refused}}</td></tr>
</table>

<h2>Front Panel</h2>
<table>
<tr><th>Power switch</th><td>{{orUnknown (printf "%s" .Power)}}</td></tr>
<tr><th>Service key</th><td>{{orUnknown (printf "%s" .Service)}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Uptime is a method on Snapshot; the template needs a field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Powered bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Powered:  snap.Powered(),
	}
	return indexTmpl.Execute(w, data)
}
