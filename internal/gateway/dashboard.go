package gateway

import (
	"html/template"
	"net/http"
	"time"

	"github.com/flemzord/taskmaster/internal/history"
	"github.com/flemzord/taskmaster/internal/orchestrator"
)

type dashboardData struct {
	Status  orchestrator.Status
	Jobs    []orchestrator.JobInfo
	Latest  map[string]history.JobSummary
	Now     time.Time
	Version string
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"ts": func(t *time.Time) string {
		if t == nil {
			return "never"
		}
		return t.UTC().Format("2006-01-02 15:04:05 MST")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Taskmaster</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { text-align: left; padding: .4rem .6rem; border-bottom: 1px solid #ddd; }
.status { display: inline-block; padding: .1rem .5rem; border-radius: .3rem; background: #eee; }
.healthy, .completed { background: #d4f4dd; }
.degraded, .running { background: #fff3c4; }
.unhealthy, .failed { background: #f9d0d0; }
button { cursor: pointer; }
</style>
</head>
<body>
<h1>Taskmaster</h1>
<p>
Scheduler: <span class="status">{{if .Status.SchedulerRunning}}running{{else}}stopped{{end}}</span>
Health: <span class="status {{.Status.HealthStatus}}">{{.Status.HealthStatus}}</span>
Last health check: {{ts .Status.LastHealthCheck}}
Active runs: {{.Status.ActiveTasks}}
</p>
<table>
<thead><tr><th>Job</th><th>Schedule</th><th>Next run</th><th>Last status</th><th>Last error</th><th></th></tr></thead>
<tbody>
{{range .Jobs}}{{$last := index $.Latest .ID}}
<tr>
<td>{{.Name}}<br><small>{{.ID}}</small></td>
<td><code>{{.Trigger}}</code></td>
<td>{{.NextRun}}</td>
<td>{{if .Running}}<span class="status running">running</span>{{else if $last.Status}}<span class="status {{$last.Status}}">{{$last.Status}}</span>{{else}}-{{end}}</td>
<td>{{$last.Error}}</td>
<td><button onclick="run('{{.ID}}')">Run now</button></td>
</tr>
{{end}}
</tbody>
</table>
<p><small>Rendered {{.Now.UTC.Format "2006-01-02 15:04:05 MST"}}{{if .Version}} &middot; {{.Version}}{{end}}</small></p>
<script>
function run(name) {
  fetch("/run/" + encodeURIComponent(name), {method: "POST"})
    .then(r => r.json())
    .then(b => { if (b.error) alert(b.error); });
}
(function () {
  const proto = location.protocol === "https:" ? "wss://" : "ws://";
  const ws = new WebSocket(proto + location.host + "/ws/events");
  ws.onmessage = (m) => {
    const ev = JSON.parse(m.data);
    if (ev.kind === "run" && ev.run && ev.run.status !== "running") location.reload();
  };
})();
</script>
</body>
</html>
`))

// handleDashboard renders the human status page.
func (g *Gateway) handleDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data := dashboardData{
			Status:  g.deps.Service.Status(),
			Jobs:    g.deps.Service.ListJobs(),
			Latest:  make(map[string]history.JobSummary),
			Now:     time.Now(),
			Version: g.deps.Version,
		}
		for _, s := range g.deps.Service.Summary() {
			data.Latest[s.Job] = s
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := dashboardTmpl.Execute(w, data); err != nil {
			g.logger.Error("gateway: render dashboard", "error", err)
		}
	}
}
