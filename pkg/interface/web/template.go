package web

import (
	"fmt"
	"html/template"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

type pageData struct {
	Host        string
	Port        string
	Timeout     string
	Ping        bool
	PingEnabled bool
	Error       string
	Report      *entity.DiagnosticReport
}

var funcMap = template.FuncMap{
	"probeLine": func(p entity.ProbeResult) string {
		if p.Succeeded {
			return fmt.Sprintf("OK    %s (%s) %.3fs", p.Address.IP, p.Address.Family, p.ElapsedSeconds)
		}
		reason := p.ErrorMessage
		if p.ErrorCode != nil {
			reason = fmt.Sprintf("[errno %d] %s", *p.ErrorCode, reason)
		}
		return fmt.Sprintf("FAIL  %s (%s) %.3fs %s", p.Address.IP, p.Address.Family, p.ElapsedSeconds, reason)
	},
}

var pageTemplate = template.Must(template.New("page").Funcs(funcMap).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>NetCheck Diagnostic Tool</title>
  <style>
    body{margin:0;padding:2rem;font-family:system-ui,-apple-system,"Segoe UI",Roboto,Arial;background:#f5f7fb;color:#0f172a;display:flex;justify-content:center}
    .wrap{width:100%;max-width:880px;background:#fff;border-radius:12px;padding:1.25rem;box-shadow:0 6px 20px rgba(16,24,40,.06)}
    h1{font-size:1.25rem;margin:0}
    .info,.hint{color:#6b7280;font-size:.9rem}
    form{display:grid;grid-template-columns:1fr 100px 80px auto auto;gap:.5rem;align-items:center;margin:.75rem 0 1rem}
    input[type=text]{padding:.6rem .7rem;border-radius:10px;border:1px solid rgba(15,23,42,.12);font-size:1rem}
    input[type=submit]{border:0;background:#2563eb;color:#fff;padding:.6rem .95rem;font-weight:600;border-radius:10px;cursor:pointer}
    .error{color:#dc2626;font-weight:600}
    pre{margin:0;padding:1rem;background:#0b1220;color:#e6eef8;border-radius:10px;overflow:auto;max-height:60vh;white-space:pre-wrap;word-break:break-word;font-family:ui-monospace,Menlo,monospace;font-size:.92rem}
  </style>
</head>
<body>
  <div class="wrap" role="main">
    <h1>NetCheck Diagnostic Tool</h1>
    <p class="info">Test whether a host and port are reachable from this server.</p>

    <form method="GET" aria-label="Diagnostic form">
      <input type="text" name="host" value="{{.Host}}" placeholder="IP address or hostname (e.g. 8.8.8.8 or example.com)" autocomplete="off" aria-label="Host" />
      <input type="text" name="port" value="{{.Port}}" placeholder="Port" inputmode="numeric" aria-label="Port" />
      <input type="text" name="timeout" value="{{.Timeout}}" placeholder="Timeout" inputmode="numeric" aria-label="Timeout in seconds" />
      {{if .PingEnabled}}<label><input type="checkbox" name="ping" value="1"{{if .Ping}} checked{{end}} /> ping</label>{{else}}<span></span>{{end}}
      <input type="submit" value="Check" />
    </form>

    {{if .Error}}<p class="error">{{.Error}}</p>{{end}}

    {{with .Report}}
    <pre>
Target: {{.Host}} port {{.Port}} (timeout {{.TimeoutSeconds}}s)

Resolved addresses:
{{range .ResolvedAddresses}}  {{.IP}} ({{.Family}})
{{else}}  (none)
{{end}}
TCP connectivity:
{{range .ProbeResults}}  {{probeLine .}}
{{end}}{{if .PingOutput}}
Ping{{if .PingCommand}} ($ {{.PingCommand}}){{end}}:
{{.PingOutput}}
{{end}}
Notes:
{{range .Notes}}  - {{.}}
{{end}}</pre>
    {{end}}
  </div>
</body>
</html>
`))
