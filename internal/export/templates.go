package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
}).Parse(reportHTML))

const reportHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 0; }
  h1 { font-size: 22px; margin-bottom: 2px; }
  h2 { font-size: 15px; margin-top: 28px; border-bottom: 1px solid #d0d0dc; padding-bottom: 4px; }
  .meta { color: #666; font-size: 12px; margin-bottom: 18px; }
  .counts { display: flex; gap: 32px; margin: 16px 0; }
  .counts div { font-size: 13px; }
  .counts strong { font-size: 20px; display: block; }
  table { width: 100%; border-collapse: collapse; font-size: 12px; }
  th { text-align: left; color: #555; border-bottom: 1px solid #bbb; padding: 4px 6px; }
  td { border-bottom: 1px solid #eee; padding: 4px 6px; vertical-align: top; }
  td.path { color: #777; font-family: monospace; font-size: 11px; }
  .tag { font-weight: 600; }
  .empty { color: #888; font-style: italic; }
</style>
</head>
<body>
<h1>{{.ProjectName}}</h1>
<div class="meta">Reconciliation report · generated {{formatDate .GeneratedAt}} · last scan {{formatDate .LastScanAt}}</div>

<div class="counts">
  <div><strong>{{.TotalCount}}</strong> open markers</div>
  <div><strong>{{.ScannedFiles}}</strong> files with markers</div>
  <div><strong>{{len .Pending}}</strong> awaiting resolution</div>
</div>

<h2>Pending resolutions</h2>
{{if .Pending}}
<table>
  <tr><th>Type</th><th>Marker</th><th>File</th><th>Disappeared after</th></tr>
  {{range .Pending}}
  <tr>
    <td class="tag">{{.Type}}</td>
    <td>{{.Content}}</td>
    <td class="path">{{.FilePath}}</td>
    <td>{{formatDate .CreatedAt}}</td>
  </tr>
  {{end}}
</table>
{{else}}
<p class="empty">Nothing awaiting resolution.</p>
{{end}}

<h2>Current markers</h2>
{{if .Todos}}
<table>
  <tr><th>Type</th><th>Marker</th><th>Location</th></tr>
  {{range .Todos}}
  <tr>
    <td class="tag">{{.Type}}</td>
    <td>{{.Content}}</td>
    <td class="path">{{.FilePath}}:{{.LineNumber}}</td>
  </tr>
  {{end}}
</table>
{{else}}
<p class="empty">No markers in the latest scan.</p>
{{end}}
</body>
</html>`

// RenderReportHTML renders the report template for a project.
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}
