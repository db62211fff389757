package export

import (
	"bytes"
	"html/template"
)

var boardTemplate = template.Must(template.New("board").Parse(boardTemplateHTML))

// RenderBoardHTML renders the printable board page used for PDF export.
func RenderBoardHTML(snapshot BoardSnapshot) (string, error) {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, snapshot); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const boardTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; color: #444; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .card { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.75rem 0; border-left: 3px solid #333; page-break-inside: avoid; }
    .card.action { border-left-color: #2a7; }
    .card .who { color: #666; font-size: 0.85em; }
    .card .counts { float: right; color: #666; font-size: 0.85em; }
    .children { margin-left: 2rem; }
    .empty { color: #999; font-style: italic; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  <div class="meta">Board {{.BoardID}} ({{.State}}) | exported {{.ExportedAt.Format "Jan 2, 2006 15:04 UTC"}}</div>
  {{range .Columns}}
  <h2>{{.Label}}</h2>
  {{if not .Cards}}<p class="empty">No cards.</p>{{end}}
  {{range .Cards}}
  <div class="card{{if eq .CardType "ACTION"}} action{{end}}">
    <span class="counts">{{.Direct}}{{if ne .Aggregate .Direct}} / {{.Aggregate}}{{end}} reactions</span>
    {{.Content}}
    <div class="who">{{if .Alias}}{{.Alias}}{{else}}anonymous{{end}}</div>
  </div>
  {{if .Children}}
  <div class="children">
    {{range .Children}}
    <div class="card">
      <span class="counts">{{.Direct}} reactions</span>
      {{.Content}}
      <div class="who">{{if .Alias}}{{.Alias}}{{else}}anonymous{{end}}</div>
    </div>
    {{end}}
  </div>
  {{end}}
  {{end}}
  {{end}}
</body>
</html>`
