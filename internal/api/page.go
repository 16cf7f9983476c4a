package api

import (
	"bytes"
	"html/template"
	"io"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/render"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/session"
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Security Scan Console</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2rem auto; }
.scan-section { border: 1px solid #ddd; padding: 1rem; margin-bottom: 1rem; }
.error { color: #b00020; }
.success { color: #1b5e20; }
.warning { color: #e65100; }
.threat-item { border-left: 3px solid #e65100; margin: .5rem 0; padding: .25rem .75rem; }
.threat-content { font-family: monospace; white-space: pre-wrap; }
</style>
</head>
<body>
<h1>Security Scan Console</h1>

<section class="scan-section" id="file-section">
<h2>Scan a file</h2>
<form id="select-form" action="/select/file" method="post" enctype="multipart/form-data">
<input type="file" id="file-input" name="file">
<button type="submit" id="select-btn">Select</button>
</form>
<div id="file-name">{{.SelectedFile}}</div>
<form id="file-form" action="/scan/file" method="post" enctype="multipart/form-data">
<button type="submit" id="scan-file-btn"{{if not .FileButton.Enabled}} disabled{{end}}>{{.FileButton.Label}}</button>
</form>
</section>

<section class="scan-section" id="text-section">
<h2>Scan text</h2>
<form id="text-form" action="/scan/text" method="post">
<textarea id="text-input" name="text" rows="8" cols="80">{{.Text}}</textarea>
<button type="submit" id="scan-text-btn"{{if not .TextButton.Enabled}} disabled{{end}}>{{.TextButton.Label}}</button>
</form>
</section>

{{.Results}}
</body>
</html>
`

var page = template.Must(template.New("console").Parse(pageTemplate))

type pageData struct {
	SelectedFile string
	Text         string
	FileButton   scan.Affordance
	TextButton   scan.Affordance
	Results      template.HTML
}

// writePage renders the console page for the current session.
func writePage(w io.Writer, ctrl *session.Controller) error {
	snap := ctrl.Snapshot()

	var results bytes.Buffer
	if err := render.WriteHTML(&results, snap.Results); err != nil {
		return err
	}

	data := pageData{
		SelectedFile: snap.SelectedFile,
		Text:         ctrl.Capture().ReadText(),
		Results:      template.HTML(results.String()), //nolint:gosec // escaped by render
	}
	for _, a := range snap.Affordances {
		switch a.Kind {
		case scan.KindFile:
			data.FileButton = a
		case scan.KindText:
			data.TextButton = a
		}
	}

	return page.Execute(w, data)
}
