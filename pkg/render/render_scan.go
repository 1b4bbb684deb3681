package render

import (
	"html/template"
	"io"

	"go.uber.org/zap"

	"github.com/yumyai/afscan/logger"
	"github.com/yumyai/afscan/pkg/aggregate"
)

var scanPageTemplate *template.Template

// ScanPageData describes the state of a scan job for rendering.
type ScanPageData struct {
	JobID                  string
	Sample                 string
	Status                 string
	ErrorMessage           string
	RawFindings            int
	Summary                []aggregate.SummaryEntry
	Done                   bool
	ShouldRefresh          bool
	RefreshIntervalSeconds int
}

func init() {
	mainTmpl := `<!DOCTYPE html>
<html>
<head>
	<title>afscan {{ .Sample }}</title>
	<style>
		table { border-collapse: collapse; }
		th, td { border: 1px solid #999; padding: 2px 8px; }
	</style>
	{{ if .ShouldRefresh }}
	<script>
		setTimeout(function () { window.location.reload(); }, {{ mul .RefreshIntervalSeconds 1000 }});
	</script>
	{{ end }}
</head>
<body>
	<h1>Resistance mutation scan</h1>
	<p><strong>Job ID:</strong> {{ .JobID }}</p>
	<p><strong>Sample:</strong> {{ .Sample }}</p>
	<p><strong>Status:</strong> {{ .Status }}</p>
	{{ if .ErrorMessage }}
		<p style="color: red;">{{ .ErrorMessage }}</p>
	{{ else if not .Done }}
		<p>The scan is still running. This page refreshes every {{ .RefreshIntervalSeconds }} seconds.</p>
	{{ else if .Summary }}
		<p>{{ .RawFindings }} supporting read alignments.</p>
		<table>
			<tr><th>Gene</th><th>Position</th><th>Ref</th><th>Mut</th><th>Fungicide</th><th>Support reads</th></tr>
			{{ range .Summary }}
			<tr><td>{{ .Gene }}</td><td>{{ .Position }}</td><td>{{ .Reference }}</td><td>{{ .Mutation }}</td><td>{{ .Compound }}</td><td>{{ .SupportReads }}</td></tr>
			{{ end }}
		</table>
	{{ else }}
		<p>No cataloged resistance mutations found.</p>
	{{ end }}
</body>
</html>`

	scanPageTemplate = template.New("scan_page").Funcs(template.FuncMap{
		"mul": func(a, b int) int { return a * b },
	})
	scanPageTemplate = template.Must(scanPageTemplate.Parse(mainTmpl))
}

// RenderScanPage writes the HTML status page of a scan job.
func RenderScanPage(w io.Writer, data ScanPageData) error {
	logger.Debug("Rendering scan page", zap.String("job_id", data.JobID), zap.String("status", data.Status))
	return scanPageTemplate.Execute(w, data)
}
