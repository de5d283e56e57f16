package output

import (
	"html/template"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/flowspec/packages/core/engine"
)

// HTMLFormatter accumulates results and renders a standalone report page.
type HTMLFormatter struct {
	writer io.Writer
	cases  []htmlCase
}

type htmlCase struct {
	Name     string
	File     string
	Status   engine.Status
	Duration int64
	Steps    []*engine.StepResult
}

type htmlReport struct {
	Generated string
	Duration  int64
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Cases     []htmlCase
}

type HTMLOption func(*HTMLFormatter)

func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{writer: os.Stdout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

func (f *HTMLFormatter) FormatResult(file string, result *engine.TestCaseResult) {
	f.cases = append(f.cases, htmlCase{
		Name:     result.Name,
		File:     file,
		Status:   result.Status,
		Duration: result.Duration().Milliseconds(),
		Steps:    result.Steps,
	})
}

func (f *HTMLFormatter) FormatError(err error) {
	// Errors are included in individual step results
}

func (f *HTMLFormatter) FormatHeader(version string) {
	// The page is rendered in one piece by Flush
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(d time.Duration) int64 { return d.Milliseconds() },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>flowspec report</title>
<style>
body { font-family: -apple-system, sans-serif; margin: 2em; color: #222; }
h1 { font-size: 1.4em; }
.summary span { margin-right: 1.5em; }
.passed { color: #1a7f37; }
.failed, .error { color: #cf222e; }
.skipped { color: #9a6700; }
table { border-collapse: collapse; margin: 1em 0 2em; width: 100%; }
th, td { text-align: left; padding: 0.35em 0.8em; border-bottom: 1px solid #ddd; }
th { background: #f6f8fa; }
.detail { color: #57606a; font-size: 0.9em; }
</style>
</head>
<body>
<h1>flowspec report</h1>
<p class="summary">
<span>{{.Total}} steps</span>
<span class="passed">{{.Passed}} passed</span>
<span class="failed">{{.Failed}} failed</span>
<span class="skipped">{{.Skipped}} skipped</span>
<span>{{.Duration}}ms</span>
<span class="detail">{{.Generated}}</span>
</p>
{{range .Cases}}
<h2 class="{{.Status}}">{{.Name}}{{if .File}} <span class="detail">({{.File}})</span>{{end}}</h2>
<table>
<tr><th>Step</th><th>Type</th><th>Status</th><th>Duration</th><th>Retries</th><th>Detail</th></tr>
{{range .Steps}}
<tr>
<td>{{.Name}}</td>
<td>{{.Type}}</td>
<td class="{{.Status}}">{{.Status}}</td>
<td>{{ms .Duration}}ms</td>
<td>{{.RetryCount}}</td>
<td class="detail">{{if .Error}}{{.Error.Message}}{{else if .SkipReason}}{{.SkipReason}}{{end}}</td>
</tr>
{{end}}
</table>
{{end}}
</body>
</html>
`))

// Flush renders the full report.
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	report := htmlReport{
		Generated: time.Now().Format(time.RFC1123),
		Duration:  totalDuration.Milliseconds(),
		Cases:     f.cases,
	}
	for _, c := range f.cases {
		for _, sr := range c.Steps {
			report.Total++
			switch sr.Status {
			case engine.StatusSuccess:
				report.Passed++
			case engine.StatusSkipped:
				report.Skipped++
			default:
				report.Failed++
			}
		}
	}
	return htmlTemplate.Execute(f.writer, report)
}
