package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html").Funcs(template.FuncMap{
		"upper":   strings.ToUpper,
		"bytes":   func(n int64) string { return humanize.Bytes(uint64(max(n, 0))) },
		"percent": func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2 Jan 2006, 15:04 MST")
		},
		"label": func(s string) string { return strings.ReplaceAll(s, "_", " ") },
	}).ParseFS(templateFS, "templates/report.html"),
)

// RenderReportHTML renders the case report template
func RenderReportHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}
