package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"lexshelf/api/internal/library"
)

//go:embed templates/*.html
var templateFS embed.FS

var nodeTemplate = template.Must(template.New("node.html").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
	"humanSize": humanSize,
}).ParseFS(templateFS, "templates/node.html"))

// PrintData holds data for node template rendering
type PrintData struct {
	Title       string
	Subtitle    string
	ContentHTML template.HTML
	Attachments []library.AttachmentRef
	Accent      template.CSS
	Lang        string
	Dir         string
	GeneratedAt time.Time
}

// NewPrintData builds the template input for node. The content is trusted
// admin-authored HTML and is rendered unescaped.
func NewPrintData(node library.Node, parentName string, accent string, now time.Time) PrintData {
	if accent == "" {
		accent = "#333"
	}
	return PrintData{
		Title:       node.Name(),
		Subtitle:    parentName,
		ContentHTML: template.HTML(node.Content()),
		Attachments: node.Attachments(),
		Accent:      template.CSS(accent),
		Lang:        "ar",
		Dir:         "rtl",
		GeneratedAt: now,
	}
}

// RenderNodeHTML renders the print template with provided data
func RenderNodeHTML(data PrintData) (string, error) {
	var buf bytes.Buffer
	if err := nodeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
