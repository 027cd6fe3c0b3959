package ui

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"statwizard/domain/analysis"
	"statwizard/internal/wizard"
)

// renderMarkdown converts markdown to HTML. Raw HTML in the source is
// escaped, so the output is safe to embed.
func renderMarkdown(src string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML([]byte(src), p, r))
}

// interpretationHTML renders the interpretation paragraphs of a result.
func interpretationHTML(lines []string) template.HTML {
	return renderMarkdown(strings.Join(lines, "\n\n"))
}

// formatDuration prints a run duration as "850ms" or "2.41s".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatMillis(ms int64) string {
	return formatDuration(time.Duration(ms) * time.Millisecond)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func severityClass(s analysis.Severity) string {
	switch s {
	case analysis.SeverityCritical:
		return "critical"
	case analysis.SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

func plotSrc(p string) template.URL {
	return template.URL("data:image/png;base64," + p)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"add":            func(a, b int) int { return a + b },
		"markdown":       renderMarkdown,
		"interpretation": interpretationHTML,
		"duration":       formatDuration,
		"millis":         formatMillis,
		"formatTime":     formatTime,
		"severity":       severityClass,
		"plotSrc":        plotSrc,
		"running":        func(p wizard.Phase) bool { return p == wizard.PhaseRunning },
		"failed":         func(p wizard.Phase) bool { return p == wizard.PhaseFailed },
	}
}
