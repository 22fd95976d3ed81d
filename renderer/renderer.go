// Package renderer renders the journal as markdown, for the terminal or HTML,
// and as a PDF report.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	journal "github.com/etnz/stockjournal"
)

//go:embed templates/*.md
var templatesFS embed.FS

var templates, _ = fs.Sub(templatesFS, "templates")

// Report is the full journal as printed by the report and the PDF export.
type Report struct {
	Date     time.Time
	Exchange string
	Summary  journal.Summary
	Strategy journal.Strategy
	Analysis *journal.Analysis // latest, may be nil
}

// NewReport snapshots b on date.
func NewReport(b *journal.Book, exchange string, date time.Time) *Report {
	return &Report{
		Date:     date,
		Exchange: exchange,
		Summary:  b.Summary(),
		Strategy: b.Strategy,
		Analysis: b.Latest(),
	}
}

// RenderReport renders the whole journal.
func RenderReport(r *Report) string {
	partials := map[string]string{
		"summary":  "summary.md",
		"holdings": "holdings.md",
		"strategy": "strategy.md",
		"analysis": "analysis.md",
	}
	return renderTemplate("report", "report.md", partials, r)
}

// RenderPositions renders the dashboard: totals and holdings.
func RenderPositions(exchange string, s journal.Summary) string {
	partials := map[string]string{
		"summary":  "summary.md",
		"holdings": "holdings.md",
	}
	data := struct {
		Exchange string
		Summary  journal.Summary
	}{exchange, s}
	return renderTemplate("positions", "positions.md", partials, data)
}

// RenderTransactions renders a position and its transactions.
func RenderTransactions(p *journal.Position) string {
	return renderTemplate("transactions", "transactions.md", nil, p)
}

// RenderStrategy renders the manifesto.
func RenderStrategy(s journal.Strategy) string {
	return renderTemplate("strategy", "strategy.md", nil, s)
}

// RenderAnalysis renders one analysis in full.
func RenderAnalysis(a *journal.Analysis) string {
	return renderTemplate("analysis", "analysis.md", nil, a)
}

// RenderHistory renders the list of analyses.
func RenderHistory(history []*journal.Analysis) string {
	return renderTemplate("history", "history.md", nil, history)
}

// RenderRebalance renders a rebalancing plan.
func RenderRebalance(p *journal.RebalancePlan) string {
	return renderTemplate("rebalance", "rebalance.md", nil, p)
}

// RenderProjection renders one row per year of a projection.
func RenderProjection(points []journal.ProjectionPoint) string {
	yearly := make([]journal.ProjectionPoint, 0, len(points)/12+1)
	for _, p := range points {
		if p.Month%12 == 0 {
			yearly = append(yearly, p)
		}
	}
	if n := len(points); n > 0 && points[n-1].Month%12 != 0 {
		yearly = append(yearly, points[n-1])
	}
	return renderTemplate("projection", "projection.md", nil, yearly)
}

var funcs = template.FuncMap{
	"date":     func(t time.Time) string { return t.Format(time.DateOnly) },
	"datetime": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
	"score":    func(f *float64) string { return fmt.Sprintf("%.0f", *f) },
	"percent":  func(f *float64) string { return fmt.Sprintf("%.1f%%", *f) },
	"year": func(month int) string {
		if month%12 == 0 {
			return fmt.Sprint(month / 12)
		}
		return fmt.Sprintf("%d (+%d months)", month/12, month%12)
	},
	"cell":     cell,
	"quote":    quote,
	"truncate": truncate,
}

// cell makes s safe inside a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// quote renders s as a markdown block quote.
func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight("> "+l, " ")
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
