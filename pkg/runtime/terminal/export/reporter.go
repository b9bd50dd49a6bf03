package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/batch"
	"github.com/de-tools/account-review/pkg/models/domain"
)

type TableConfig struct {
	MinWidth int
	MaxWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		MinWidth: 4,
		MaxWidth: 60,
	}
}

// Reporter prints run summaries and listings as text tables.
type Reporter struct {
	writer io.Writer
	config TableConfig
	tmpl   *template.Template
}

type grid struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer string
	widths []int
}

const gridTemplate = `
{{- define "grid"}}
{{if .Title}}=== {{.Title}} ===
{{end}}{{separator .}}
{{formatRow . .Header}}
{{separator .}}
{{range .Rows}}{{formatRow $ .}}
{{end}}{{separator .}}
{{if .Footer}}{{.Footer}}
{{end}}{{end}}`

const runTemplate = `
Run {{.Run.ID}}
Client: {{.Run.ClientID}}{{if .Run.ClientName}} ({{.Run.ClientName}}){{end}}  Month: {{.Run.Month}}
Status: {{upper .Run.Status}}  Slides: {{.Run.SlideCount}}
{{- if .Run.Error}}
Error: {{.Run.Error}}{{end}}
{{template "grid" .Steps}}{{if .Modules.Rows}}{{template "grid" .Modules}}{{end}}
{{- if .Exports}}
Deliverables:
{{range .Exports}}  {{.}}
{{end}}{{end}}`

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	c := &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}

	funcMap := template.FuncMap{
		"upper": func(s domain.RunStatus) string { return strings.ToUpper(string(s)) },
		"formatRow": func(g *grid, cells []string) string {
			parts := make([]string, len(g.widths))
			for i, w := range g.widths {
				cell := ""
				if i < len(cells) {
					cell = c.clip(cells[i])
				}
				parts[i] = fmt.Sprintf(" %-*s ", w, cell)
			}
			return "|" + strings.Join(parts, "|") + "|"
		},
		"separator": func(g *grid) string {
			parts := make([]string, len(g.widths))
			for i, w := range g.widths {
				parts[i] = strings.Repeat("-", w+2)
			}
			return "+" + strings.Join(parts, "+") + "+"
		},
	}
	c.tmpl = template.Must(template.New("report").Funcs(funcMap).Parse(gridTemplate))
	template.Must(c.tmpl.New("run").Parse(runTemplate))
	return c
}

func (c *Reporter) clip(s string) string {
	r := []rune(s)
	if len(r) <= c.config.MaxWidth {
		return s
	}
	return string(r[:c.config.MaxWidth-3]) + "..."
}

func (c *Reporter) newGrid(title string, header []string, rows [][]string) *grid {
	g := &grid{Title: title, Header: header, Rows: rows, widths: make([]int, len(header))}
	measure := func(cells []string) {
		for i := range g.widths {
			if i >= len(cells) {
				continue
			}
			if n := len([]rune(c.clip(cells[i]))); n > g.widths[i] {
				g.widths[i] = n
			}
		}
	}
	measure(header)
	for _, r := range rows {
		measure(r)
	}
	for i, w := range g.widths {
		if w < c.config.MinWidth {
			g.widths[i] = c.config.MinWidth
		}
	}
	return g
}

func (c *Reporter) render(name string, data any) error {
	if err := c.tmpl.ExecuteTemplate(c.writer, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// Run prints one run with its steps, module outcomes and deliverables.
func (c *Reporter) Run(run domain.Run, exports []string) error {
	steps := make([][]string, 0, len(run.Steps))
	for _, s := range run.Steps {
		steps = append(steps, []string{s.Name, status(s.Success), seconds(s.Elapsed), s.Error})
	}
	modules := make([][]string, 0, len(run.Modules))
	for _, o := range run.Modules {
		detail := o.Error
		if len(o.Problems) > 0 {
			detail = strings.Join(o.Problems, "; ")
		}
		modules = append(modules, []string{o.ModuleID, string(o.Status), fmt.Sprint(o.Results), seconds(o.Elapsed), detail})
	}

	return c.render("run", struct {
		Run     domain.Run
		Steps   *grid
		Modules *grid
		Exports []string
	}{
		Run:     run,
		Steps:   c.newGrid("Steps", []string{"Step", "Status", "Elapsed", "Error"}, steps),
		Modules: c.newGrid("Modules", []string{"Module", "Status", "Results", "Elapsed", "Detail"}, modules),
		Exports: exports,
	})
}

// Batch prints one line per client and a success count.
func (c *Reporter) Batch(results []batch.BatchResult) error {
	rows := make([][]string, 0, len(results))
	var total time.Duration
	for _, r := range results {
		total += r.Elapsed
		rows = append(rows, []string{r.ClientID, r.Name, status(r.Success), fmt.Sprint(r.SlideCount), seconds(r.Elapsed), r.Error})
	}
	g := c.newGrid("Batch", []string{"Client", "Name", "Status", "Slides", "Elapsed", "Error"}, rows)
	g.Footer = fmt.Sprintf("Done: %d/%d succeeded (%s)", batch.Succeeded(results), len(results), seconds(total))
	return c.render("grid", g)
}

// Runs prints a history listing.
func (c *Reporter) Runs(runs []domain.Run) error {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{r.ID, r.ClientID, r.Month, string(r.Status), r.StartedAt.Format("2006-01-02 15:04"), finished, fmt.Sprint(r.SlideCount)})
	}
	g := c.newGrid("Runs", []string{"ID", "Client", "Month", "Status", "Started", "Finished", "Slides"}, rows)
	g.Footer = fmt.Sprintf("%d run(s)", len(runs))
	return c.render("grid", g)
}

// Modules prints the modules in execution order.
func (c *Reporter) Modules(modules []analytics.Module) error {
	rows := make([][]string, 0, len(modules))
	for i, m := range modules {
		rows = append(rows, []string{fmt.Sprint(i + 1), m.ID(), m.DisplayName(), m.Section(), strings.Join(m.RequiredColumns(), ", ")})
	}
	g := c.newGrid("Modules", []string{"#", "ID", "Name", "Section", "Required columns"}, rows)
	g.Footer = fmt.Sprintf("%d module(s) registered", len(modules))
	return c.render("grid", g)
}

func status(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAILED"
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
