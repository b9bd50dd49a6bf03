package output

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

// DeckBuilder renders the slide deck of a run. Builders receive every
// artifact and must skip unsuccessful ones.
type DeckBuilder interface {
	Build(ctx context.Context, path string, meta WorkbookMeta, slides []domain.AnalysisResult) error
}

// DeckPath is where a run's deck outline is written inside dir.
func DeckPath(dir, clientID, month string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_deck.txt", clientID, month))
}

const outlineTemplate = `{{.Meta.ClientID}} {{.Meta.ClientName}} | {{.Meta.Month}}
{{range .Sections}}
== {{upper .Name}} ==
{{range .Slides}}
[{{.SlideID}}] {{.Title}}{{if .ChartPath}} (chart: {{.ChartPath}}){{end}}
{{- if .Notes}}
  {{.Notes}}{{end}}
{{- range $name, $sheet := .Tables}}
  {{$name}}:
{{table $sheet}}{{end}}
{{end}}{{end}}`

// OutlineDeck writes a plain-text outline of the deck, one block per slide
// grouped by section.
type OutlineDeck struct {
	tmpl *template.Template
}

func NewOutlineDeck() (*OutlineDeck, error) {
	t, err := template.New("deck").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
		"table": renderSheet,
	}).Parse(outlineTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &OutlineDeck{tmpl: t}, nil
}

func (d *OutlineDeck) Build(ctx context.Context, path string, meta WorkbookMeta, slides []domain.AnalysisResult) error {
	sections := Group(slides)
	if len(sections) == 0 {
		zerolog.Ctx(ctx).Warn().Msg("no successful slides, deck skipped")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fault.Wrap(fault.KindOutput, err, "create deck directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return fault.Wrap(fault.KindOutput, err, "create deck %s", path)
	}
	defer f.Close()

	data := struct {
		Meta     WorkbookMeta
		Sections []SectionSlides
	}{meta, sections}
	if err := d.tmpl.Execute(f, data); err != nil {
		return fault.Wrap(fault.KindOutput, err, "render deck")
	}
	zerolog.Ctx(ctx).Info().Str("path", filepath.Base(path)).Int("sections", len(sections)).Msg("deck written")
	return nil
}

func renderSheet(s *table.Sheet) string {
	if s.Empty() {
		return "    (empty)"
	}
	var b strings.Builder
	b.WriteString("    " + s.LabelColumn + " | " + strings.Join(s.Columns, " | "))
	for _, r := range s.Rows() {
		b.WriteString("\n    " + r.Label)
		for _, v := range r.Values {
			if math.IsNaN(v) {
				b.WriteString(" | -")
				continue
			}
			b.WriteString(fmt.Sprintf(" | %.4g", v))
		}
	}
	return b.String()
}
