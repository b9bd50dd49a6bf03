// Package rege measures Reg E opt-in among eligible personal accounts that
// carry a debit card.
package rege

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

const (
	section       = "rege"
	regEColPrefix = "Reg E Code"

	colTotal   = "Total Accounts"
	colOptedIn = "Opted In"
	colOptOut  = "Opted Out"
	colRate    = "Opt-In Rate %"
)

// Unit registers the Reg E modules.
var Unit = analytics.Unit{
	Name: section,
	Load: func(r analytics.Registry) error {
		return r.Register(NewStatus())
	},
}

// Status covers the overall opt-in rate (A8.1), opt-in by year of opening
// (A8.2) and opt-in by account and holder age (A8.4).
type Status struct {
	analytics.Base
}

func NewStatus() *Status {
	return &Status{Base: analytics.Base{
		ModuleID: "rege.status",
		Name:     "Reg E Opt-In Status",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDebit, pipeline.ColBusiness},
		Outputs:  []string{results.KeyRegE1},
	}}
}

// base is the population Reg E is measured over.
type base struct {
	all    *table.Frame
	l12m   *table.Frame
	column string
	optIn  map[string]struct{}
}

func (b base) optedIn(r table.Row) bool {
	_, ok := b.optIn[strings.TrimSpace(r.String(b.column))]
	return ok
}

func (b base) measure(f *table.Frame) (total, opted int, rate float64) {
	if f == nil {
		return 0, 0, 0
	}
	total = f.Len()
	opted = f.Count(b.optedIn)
	return total, opted, calc.Rate(float64(opted), float64(total))
}

func (b base) row(f *table.Frame) map[string]float64 {
	t, o, r := b.measure(f)
	return map[string]float64{
		colTotal:   float64(t),
		colOptedIn: float64(o),
		colOptOut:  float64(t - o),
		colRate:    r,
	}
}

// DetectColumn returns the latest "Reg E Code" column of f, ordering by the
// last word of the name, or "" when there is none.
func DetectColumn(f *table.Frame) string {
	var cols []string
	for _, c := range f.Columns() {
		if strings.Contains(c, regEColPrefix) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return ""
	}
	sort.SliceStable(cols, func(i, j int) bool { return lastWord(cols[i]) < lastWord(cols[j]) })
	return cols[len(cols)-1]
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[len(fields)-1]
}

// resolveBase resolves the Reg E population of pc: eligible personal accounts with
// a debit card, plus its slice opened within the trailing twelve months.
func resolveBase(pc *pipeline.Context) (base, error) {
	if len(pc.Client.RegEOptIn) == 0 {
		return base{}, errors.New("no Reg E opt-in codes configured")
	}
	col := pc.Client.RegEColumn
	if col == "" && pc.Data != nil {
		col = DetectColumn(pc.Data)
	}
	if col == "" {
		return base{}, errors.New("no Reg E column found in data")
	}
	ep := pc.Subsets.EligiblePersonal
	if ep == nil || ep.Len() == 0 {
		return base{}, errors.New("no eligible personal accounts")
	}
	if !ep.Has(col) {
		return base{}, fmt.Errorf("reg E column %q not in data", col)
	}
	all := ep.Filter(pipeline.HasDebit)
	if all.Len() == 0 {
		return base{}, errors.New("no personal accounts with debit cards")
	}

	b := base{all: all, column: col, optIn: map[string]struct{}{}}
	for _, c := range pc.Client.RegEOptIn {
		b.optIn[strings.TrimSpace(c)] = struct{}{}
	}
	if pc.HasEndDate() {
		w := calc.TrailingTwelveMonths(pc.EndDate)
		b.l12m = all.Filter(func(r table.Row) bool {
			d, ok := r.Date(pipeline.ColDateOpened)
			return ok && w.Contains(d)
		})
	}
	return b, nil
}

func (m *Status) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("client", pc.Client.ID).Msg("Reg E status")

	b, err := resolveBase(pc)
	if err != nil {
		return nil, err
	}
	logger.Debug().Int("base", b.all.Len()).Str("column", b.column).Msg("reg E base")

	var out []domain.AnalysisResult
	out = append(out, analytics.Part(ctx, "A8.1", "Reg E Opt-In Status", func() ([]domain.AnalysisResult, error) {
		return m.overall(pc, b), nil
	})...)
	out = append(out, analytics.Part(ctx, "A8.2", "Reg E Opt-In by Year Opened", func() ([]domain.AnalysisResult, error) {
		return m.byYear(b), nil
	})...)
	out = append(out, analytics.Part(ctx, "A8.4", "Reg E Opt-In by Age", func() ([]domain.AnalysisResult, error) {
		return m.byAge(pc, b), nil
	})...)
	return out, nil
}

func (m *Status) overall(pc *pipeline.Context, b base) []domain.AnalysisResult {
	t, o, r := b.measure(b.all)
	_, _, rl := b.measure(b.l12m)

	s := table.NewSheet("Category", colTotal, colOptedIn, colOptOut, colRate)
	s.AddRow("All-Time", b.row(b.all))
	s.AddRow("Last 12 Months", b.row(b.l12m))

	results.Set(pc, results.KeyRegE1, results.RegE1{
		TotalBase: t,
		OptedIn:   o,
		OptedOut:  t - o,
		OptInRate: r,
		L12MRate:  rl,
	})

	res := analytics.Success("A8.1", "Reg E Opt-In Status")
	res.Tables = map[string]*table.Sheet{"Summary": s}
	res.Notes = fmt.Sprintf("All-time: %.1f%% (%d/%d) | L12M: %.1f%%", r*100, o, t, rl*100)
	return []domain.AnalysisResult{res}
}

func (m *Status) byYear(b base) []domain.AnalysisResult {
	years, groups := b.all.Group(func(r table.Row) (string, bool) {
		d, ok := r.Date(pipeline.ColDateOpened)
		return strconv.Itoa(d.Year()), ok
	})
	if len(years) == 0 {
		return nil
	}
	sort.Strings(years)
	s := table.NewSheet("Year", colTotal, colOptedIn, colOptOut, colRate)
	for _, y := range years {
		s.AddRow(y, b.row(groups[y]))
	}
	s = calc.AppendTotal(s, calc.TotalOptions{Default: calc.OptInRate})

	res := analytics.Success("A8.2", "Reg E Opt-In by Year Opened")
	res.Tables = map[string]*table.Sheet{"Yearly": s}
	res.Notes = fmt.Sprintf("%d years of openings", len(years))
	return []domain.AnalysisResult{res}
}

func (m *Status) byAge(pc *pipeline.Context, b base) []domain.AnalysisResult {
	tables := map[string]*table.Sheet{}
	if pc.HasEndDate() {
		labels, groups := calc.RegEAccountAge.Split(b.all, func(r table.Row) (float64, bool) {
			d, ok := r.Date(pipeline.ColDateOpened)
			return calc.DaysBetween(d, pc.EndDate), ok
		})
		tables["Account Age"] = b.sheet("Account Age", labels, groups)
	}
	if b.all.Has(pipeline.ColHolderAge) {
		labels, groups := calc.RegEHolderAge.Split(b.all, func(r table.Row) (float64, bool) {
			return r.Number(pipeline.ColHolderAge)
		})
		tables["Holder Age"] = b.sheet("Holder Age", labels, groups)
	}
	if len(tables) == 0 {
		return nil
	}
	res := analytics.Success("A8.4", "Reg E Opt-In by Age")
	res.Tables = tables
	return []domain.AnalysisResult{res}
}

func (b base) sheet(label string, labels []string, groups map[string]*table.Frame) *table.Sheet {
	s := table.NewSheet(label, colTotal, colOptedIn, colOptOut, colRate)
	for _, l := range labels {
		s.AddRow(l, b.row(groups[l]))
	}
	return calc.AppendTotal(s, calc.TotalOptions{Default: calc.OptInRate})
}
