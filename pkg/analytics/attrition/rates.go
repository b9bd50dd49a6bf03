package attrition

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

var firstYear = map[string]bool{
	"0-1 Month":   true,
	"1-3 Months":  true,
	"3-6 Months":  true,
	"6-12 Months": true,
}

// Rates covers the overall attrition rate (A9.1), closure duration (A9.2)
// and the open versus closed comparison (A9.3).
type Rates struct {
	analytics.Base
}

func NewRates() *Rates {
	return &Rates{Base: analytics.Base{
		ModuleID: "attrition.rates",
		Name:     "Attrition Rates",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDateClosed},
		Outputs:  []string{results.KeyAttrition1, results.KeyAttrition},
	}}
}

func (m *Rates) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("attrition rates")
	d, err := PrepareData(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare attrition data: %w", err)
	}

	var out []domain.AnalysisResult
	out = append(out, analytics.Part(ctx, "A9.1", "Overall Attrition Rate", func() ([]domain.AnalysisResult, error) {
		return m.overall(pc, d)
	})...)
	out = append(out, analytics.Part(ctx, "A9.2", "Closure Duration", func() ([]domain.AnalysisResult, error) {
		return m.duration(d)
	})...)
	out = append(out, analytics.Part(ctx, "A9.3", "Open vs Closed", func() ([]domain.AnalysisResult, error) {
		return m.openVsClosed(d)
	})...)
	return out, nil
}

func (m *Rates) overall(pc *pipeline.Context, d *Data) ([]domain.AnalysisResult, error) {
	total, closed := d.All.Len(), d.Closed.Len()
	if total == 0 {
		return nil, errors.New("no data")
	}
	overall := calc.Rate(float64(closed), float64(total))

	// Closures in the last twelve months over accounts still open at its start.
	recent := 0.0
	if pc.HasEndDate() && closed > 0 {
		w := calc.TrailingTwelveMonths(pc.EndDate)
		closedInWindow := d.Closed.Count(func(r table.Row) bool {
			c, ok := r.Date(pipeline.ColDateClosed)
			return ok && w.Contains(c)
		})
		openAtStart := d.All.Count(func(r table.Row) bool {
			c, ok := r.Date(pipeline.ColDateClosed)
			return !ok || !c.Before(w.Start)
		})
		recent = calc.Rate(float64(closedInWindow), float64(openAtStart))
	}

	results.Set(pc, results.KeyAttrition1, results.Attrition1{
		Total:       total,
		Closed:      closed,
		OverallRate: overall,
		L12MRate:    recent,
	})

	res := analytics.Success("A9.1", "Overall Attrition Rate")
	if closed > 0 {
		_, byYear := d.Closed.Group(func(r table.Row) (string, bool) {
			c, ok := r.Date(pipeline.ColDateClosed)
			return strconv.Itoa(c.Year()), ok
		})
		yearly := table.NewSheet("Year", "Closures")
		for _, y := range sortedKeys(byYear) {
			yearly.AddRow(y, map[string]float64{"Closures": float64(byYear[y].Len())})
		}
		res.Tables = map[string]*table.Sheet{"Annual Closures": yearly}
	}
	res.Notes = fmt.Sprintf("%.1f%% overall (%d/%d), L12M: %.1f%%", overall*100, closed, total, recent*100)
	return []domain.AnalysisResult{res}, nil
}

func (m *Rates) duration(d *Data) ([]domain.AnalysisResult, error) {
	if d.Closed.Len() == 0 {
		return nil, errors.New("no closed accounts")
	}
	labels, groups := calc.Duration.Split(d.Closed, func(r table.Row) (float64, bool) {
		return r.Number(ColDurationDays)
	})
	counted := 0
	for _, g := range groups {
		counted += g.Len()
	}
	if counted == 0 {
		return nil, errors.New("no duration data")
	}

	s := table.NewSheet("Duration", "Count", "Pct")
	early := 0.0
	for _, l := range labels {
		n := size(groups[l])
		if n == 0 {
			continue
		}
		pct := calc.Rate(float64(n), float64(counted))
		if firstYear[l] {
			early += pct
		}
		s.AddRow(l, map[string]float64{"Count": float64(n), "Pct": pct})
	}

	res := analytics.Success("A9.2", "Closure Duration")
	res.Tables = map[string]*table.Sheet{"Duration": s}
	res.Notes = fmt.Sprintf("%.1f%% of closures happen within the first year", early*100)
	return []domain.AnalysisResult{res}, nil
}

func (m *Rates) openVsClosed(d *Data) ([]domain.AnalysisResult, error) {
	if d.Closed.Len() == 0 {
		return nil, errors.New("no closed accounts")
	}
	s := table.NewSheet("Status", "Count", "Avg Balance")
	for _, g := range []struct {
		label string
		f     *table.Frame
	}{{"Open", d.Open}, {"Closed", d.Closed}} {
		s.AddRow(g.label, map[string]float64{
			"Count":       float64(g.f.Len()),
			"Avg Balance": mean(g.f, pipeline.ColAvgBal),
		})
	}

	res := analytics.Success("A9.3", "Open vs Closed")
	res.Tables = map[string]*table.Sheet{"Comparison": s}
	return []domain.AnalysisResult{res}, nil
}

// mean averages the non-null values of col, 0 when there are none.
func mean(f *table.Frame, col string) float64 {
	if !f.Has(col) {
		return 0
	}
	n := f.Count(func(r table.Row) bool {
		_, ok := r.Number(col)
		return ok
	})
	return calc.Rate(f.Sum(col), float64(n))
}
