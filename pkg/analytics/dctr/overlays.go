package dctr

import (
	"context"
	"fmt"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

// Holder ages outside this range are treated as data entry errors.
const (
	minHolderAge = 18
	maxHolderAge = 120
)

// Cross-tab cells with fewer accounts are left out of the highest/lowest notes.
const minCrossTabCell = 10

// Overlays breaks eligible account take rate down by account age, holder
// age and balance, and crosses balance with both ages.
type Overlays struct {
	analytics.Base
}

func NewOverlays() *Overlays {
	return &Overlays{Base: analytics.Base{
		ModuleID: "dctr.overlays",
		Name:     "DCTR Demographic Overlays",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDebit, pipeline.ColBusiness},
	}}
}

type dimension struct {
	label   string
	buckets calc.Buckets
	value   func(table.Row) (float64, bool)
}

func (m *Overlays) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("DCTR overlays")

	ed := pc.Subsets.EligibleData
	if ed == nil || ed.Len() == 0 {
		return nil, nil
	}

	accountAge := dimension{label: "Account Age", buckets: calc.AccountAge, value: func(r table.Row) (float64, bool) {
		d, ok := r.Date(pipeline.ColDateOpened)
		if !ok || !pc.HasEndDate() {
			return 0, false
		}
		return calc.DaysBetween(d, pc.EndDate), true
	}}
	holderAge := dimension{label: "Age Group", buckets: calc.HolderAge, value: func(r table.Row) (float64, bool) {
		v, ok := r.Number(pipeline.ColHolderAge)
		return v, ok && v >= minHolderAge && v <= maxHolderAge
	}}
	balance := dimension{label: "Balance Range", buckets: calc.DebitBalance, value: func(r table.Row) (float64, bool) {
		return r.Number(pipeline.ColAvgBal)
	}}

	var out []domain.AnalysisResult
	out = append(out, analytics.Part(ctx, "DCTR-10", "DCTR by Account Age", func() ([]domain.AnalysisResult, error) {
		return breakdown(ed, "DCTR-10", "DCTR by Account Age", accountAge)
	})...)
	if ed.Has(pipeline.ColHolderAge) {
		out = append(out, analytics.Part(ctx, "DCTR-11", "DCTR by Account Holder Age", func() ([]domain.AnalysisResult, error) {
			return breakdown(ed, "DCTR-11", "DCTR by Account Holder Age", holderAge)
		})...)
	}
	if ed.Has(pipeline.ColAvgBal) {
		out = append(out, analytics.Part(ctx, "DCTR-12", "DCTR by Balance Range", func() ([]domain.AnalysisResult, error) {
			return breakdown(ed, "DCTR-12", "DCTR by Balance Range", balance)
		})...)
		if ed.Has(pipeline.ColHolderAge) {
			out = append(out, analytics.Part(ctx, "DCTR-13", "Cross-Tab: Holder Age x Balance", func() ([]domain.AnalysisResult, error) {
				return crossTab(ed, "DCTR-13", "Cross-Tab: Holder Age x Balance", holderAge, balance)
			})...)
		}
		out = append(out, analytics.Part(ctx, "DCTR-14", "Cross-Tab: Account Age x Balance", func() ([]domain.AnalysisResult, error) {
			return crossTab(ed, "DCTR-14", "Cross-Tab: Account Age x Balance", accountAge, balance)
		})...)
	}
	return out, nil
}

// breakdown tabulates take rate per bucket of dim with a total row. Empty
// buckets are left out.
func breakdown(f *table.Frame, slideID, title string, dim dimension) ([]domain.AnalysisResult, error) {
	labels, groups := dim.buckets.Split(f, dim.value)

	s := table.NewSheet(dim.label, colTotal, colWith, colWithout, colRate, colPersonalW, colBusinessW)
	for _, l := range labels {
		g := groups[l]
		if g == nil || g.Len() == 0 {
			continue
		}
		row := measure(g).row()
		row[colPersonalW] = float64(g.Count(func(r table.Row) bool { return !pipeline.IsBusiness(r) && pipeline.HasDebit(r) }))
		row[colBusinessW] = float64(g.Count(func(r table.Row) bool { return pipeline.IsBusiness(r) && pipeline.HasDebit(r) }))
		s.AddRow(l, row)
	}
	if s.Empty() {
		return nil, fmt.Errorf("no accounts with a %s value", dim.label)
	}

	res := analytics.Success(slideID, title)
	res.Tables = map[string]*table.Sheet{dim.label: calc.AppendTotal(s, calc.TotalOptions{})}
	hi, lo := extremes(s, 0)
	res.Notes = fmt.Sprintf("Highest: %s (%.1f%%) | Lowest: %s (%.1f%%)", hi.label, hi.rate*100, lo.label, lo.rate*100)
	return []domain.AnalysisResult{res}, nil
}

// crossTab pivots take rate and account counts with rows from one dimension
// and columns from the other.
func crossTab(f *table.Frame, slideID, title string, rows, cols dimension) ([]domain.AnalysisResult, error) {
	rowLabels, byRow := rows.buckets.Split(f, rows.value)

	rates := table.NewSheet(rows.label, cols.buckets.Labels()...)
	counts := table.NewSheet(rows.label, cols.buckets.Labels()...)
	detail := table.NewSheet("Segment", colTotal, colWith, colRate)
	for _, rl := range rowLabels {
		g := byRow[rl]
		if g == nil || g.Len() == 0 {
			continue
		}
		colLabels, byCol := cols.buckets.Split(g, cols.value)
		rateRow, countRow := map[string]float64{}, map[string]float64{}
		for _, cl := range colLabels {
			cell := byCol[cl]
			if cell == nil || cell.Len() == 0 {
				continue
			}
			r := measure(cell)
			rateRow[cl] = r.dctr
			countRow[cl] = float64(r.total)
			detail.AddRow(rl+" x "+cl, map[string]float64{
				colTotal: float64(r.total),
				colWith:  float64(r.withDebit),
				colRate:  r.dctr,
			})
		}
		if len(rateRow) > 0 {
			rates.AddRow(rl, rateRow)
			counts.AddRow(rl, countRow)
		}
	}
	if detail.Empty() {
		return nil, fmt.Errorf("no accounts with both %s and %s", rows.label, cols.label)
	}

	res := analytics.Success(slideID, title)
	res.Tables = map[string]*table.Sheet{"DCTR": rates, "Accounts": counts, "Detail": detail}
	if hi, lo := extremes(detail, minCrossTabCell); hi.label != "" {
		res.Notes = fmt.Sprintf("Highest: %s (%.1f%%) | Lowest: %s (%.1f%%)", hi.label, hi.rate*100, lo.label, lo.rate*100)
	}
	return []domain.AnalysisResult{res}, nil
}

type extreme struct {
	label string
	rate  float64
}

// extremes returns the rows of s with the highest and lowest take rate among
// rows holding more than minAccounts accounts.
func extremes(s *table.Sheet, minAccounts float64) (hi, lo extreme) {
	first := true
	for _, row := range s.Rows() {
		n, _ := s.Value(row.Label, colTotal)
		if n <= minAccounts {
			continue
		}
		v, _ := s.Value(row.Label, colRate)
		if first || v > hi.rate {
			hi = extreme{row.Label, v}
		}
		if first || v < lo.rate {
			lo = extreme{row.Label, v}
		}
		first = false
	}
	return hi, lo
}
