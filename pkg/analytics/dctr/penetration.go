package dctr

import (
	"context"
	"errors"
	"fmt"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

// Penetration covers the core take rates: historical (DCTR-1), open versus
// eligible (DCTR-2), last twelve months (DCTR-3) and the personal/business
// split (DCTR-4/5).
type Penetration struct {
	analytics.Base
}

func NewPenetration() *Penetration {
	return &Penetration{Base: analytics.Base{
		ModuleID: "dctr.penetration",
		Name:     "DCTR Penetration",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDebit, pipeline.ColBusiness},
		Outputs:  []string{results.KeyDCTR1, results.KeyDCTR3},
	}}
}

func (m *Penetration) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("DCTR penetration")
	var out []domain.AnalysisResult
	out = append(out, analytics.Part(ctx, "DCTR-1", "Historical Debit Card Take Rate", func() ([]domain.AnalysisResult, error) {
		return m.historical(pc), nil
	})...)
	out = append(out, analytics.Part(ctx, "DCTR-2", "Open vs Eligible DCTR", func() ([]domain.AnalysisResult, error) {
		return m.openVsEligible(pc), nil
	})...)
	out = append(out, analytics.Part(ctx, "DCTR-3", "Last 12 Months DCTR", func() ([]domain.AnalysisResult, error) {
		return m.lastTwelve(pc)
	})...)
	out = append(out, analytics.Part(ctx, "DCTR-4/5", "Personal vs Business DCTR", func() ([]domain.AnalysisResult, error) {
		return m.personalBusiness(pc), nil
	})...)
	return out, nil
}

func (m *Penetration) historical(pc *pipeline.Context) []domain.AnalysisResult {
	ed := pc.Subsets.EligibleData
	if ed == nil || ed.Len() == 0 {
		return nil
	}
	h := historical(pc, ed)
	results.Set(pc, results.KeyDCTR1, results.DCTR1{
		TotalAccounts: h.total.total,
		WithDebit:     h.total.withDebit,
		OverallDCTR:   h.total.dctr,
		RecentDCTR:    h.recent.dctr,
		YearsCovered:  h.years,
	})

	res := analytics.Success("DCTR-1", "Historical Debit Card Take Rate")
	res.Tables = map[string]*table.Sheet{"Yearly": h.yearly, "Decade": h.decade}
	res.Notes = fmt.Sprintf("Overall: %.1f%% | Recent: %.1f%% | Accounts: %d",
		h.total.dctr*100, h.recent.dctr*100, h.total.total)
	return []domain.AnalysisResult{res}
}

func (m *Penetration) openVsEligible(pc *pipeline.Context) []domain.AnalysisResult {
	oa, ed := pc.Subsets.OpenAccounts, pc.Subsets.EligibleData
	if oa == nil || ed == nil || oa.Len() == 0 || ed.Len() == 0 {
		return nil
	}
	hist := results.GetDCTR1(pc)
	if !hist.Present {
		return nil
	}
	open := historical(pc, oa).total

	s := table.NewSheet("Account Group", colTotal, colWith, colRate)
	s.AddRow("All Open", map[string]float64{
		colTotal: float64(oa.Len()), colWith: float64(open.withDebit), colRate: open.dctr,
	})
	s.AddRow("Eligible Only", map[string]float64{
		colTotal: float64(hist.TotalAccounts), colWith: float64(hist.WithDebit), colRate: hist.OverallDCTR,
	})

	res := analytics.Success("DCTR-2", "Open vs Eligible DCTR")
	res.Tables = map[string]*table.Sheet{"Comparison": s}
	res.Notes = fmt.Sprintf("Eligible %.1f%% vs open %.1f%% (%+.1f pts)",
		hist.OverallDCTR*100, open.dctr*100, (hist.OverallDCTR-open.dctr)*100)
	return []domain.AnalysisResult{res}
}

func (m *Penetration) lastTwelve(pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	if !pc.HasEndDate() {
		return nil, errors.New("reporting period unknown")
	}
	ed := pc.Subsets.EligibleData
	if ed == nil || ed.Len() == 0 {
		return nil, nil
	}
	recent := lastTwelveMonths(pc, ed)
	s, total, active := monthly(pc, recent, calc.MonthsIn(calc.TrailingTwelveMonths(pc.EndDate)))
	results.Set(pc, results.KeyDCTR3, results.DCTR3{
		TotalAccounts: total.total,
		WithDebit:     total.withDebit,
		DCTR:          total.dctr,
	})

	res := analytics.Success("DCTR-3", "Last 12 Months DCTR")
	res.Tables = map[string]*table.Sheet{"Monthly": s}
	res.Notes = fmt.Sprintf("L12M: %.1f%% across %d accounts, %d active months",
		total.dctr*100, total.total, active)
	return []domain.AnalysisResult{res}, nil
}

func (m *Penetration) personalBusiness(pc *pipeline.Context) []domain.AnalysisResult {
	ep, eb := pc.Subsets.EligiblePersonal, pc.Subsets.EligibleBusiness
	if ep == nil || eb == nil {
		return nil
	}
	p, b := measure(ep), measure(eb)
	s := table.NewSheet("Account Type", colTotal, colWith, colWithout, colRate)
	s.AddRow("Personal", p.row())
	s.AddRow("Business", b.row())
	s = calc.AppendTotal(s, calc.TotalOptions{})

	res := analytics.Success("DCTR-4/5", "Personal vs Business DCTR")
	res.Tables = map[string]*table.Sheet{"Split": s}
	res.Notes = fmt.Sprintf("Personal: %.1f%% | Business: %.1f%%", p.dctr*100, b.dctr*100)
	return []domain.AnalysisResult{res}
}
