package dctr

import (
	"context"
	"fmt"
	"strings"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

// Branches is DCTR-9, take rate per branch over eligible accounts.
type Branches struct {
	analytics.Base
}

func NewBranches() *Branches {
	return &Branches{Base: analytics.Base{
		ModuleID: "dctr.branches",
		Name:     "DCTR Branch Analysis",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDebit, pipeline.ColBranch},
		Outputs:  []string{results.KeyDCTR9},
	}}
}

func (m *Branches) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("DCTR branches")
	return analytics.Part(ctx, "DCTR-9", "Branch Debit Card Take Rate", func() ([]domain.AnalysisResult, error) {
		return m.branches(pc), nil
	}), nil
}

func (m *Branches) branches(pc *pipeline.Context) []domain.AnalysisResult {
	ed := pc.Subsets.EligibleData
	if ed == nil || ed.Len() == 0 {
		return nil
	}
	names, groups := ed.Group(func(r table.Row) (string, bool) {
		b := strings.TrimSpace(r.String(pipeline.ColBranch))
		return b, b != ""
	})

	s := table.NewSheet("Branch", colTotal, colWith, colWithout, colRate)
	for _, n := range names {
		s.AddRow(n, measure(groups[n]).row())
	}
	s.SortBy(colRate, true)

	summary := results.DCTR9{TotalBranches: s.Len()}
	if rows := s.Rows(); len(rows) > 0 {
		best, worst := rows[0], rows[len(rows)-1]
		summary.BestBranch = best.Label
		summary.BestDCTR, _ = s.Value(best.Label, colRate)
		summary.WorstBranch = worst.Label
		summary.WorstDCTR, _ = s.Value(worst.Label, colRate)
	}
	results.Set(pc, results.KeyDCTR9, summary)

	res := analytics.Success("DCTR-9", "Branch Debit Card Take Rate")
	res.Tables = map[string]*table.Sheet{"Branches": calc.AppendTotal(s, calc.TotalOptions{})}
	if summary.TotalBranches > 0 {
		res.Notes = fmt.Sprintf("%d branches. Best: %s (%.1f%%). Worst: %s (%.1f%%).",
			summary.TotalBranches, summary.BestBranch, summary.BestDCTR*100,
			summary.WorstBranch, summary.WorstDCTR*100)
	}
	return []domain.AnalysisResult{res}
}
