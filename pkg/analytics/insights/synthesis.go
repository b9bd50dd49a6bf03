// Package insights turns the values stored by upstream modules into the
// headline story slides. It reads the result map only, never the table.
package insights

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

const section = "insights"

// CaptureRate is the share of a revenue gap assumed recoverable near term.
const CaptureRate = 0.25

// Unit registers the insight modules.
var Unit = analytics.Unit{
	Name: section,
	Load: func(r analytics.Registry) error {
		return r.Register(NewSynthesis())
	},
}

// Synthesis covers the revenue gap (S1), the branch performance gap (S4) and
// the scorecard of headline metrics (S5).
type Synthesis struct {
	analytics.Base
}

func NewSynthesis() *Synthesis {
	return &Synthesis{Base: analytics.Base{
		ModuleID: "insights.synthesis",
		Name:     "Impact Story: Synthesis",
		Sect:     section,
		Optional: []string{
			results.KeyA3, results.KeyDCTR1, results.KeyDCTR3, results.KeyDCTR9,
			results.KeyRegE1, results.KeyAttrition1, results.KeyValue1,
		},
	}}
}

// Validate never reports a problem: every input is optional and missing
// values read as zero.
func (m *Synthesis) Validate(*pipeline.Context) []string {
	return nil
}

func (m *Synthesis) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("impact synthesis")
	var out []domain.AnalysisResult
	out = append(out, analytics.Part(ctx, "S1", "The Revenue Gap", func() ([]domain.AnalysisResult, error) {
		return revenueGap(pc)
	})...)
	out = append(out, analytics.Part(ctx, "S4", "Branch Performance Gap", func() ([]domain.AnalysisResult, error) {
		return branchGap(pc)
	})...)
	out = append(out, analytics.Part(ctx, "S5", "Scorecard", func() ([]domain.AnalysisResult, error) {
		return scorecard(pc)
	})...)
	return out, nil
}

func revenueGap(pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	v1 := results.GetValue1(pc)
	gap := float64(v1.AcctsWithout) * v1.Delta
	if gap == 0 {
		return nil, errors.New("no gap data from value module")
	}
	realistic := gap * CaptureRate

	s := table.NewSheet("Category", "Revenue")
	s.AddRow("Debit Card Gap", map[string]float64{"Revenue": gap})
	s.AddRow(fmt.Sprintf("Realistic (%.0f%%)", CaptureRate*100), map[string]float64{"Revenue": realistic})

	res := analytics.Success("S1", "The Revenue Gap")
	res.Tables = map[string]*table.Sheet{"Gap": s}
	res.Notes = fmt.Sprintf("%d accounts without debit. Gap: $%.0f | Realistic: $%.0f",
		v1.AcctsWithout, gap, realistic)
	return []domain.AnalysisResult{res}, nil
}

// branchGap prices lifting the worst branch to the midpoint of the best and
// worst take rates.
func branchGap(pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	d9 := results.GetDCTR9(pc)
	if d9.BestDCTR == 0 && d9.WorstDCTR == 0 {
		return nil, errors.New("no branch DCTR data")
	}
	accounts := results.GetA3(pc).EligibleAccounts
	if accounts == 0 {
		accounts = results.GetDCTR1(pc).TotalAccounts
	}
	mid := (d9.BestDCTR + d9.WorstDCTR) / 2
	gapAccounts := math.Round(float64(accounts) * (mid - d9.WorstDCTR))
	gapRevenue := gapAccounts * results.GetValue1(pc).Delta

	s := table.NewSheet("Branch", "DCTR %")
	s.AddRow("Best: "+d9.BestBranch, map[string]float64{"DCTR %": d9.BestDCTR})
	s.AddRow("Median", map[string]float64{"DCTR %": mid})
	s.AddRow("Worst: "+d9.WorstBranch, map[string]float64{"DCTR %": d9.WorstDCTR})

	res := analytics.Success("S4", "Branch Performance Gap")
	res.Tables = map[string]*table.Sheet{"Spread": s}
	res.Notes = fmt.Sprintf("Spread %.1f pts. %.0f accounts to the median = $%.0f",
		(d9.BestDCTR-d9.WorstDCTR)*100, gapAccounts, gapRevenue)
	return []domain.AnalysisResult{res}, nil
}

func scorecard(pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	a3 := results.GetA3(pc)
	d1 := results.GetDCTR1(pc)
	d3 := results.GetDCTR3(pc)
	re := results.GetRegE1(pc)
	at := results.GetAttrition1(pc)
	v1 := results.GetValue1(pc)
	if !a3.Present && !d1.Present && !re.Present && !at.Present && !v1.Present {
		return nil, errors.New("no upstream results")
	}

	s := table.NewSheet("Metric", "Value")
	add := func(present bool, label string, v float64) {
		if present {
			s.AddRow(label, map[string]float64{"Value": v})
		}
	}
	add(a3.Present, "Eligible Accounts", float64(a3.EligibleAccounts))
	add(a3.Present, "Eligibility Rate", a3.EligibilityRate)
	add(d1.Present, "Historical DCTR", d1.OverallDCTR)
	add(d3.Present, "L12M DCTR", d3.DCTR)
	add(re.Present, "Reg E Opt-In Rate", re.OptInRate)
	add(at.Present, "Attrition Rate", at.OverallRate)
	add(at.Present, "L12M Attrition Rate", at.L12MRate)
	add(v1.Present, "Revenue Delta per Account", v1.Delta)
	add(v1.Present, "Potential at L12M DCTR", v1.PotL12M)

	res := analytics.Success("S5", "Scorecard")
	res.Tables = map[string]*table.Sheet{"Scorecard": s}
	res.Notes = fmt.Sprintf("%d headline metrics", s.Len())
	return []domain.AnalysisResult{res}, nil
}
