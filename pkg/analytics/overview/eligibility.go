package overview

import (
	"context"
	"fmt"
	"math"
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
	colMailable = "Mailable?"

	NoEligibleAccounts = "no eligible personal/business accounts"
)

// Eligibility is A3, the eligibility funnel.
type Eligibility struct {
	analytics.Base
}

func NewEligibility() *Eligibility {
	return &Eligibility{Base: analytics.Base{
		ModuleID: "overview.eligibility",
		Name:     "Eligibility Funnel",
		Sect:     section,
		Columns:  []string{pipeline.ColStatCode, pipeline.ColProductCode, pipeline.ColBusiness},
		Outputs:  []string{results.KeyA3},
	}}
}

// Validate also requires the personal/business split, which is only derived
// when eligible status codes are configured.
func (m *Eligibility) Validate(pc *pipeline.Context) []string {
	problems := m.Base.Validate(pc)
	if len(problems) > 0 {
		return problems
	}
	if pc.Subsets.EligiblePersonal == nil || pc.Subsets.EligibleBusiness == nil {
		return []string{NoEligibleAccounts}
	}
	return nil
}

type stage struct {
	name  string
	count int
}

func (m *Eligibility) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("A3: eligibility funnel")
	subs := pc.Subsets
	total := pc.Data.Len()

	open := subs.OpenAccounts
	openCount := 0
	if open != nil {
		openCount = open.Len()
	}

	statFiltered := filterIn(open, pipeline.ColStatCode, pc.Client.EligibleStatusCodes)
	prodFiltered := filterIn(statFiltered, pipeline.ColProductCode, pc.Client.EligibleProductCodes)

	stages := []stage{
		{"1. Total Accounts", total},
		{"2. Open Accounts", openCount},
		{"3. + Eligible Stat Code", size(statFiltered)},
		{"4. + Eligible Product Code", size(prodFiltered)},
	}
	includeMailable := len(pc.Client.EligibleMailable) > 0 && pc.Data.Has(colMailable)
	if includeMailable {
		stages = append(stages, stage{"5. + Mailable", size(filterIn(prodFiltered, colMailable, pc.Client.EligibleMailable))})
	}
	eligible := subs.EligibleData.Len()
	stages = append(stages, stage{fmt.Sprintf("%d. ELIGIBLE", len(stages)+1), eligible})

	funnel := table.NewSheet("Stage", "Count", "Pct of Total", "Drop-off", "Drop-off %")
	biggest, biggestPct := "N/A", 0.0
	for i, st := range stages {
		row := map[string]float64{
			"Count":        float64(st.count),
			"Pct of Total": ratio(st.count, total),
			"Drop-off":     0,
			"Drop-off %":   0,
		}
		if i > 0 {
			prev := stages[i-1].count
			row["Drop-off"] = float64(prev - st.count)
			row["Drop-off %"] = ratio(prev-st.count, prev)
		}
		if row["Drop-off %"] > biggestPct {
			biggest, biggestPct = st.name, row["Drop-off %"]
		}
		funnel.AddRow(st.name, row)
	}

	personal, business := subs.EligiblePersonal.Len(), subs.EligibleBusiness.Len()
	if eligible > 0 {
		funnel.AddRow("   -> Personal", map[string]float64{
			"Count": float64(personal), "Pct of Total": ratio(personal, eligible),
			"Drop-off": math.NaN(), "Drop-off %": math.NaN(),
		})
		funnel.AddRow("   -> Business", map[string]float64{
			"Count": float64(business), "Pct of Total": ratio(business, eligible),
			"Drop-off": math.NaN(), "Drop-off %": math.NaN(),
		})
	}

	a3 := results.A3{
		TotalAccounts:    total,
		OpenAccounts:     openCount,
		EligibleAccounts: eligible,
		Personal:         personal,
		Business:         business,
		EligibilityRate:  ratio(eligible, total),
		Funnel:           funnel,
	}
	results.Set(pc, results.KeyA3, a3)

	res := analytics.Success("A3", "Eligibility Funnel")
	res.Tables = map[string]*table.Sheet{"Funnel": funnel}
	res.Notes = fmt.Sprintf("%d of %d accounts eligible (%.1f%%). Biggest drop-off at %s.",
		eligible, total, a3.EligibilityRate*100, strings.TrimSpace(biggest))
	return []domain.AnalysisResult{res}, nil
}

func filterIn(f *table.Frame, col string, allowed []string) *table.Frame {
	if f == nil || len(allowed) == 0 || !f.Has(col) {
		return f
	}
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return f.Filter(func(r table.Row) bool {
		_, ok := set[strings.TrimSpace(r.String(col))]
		return ok
	})
}

func size(f *table.Frame) int {
	if f == nil {
		return 0
	}
	return f.Len()
}

func ratio(num, den int) float64 {
	return calc.Rate(float64(num), float64(den))
}
