// Package value prices the revenue difference between accounts with and
// without a debit card and projects it onto accounts that lack one.
package value

import (
	"context"
	"errors"
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

const section = "value"

var periodHints = []string{"l12m", "12m", "12 month", "last 12", "ltm", "trailing"}

// Unit registers the value module.
var Unit = analytics.Unit{
	Name: section,
	Load: func(r analytics.Registry) error {
		return r.Register(NewAnalysis())
	},
}

// Analysis is A11.1, the value of a debit card.
type Analysis struct {
	analytics.Base
}

func NewAnalysis() *Analysis {
	return &Analysis{Base: analytics.Base{
		ModuleID: "value.analysis",
		Name:     "Value Analysis",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDebit, pipeline.ColBusiness},
		Outputs:  []string{results.KeyValue1},
		Optional: []string{results.KeyDCTR1, results.KeyDCTR3},
	}}
}

// FindColumn returns the first column whose name contains keyword, preferring
// one that also names a trailing twelve month period.
func FindColumn(f *table.Frame, keyword string) string {
	cols := f.Columns()
	for _, c := range cols {
		l := strings.ToLower(c)
		if strings.Contains(l, keyword) && strings.Contains(l, "12") {
			return c
		}
	}
	for _, c := range cols {
		l := strings.ToLower(c)
		if !strings.Contains(l, keyword) {
			continue
		}
		for _, p := range periodHints {
			if strings.Contains(l, p) {
				return c
			}
		}
	}
	for _, c := range cols {
		if strings.Contains(strings.ToLower(c), keyword) {
			return c
		}
	}
	return ""
}

type revenue struct {
	accounts int
	nsf      float64
	ic       float64
}

func (r revenue) total() float64 { return r.nsf + r.ic }

func (r revenue) perAccount() float64 {
	return calc.Rate(r.total(), float64(r.accounts))
}

func (m *Analysis) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("A11.1: value of a debit card")
	return analytics.Part(ctx, "A11.1", "Value of a Debit Card", func() ([]domain.AnalysisResult, error) {
		return m.debitValue(pc)
	}), nil
}

func (m *Analysis) debitValue(pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	ep := pc.Subsets.EligiblePersonal
	if ep == nil || ep.Len() == 0 {
		return nil, errors.New("no eligible personal accounts")
	}

	// Accounts active at some point in the reporting window.
	active := ep
	if ep.Has(pipeline.ColDateClosed) && pc.HasEndDate() {
		active = ep.Filter(func(r table.Row) bool {
			shut, ok := r.Date(pipeline.ColDateClosed)
			return !ok || !shut.Before(pc.StartDate)
		})
	}

	spendCol, itemsCol := FindColumn(active, "spend"), FindColumn(active, "items")
	if spendCol == "" || itemsCol == "" {
		return nil, errors.New("missing spend/items columns")
	}

	fee, ic := pc.Client.NSFODFee, pc.Client.ICRate
	var with, without revenue
	active.Each(func(r table.Row) {
		g := &without
		if pipeline.HasDebit(r) {
			g = &with
		}
		g.accounts++
		g.nsf += zeroIfMissing(r.Number(itemsCol)) * fee
		g.ic += zeroIfMissing(r.Number(spendCol)) * ic
	})
	if with.accounts == 0 || without.accounts == 0 {
		return nil, errors.New("need accounts both with and without a debit card")
	}

	delta := math.Round((with.perAccount()-without.perAccount())*100) / 100

	hist := calc.Rate(float64(ep.Count(pipeline.HasDebit)), float64(ep.Len()))
	if d1 := results.GetDCTR1(pc); d1.Present {
		hist = d1.OverallDCTR
	}
	recent := hist
	if d3 := results.GetDCTR3(pc); d3.Present {
		recent = d3.DCTR
	}

	v := results.Value1{
		AcctsWith:     with.accounts,
		AcctsWithout:  without.accounts,
		RevPerWith:    with.perAccount(),
		RevPerWithout: without.perAccount(),
		Delta:         delta,
		HistDCTR:      hist,
		L12MDCTR:      recent,
		PotHist:       float64(without.accounts) * delta * hist,
		PotL12M:       float64(without.accounts) * delta * recent,
		Pot100:        float64(without.accounts) * delta,
	}
	results.Set(pc, results.KeyValue1, v)

	comparison := table.NewSheet("Debit Card Status", "Accounts", "NSF/OD Revenue", "Interchange Revenue", "Total Revenue", "Revenue Per Account")
	for _, g := range []struct {
		label string
		r     revenue
	}{{"With Debit Card", with}, {"Without Debit Card", without}} {
		comparison.AddRow(g.label, map[string]float64{
			"Accounts":            float64(g.r.accounts),
			"NSF/OD Revenue":      g.r.nsf,
			"Interchange Revenue": g.r.ic,
			"Total Revenue":       g.r.total(),
			"Revenue Per Account": g.r.perAccount(),
		})
	}
	impact := table.NewSheet("Scenario", "Potential Revenue")
	impact.AddRow(fmt.Sprintf("At %.0f%% Historical DCTR", hist*100), map[string]float64{"Potential Revenue": v.PotHist})
	impact.AddRow(fmt.Sprintf("At %.0f%% TTM DCTR", recent*100), map[string]float64{"Potential Revenue": v.PotL12M})
	impact.AddRow("At 100% Adoption", map[string]float64{"Potential Revenue": v.Pot100})

	res := analytics.Success("A11.1", "Value of a Debit Card")
	res.Tables = map[string]*table.Sheet{"Comparison": comparison, "Impact": impact}
	res.Notes = fmt.Sprintf("$%.2f more revenue per account with debit. %d accounts without a card, $%.0f at historical DCTR.",
		delta, without.accounts, v.PotHist)
	return []domain.AnalysisResult{res}, nil
}

func zeroIfMissing(v float64, ok bool) float64 {
	if !ok {
		return 0
	}
	return v
}
