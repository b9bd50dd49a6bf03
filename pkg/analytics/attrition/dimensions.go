package attrition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

var errNoClosed = errors.New("no closed accounts")

// Dimensions breaks attrition down by branch (A9.4), product (A9.5),
// account type (A9.6), tenure (A9.7) and balance tier (A9.8).
type Dimensions struct {
	analytics.Base
}

func NewDimensions() *Dimensions {
	return &Dimensions{Base: analytics.Base{
		ModuleID: "attrition.dimensions",
		Name:     "Attrition Dimensions",
		Sect:     section,
		Columns:  []string{pipeline.ColDateOpened, pipeline.ColDateClosed},
		Optional: []string{results.KeyAttrition},
	}}
}

func (m *Dimensions) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("attrition dimensions")
	d, err := PrepareData(pc)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare attrition data: %w", err)
	}

	var out []domain.AnalysisResult
	out = append(out, analytics.Part(ctx, "A9.4", "Attrition by Branch", func() ([]domain.AnalysisResult, error) {
		return byColumn(d, pipeline.ColBranch, "A9.4", "Attrition by Branch")
	})...)
	out = append(out, analytics.Part(ctx, "A9.5", "Attrition by Product", func() ([]domain.AnalysisResult, error) {
		return byColumn(d, pipeline.ColProductCode, "A9.5", "Attrition by Product")
	})...)
	out = append(out, analytics.Part(ctx, "A9.6", "Personal vs Business Attrition", func() ([]domain.AnalysisResult, error) {
		return byAccountType(d)
	})...)
	out = append(out, analytics.Part(ctx, "A9.7", "Attrition by Tenure", func() ([]domain.AnalysisResult, error) {
		return byTenure(pc, d)
	})...)
	out = append(out, analytics.Part(ctx, "A9.8", "Attrition by Balance", func() ([]domain.AnalysisResult, error) {
		return byBalance(d)
	})...)
	return out, nil
}

func byColumn(d *Data, col, slideID, title string) ([]domain.AnalysisResult, error) {
	if d.Closed.Len() == 0 || !d.All.Has(col) {
		return nil, fmt.Errorf("no closed accounts or no %s column", col)
	}
	key := func(r table.Row) (string, bool) {
		v := strings.TrimSpace(r.String(col))
		return v, v != ""
	}
	_, total := d.All.Group(key)
	_, closed := d.Closed.Group(key)
	s := rateSheet(col, sortedKeys(total), total, closed)

	res := analytics.Success(slideID, title)
	res.Tables = map[string]*table.Sheet{"Rates": s}
	if v, ok := s.Value(calc.TotalLabel, colRate); ok {
		res.Notes = fmt.Sprintf("%d groups, average %.1f%%", s.Len()-1, v*100)
	}
	return []domain.AnalysisResult{res}, nil
}

func byAccountType(d *Data) ([]domain.AnalysisResult, error) {
	if d.Closed.Len() == 0 || !d.All.Has(pipeline.ColBusiness) {
		return nil, errors.New("no closed accounts or no Business? column")
	}
	key := func(r table.Row) (string, bool) {
		if pipeline.IsBusiness(r) {
			return "Business", true
		}
		return "Personal", true
	}
	_, total := d.All.Group(key)
	_, closed := d.Closed.Group(key)

	res := analytics.Success("A9.6", "Personal vs Business Attrition")
	res.Tables = map[string]*table.Sheet{
		"Rates": rateSheet("Account Type", []string{"Personal", "Business"}, total, closed),
	}
	return []domain.AnalysisResult{res}, nil
}

// byTenure buckets open accounts by age at the end of the reporting period
// and closed accounts by how long they stayed open.
func byTenure(pc *pipeline.Context, d *Data) ([]domain.AnalysisResult, error) {
	if d.Closed.Len() == 0 {
		return nil, errNoClosed
	}
	asOf := pc.EndDate
	if asOf.IsZero() {
		asOf = time.Now()
	}
	age := func(r table.Row) (float64, bool) {
		opened, ok := r.Date(pipeline.ColDateOpened)
		if !ok {
			return 0, false
		}
		if shut, ok := r.Date(pipeline.ColDateClosed); ok {
			return calc.DaysBetween(opened, shut), true
		}
		return calc.DaysBetween(opened, asOf), true
	}
	labels, total := calc.Tenure.Split(d.All, age)
	_, closed := calc.Tenure.Split(d.Closed, age)

	res := analytics.Success("A9.7", "Attrition by Tenure")
	res.Tables = map[string]*table.Sheet{"Rates": rateSheet("Tenure", labels, total, closed)}
	return []domain.AnalysisResult{res}, nil
}

func byBalance(d *Data) ([]domain.AnalysisResult, error) {
	if d.Closed.Len() == 0 || !d.All.Has(pipeline.ColAvgBal) {
		return nil, errors.New("no closed accounts or no Avg Bal column")
	}
	bal := func(r table.Row) (float64, bool) { return r.Number(pipeline.ColAvgBal) }
	labels, total := calc.AttritionBalance.Split(d.All, bal)
	_, closed := calc.AttritionBalance.Split(d.Closed, bal)

	res := analytics.Success("A9.8", "Attrition by Balance")
	res.Tables = map[string]*table.Sheet{"Rates": rateSheet("Balance Tier", labels, total, closed)}
	return []domain.AnalysisResult{res}, nil
}
