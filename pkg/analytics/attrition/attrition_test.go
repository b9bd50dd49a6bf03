package attrition

import (
	"testing"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/analyticstest"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareData(t *testing.T) {
	pc := analyticstest.Context(t)

	d, err := PrepareData(pc)
	require.NoError(t, err)
	assert.Equal(t, 60, d.All.Len())
	assert.Equal(t, 30, d.Open.Len())
	assert.Equal(t, 30, d.Closed.Len())

	require.True(t, d.Closed.Has(ColDurationDays))
	d.Closed.Each(func(r table.Row) {
		assert.False(t, r.IsNull(ColDurationDays), "row %d", r.ID())
		assert.False(t, r.IsNull(ColDurationCat), "row %d", r.ID())
	})
	assert.False(t, d.Open.Has(ColDurationDays))

	again, err := PrepareData(pc)
	require.NoError(t, err)
	assert.Same(t, d, again)

	cached, ok := pc.Result(results.KeyAttrition)
	require.True(t, ok)
	assert.Same(t, d, cached)
}

func TestPrepareData_NoData(t *testing.T) {
	pc := analyticstest.Context(t)
	pc.Data = nil

	d, err := PrepareData(pc)
	require.NoError(t, err)
	assert.Equal(t, 0, d.All.Len())
	assert.Equal(t, 0, d.Closed.Len())
}

func TestRates(t *testing.T) {
	pc := analyticstest.Context(t)
	res, err := NewRates().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)
	require.Len(t, res, 3)

	a1 := results.GetAttrition1(pc)
	assert.True(t, a1.Present)
	assert.Equal(t, 60, a1.Total)
	assert.Equal(t, 30, a1.Closed)
	assert.Equal(t, 0.5, a1.OverallRate)
	assert.InDelta(t, 1.0/31.0, a1.L12MRate, 1e-9)

	dur := analyticstest.Slide(t, res, "A9.2")
	require.True(t, dur.Success)
	s := dur.Tables["Duration"]
	for label, want := range map[string]float64{
		"0-1 Month":   1,
		"1-3 Months":  3,
		"3-6 Months":  5,
		"6-12 Months": 9,
		"1-2 Years":   12,
	} {
		got, ok := s.Value(label, "Count")
		require.True(t, ok, label)
		assert.Equal(t, want, got, label)
	}
	assert.Equal(t, 5, s.Len())
	assert.Contains(t, dur.Notes, "60.0%")

	cmp := analyticstest.Slide(t, res, "A9.3").Tables["Comparison"]
	v, _ := cmp.Value("Open", "Count")
	assert.Equal(t, 30.0, v)
}

func TestRates_NoClosedAccounts(t *testing.T) {
	f := analyticstest.Accounts(t).Filter(func(r table.Row) bool { return r.ID() < 30 })
	pc := analyticstest.ContextFor(t, analyticstest.Client(), f)

	res, err := NewRates().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)
	assert.True(t, analyticstest.Slide(t, res, "A9.1").Success)
	assert.Equal(t, 0.0, results.GetAttrition1(pc).OverallRate)

	dur := analyticstest.Slide(t, res, "A9.2")
	assert.False(t, dur.Success)
	assert.Equal(t, "no closed accounts", dur.Error)
}

func TestDimensions(t *testing.T) {
	pc := analyticstest.Context(t)
	res, err := NewDimensions().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)
	require.Len(t, res, 5)
	for _, r := range res {
		assert.True(t, r.Success, "%s: %s", r.SlideID, r.Error)
	}

	branch := analyticstest.Slide(t, res, "A9.4").Tables["Rates"]
	v, _ := branch.Value(calc.TotalLabel, colRate)
	assert.Equal(t, 0.5, v)
	v, _ = branch.Value(calc.TotalLabel, colTotal)
	assert.Equal(t, 60.0, v)

	kind := analyticstest.Slide(t, res, "A9.6").Tables["Rates"]
	v, _ = kind.Value("Business", colTotal)
	assert.Equal(t, 12.0, v)

	bal := analyticstest.Slide(t, res, "A9.8").Tables["Rates"]
	v, _ = bal.Value("Negative", colTotal)
	assert.Equal(t, 8.0, v)
	assert.Equal(t, calc.TotalLabel, bal.Rows()[bal.Len()-1].Label)

	tenure := analyticstest.Slide(t, res, "A9.7").Tables["Rates"]
	v, _ = tenure.Value(calc.TotalLabel, colClosed)
	assert.Equal(t, 30.0, v)
}

func TestDimensions_ReusesCachedData(t *testing.T) {
	pc := analyticstest.Context(t)
	r := analytics.NewRegistry([]string{"attrition.rates", "attrition.dimensions"})
	require.NoError(t, Unit.Load(r))
	assert.Empty(t, r.CheckOrder())

	summary := analytics.NewDispatcher(r).Dispatch(analyticstest.Ctx(t), pc)
	assert.Equal(t, 2, summary.Succeeded)

	first, ok := pc.Result(results.KeyAttrition)
	require.True(t, ok)
	d, err := PrepareData(pc)
	require.NoError(t, err)
	assert.Same(t, first, d)

	var ids []string
	for _, o := range pc.Outcomes {
		assert.Equal(t, domain.OutcomeSucceeded, o.Status)
		ids = append(ids, o.ModuleID)
	}
	assert.Equal(t, []string{"attrition.rates", "attrition.dimensions"}, ids)
}
