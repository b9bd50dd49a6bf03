package value

import (
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/analytics/analyticstest"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysis(t *testing.T) {
	pc := analyticstest.Context(t)
	res, err := NewAnalysis().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.True(t, res[0].Success, res[0].Error)

	v := results.GetValue1(pc)
	assert.True(t, v.Present)
	assert.Equal(t, 8, v.AcctsWith)
	assert.Equal(t, 8, v.AcctsWithout)
	assert.InDelta(t, 75.39375, v.RevPerWith, 1e-9)
	assert.InDelta(t, 25.0375, v.RevPerWithout, 1e-9)
	assert.InDelta(t, 50.36, v.Delta, 0.011)
	assert.Equal(t, 0.5, v.HistDCTR)
	assert.Equal(t, v.HistDCTR, v.L12MDCTR)
	assert.InDelta(t, 8*v.Delta, v.Pot100, 1e-9)
	assert.InDelta(t, 8*v.Delta*0.5, v.PotHist, 1e-9)
}

func TestAnalysis_UsesUpstreamRates(t *testing.T) {
	pc := analyticstest.Context(t)
	results.Set(pc, results.KeyDCTR1, results.DCTR1{OverallDCTR: 0.8})
	results.Set(pc, results.KeyDCTR3, results.DCTR3{DCTR: 0.6})

	_, err := NewAnalysis().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)

	v := results.GetValue1(pc)
	assert.Equal(t, 0.8, v.HistDCTR)
	assert.Equal(t, 0.6, v.L12MDCTR)
	assert.InDelta(t, 8*v.Delta*0.6, v.PotL12M, 1e-9)
}

func TestAnalysis_MissingSpendColumns(t *testing.T) {
	full := analyticstest.Accounts(t)
	var cols []*table.Column
	for _, name := range []string{pipeline.ColStatCode, pipeline.ColProductCode, pipeline.ColBusiness, pipeline.ColDebit, pipeline.ColDateOpened} {
		cols = append(cols, copyColumn(full, name))
	}
	f, err := table.New(cols...)
	require.NoError(t, err)
	pc := analyticstest.ContextFor(t, analyticstest.Client(), f)

	res, err := NewAnalysis().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.False(t, res[0].Success)
	assert.Equal(t, "missing spend/items columns", res[0].Error)
	assert.False(t, results.GetValue1(pc).Present)
}

func TestFindColumn(t *testing.T) {
	f, err := table.New(
		table.NewNumberColumn("Spend Lifetime", []float64{1}),
		table.NewNumberColumn("Trailing Spend", []float64{1}),
		table.NewNumberColumn("Items 12M", []float64{1}),
		table.NewNumberColumn("Items", []float64{1}),
	)
	require.NoError(t, err)
	assert.Equal(t, "Trailing Spend", FindColumn(f, "spend"))
	assert.Equal(t, "Items 12M", FindColumn(f, "items"))
	assert.Equal(t, "", FindColumn(f, "fees"))
}

func copyColumn(f *table.Frame, name string) *table.Column {
	kind, _ := f.KindOf(name)
	switch kind {
	case table.KindDate:
		var vals []time.Time
		f.Each(func(r table.Row) {
			d, _ := r.Date(name)
			vals = append(vals, d)
		})
		return table.NewDateColumn(name, vals)
	default:
		var vals []string
		f.Each(func(r table.Row) { vals = append(vals, r.String(name)) })
		return table.NewStringColumn(name, vals, nil)
	}
}
