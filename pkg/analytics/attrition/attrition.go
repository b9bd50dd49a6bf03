// Package attrition measures account closures: overall and recent attrition
// rates, how long closed accounts stayed open, and closure rates across
// branch, product, account type, tenure and balance.
package attrition

import (
	"math"
	"sort"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
)

const section = "attrition"

// Derived columns carried by Data.Closed.
const (
	ColDurationDays = "_duration_days"
	ColDurationCat  = "_duration_cat"
)

const (
	colTotal  = "Total"
	colClosed = "Closed"
	colRate   = "Attrition Rate"
)

var attritionRate = calc.TotalOptions{Rates: map[string]calc.RateDef{
	colRate: {Numerator: colClosed, Denominator: colTotal},
}}

// Unit registers the attrition modules.
var Unit = analytics.Unit{
	Name: section,
	Load: func(r analytics.Registry) error {
		for _, m := range []analytics.Module{NewRates(), NewDimensions()} {
			if err := r.Register(m); err != nil {
				return err
			}
		}
		return nil
	},
}

// Data is the loaded table split by closure. Closed carries the days each
// account stayed open and the matching duration bucket.
type Data struct {
	All    *table.Frame
	Open   *table.Frame
	Closed *table.Frame
}

// PrepareData splits pc.Data into open and closed accounts. The split is
// computed once per run and cached in the result map; later calls return the
// same value.
func PrepareData(pc *pipeline.Context) (*Data, error) {
	if cached, ok := pc.Result(results.KeyAttrition); ok {
		if d, ok := cached.(*Data); ok {
			return d, nil
		}
	}
	if pc.Data == nil {
		empty, _ := table.New()
		return &Data{All: empty, Open: empty, Closed: empty}, nil
	}

	all := pc.Data
	open := all.Filter(func(r table.Row) bool { return r.IsNull(pipeline.ColDateClosed) })
	closed := all.Filter(func(r table.Row) bool { return !r.IsNull(pipeline.ColDateClosed) })

	days := make([]float64, closed.Len())
	cats := make([]string, closed.Len())
	valid := make([]bool, closed.Len())
	for i := 0; i < closed.Len(); i++ {
		r := closed.Row(i)
		days[i] = math.NaN()
		opened, ok := r.Date(pipeline.ColDateOpened)
		if !ok {
			continue
		}
		shut, _ := r.Date(pipeline.ColDateClosed)
		days[i] = calc.DaysBetween(opened, shut)
		cats[i], valid[i] = calc.Duration.Categorize(days[i])
	}

	closed, err := closed.WithColumn(table.NewNumberColumn(ColDurationDays, days))
	if err != nil {
		return nil, err
	}
	closed, err = closed.WithColumn(table.NewStringColumn(ColDurationCat, cats, valid))
	if err != nil {
		return nil, err
	}

	d := &Data{All: all, Open: open, Closed: closed}
	pc.SetResult(results.KeyAttrition, d)
	return d, nil
}

// rateSheet tabulates closures per key: total accounts, closed accounts and
// their ratio, with a total row. Keys are listed in the given order.
func rateSheet(label string, keys []string, total, closed map[string]*table.Frame) *table.Sheet {
	s := table.NewSheet(label, colTotal, colClosed, colRate)
	for _, k := range keys {
		t, c := size(total[k]), size(closed[k])
		if t == 0 {
			continue
		}
		s.AddRow(k, map[string]float64{
			colTotal:  float64(t),
			colClosed: float64(c),
			colRate:   calc.Rate(float64(c), float64(t)),
		})
	}
	return calc.AppendTotal(s, attritionRate)
}

func size(f *table.Frame) int {
	if f == nil {
		return 0
	}
	return f.Len()
}

func sortedKeys(m map[string]*table.Frame) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
