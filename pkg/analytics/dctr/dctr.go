// Package dctr measures debit card take rate (DCTR): the share of accounts
// that carry a debit card, over time, over the trailing twelve months, per
// branch and per demographic bucket.
package dctr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
)

const section = "dctr"

const (
	colTotal     = "Total Accounts"
	colWith      = "With Debit"
	colWithout   = "Without Debit"
	colRate      = "DCTR %"
	colPersonalW = "Personal w/Debit"
	colBusinessW = "Business w/Debit"
)

// Accounts opened in these years count toward the recent take rate.
const (
	recentFrom = 2023
	recentTo   = 2026
)

// Unit registers the DCTR modules.
var Unit = analytics.Unit{
	Name: section,
	Load: func(r analytics.Registry) error {
		for _, m := range []analytics.Module{NewPenetration(), NewBranches(), NewOverlays()} {
			if err := r.Register(m); err != nil {
				return err
			}
		}
		return nil
	},
}

type rate struct {
	total     int
	withDebit int
	dctr      float64
}

func measure(f *table.Frame) rate {
	if f == nil || f.Len() == 0 {
		return rate{}
	}
	w := f.Count(pipeline.HasDebit)
	return rate{total: f.Len(), withDebit: w, dctr: calc.Rate(float64(w), float64(f.Len()))}
}

func (r rate) row() map[string]float64 {
	return map[string]float64{
		colTotal:   float64(r.total),
		colWith:    float64(r.withDebit),
		colWithout: float64(r.total - r.withDebit),
		colRate:    r.dctr,
	}
}

type history struct {
	yearly *table.Sheet
	decade *table.Sheet
	total  rate
	recent rate
	years  int
}

// historical breaks f down by year and decade of opening. Rows without an
// opening date are left out.
func historical(pc *pipeline.Context, f *table.Frame) history {
	var h history
	if f == nil || f.Len() == 0 {
		return h
	}
	valid := f.Filter(func(r table.Row) bool {
		_, ok := r.Date(pipeline.ColDateOpened)
		return ok
	})
	if valid.Len() == 0 {
		return h
	}

	years, byYear := valid.Group(func(r table.Row) (string, bool) {
		d, _ := r.Date(pipeline.ColDateOpened)
		return strconv.Itoa(d.Year()), true
	})
	sort.Strings(years)

	yearly := table.NewSheet("Year", colTotal, colWith, colWithout, colRate, colPersonalW, colBusinessW)
	for _, y := range years {
		g := byYear[y]
		row := measure(g).row()
		row[colPersonalW] = float64(g.Count(func(r table.Row) bool { return !pipeline.IsBusiness(r) && pipeline.HasDebit(r) }))
		row[colBusinessW] = float64(g.Count(func(r table.Row) bool { return pipeline.IsBusiness(r) && pipeline.HasDebit(r) }))
		yearly.AddRow(y, row)
	}
	h.yearly = calc.AppendTotal(yearly, calc.TotalOptions{})
	h.years = len(years)

	decades, byDecade := valid.Group(func(r table.Row) (string, bool) {
		d, _ := r.Date(pipeline.ColDateOpened)
		return decadeOf(d.Year()), true
	})
	sort.Slice(decades, func(i, j int) bool { return decadeKey(decades[i]) < decadeKey(decades[j]) })
	h.decade = table.NewSheet("Decade", colTotal, colWith, colWithout, colRate)
	for _, d := range decades {
		h.decade.AddRow(d, measure(byDecade[d]).row())
	}

	h.total = measure(valid)
	h.recent = measure(valid.Filter(func(r table.Row) bool {
		d, _ := r.Date(pipeline.ColDateOpened)
		return d.Year() >= recentFrom && d.Year() <= recentTo
	}))
	return h
}

// decadeOf labels a year: single years from 2020 on, decades before that,
// and one bucket for everything before 1970.
func decadeOf(year int) string {
	switch {
	case year < 1970:
		return "Before 1970"
	case year >= 2020:
		return strconv.Itoa(year)
	default:
		return fmt.Sprintf("%ds", year/10*10)
	}
}

func decadeKey(label string) int {
	if strings.HasPrefix(label, "Before") {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSuffix(label, "s"))
	return n
}

// lastTwelveMonths keeps the rows of f opened within the trailing twelve
// months ending at the reporting end date.
func lastTwelveMonths(pc *pipeline.Context, f *table.Frame) *table.Frame {
	if f == nil || !pc.HasEndDate() {
		return nil
	}
	w := calc.TrailingTwelveMonths(pc.EndDate)
	return f.Filter(func(r table.Row) bool {
		d, ok := r.Date(pipeline.ColDateOpened)
		return ok && w.Contains(d)
	})
}

// monthly tabulates take rate per opening month for the given labels, with
// a total row.
func monthly(pc *pipeline.Context, f *table.Frame, months []string) (*table.Sheet, rate, int) {
	s := table.NewSheet("Month", colTotal, colWith, colWithout, colRate)
	if f == nil || f.Len() == 0 {
		return s, rate{}, 0
	}
	_, byMonth := f.Group(func(r table.Row) (string, bool) {
		d, ok := r.Date(pipeline.ColDateOpened)
		return d.Format("Jan06"), ok
	})
	active := 0
	var total rate
	for _, m := range months {
		r := measure(byMonth[m])
		if r.total > 0 {
			active++
		}
		total.total += r.total
		total.withDebit += r.withDebit
		s.AddRow(m, r.row())
	}
	total.dctr = calc.Rate(float64(total.withDebit), float64(total.total))
	return calc.AppendTotal(s, calc.TotalOptions{}), total, active
}
