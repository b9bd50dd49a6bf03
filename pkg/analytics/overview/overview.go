// Package overview holds the account overview modules: stat code and product
// code distributions and the eligibility funnel.
package overview

import (
	"sort"
	"strings"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
)

const section = "overview"

// Unit registers the overview modules.
var Unit = analytics.Unit{
	Name: section,
	Load: func(r analytics.Registry) error {
		for _, m := range []analytics.Module{NewStatCodes(), NewProductCodes(), NewEligibility()} {
			if err := r.Register(m); err != nil {
				return err
			}
		}
		return nil
	},
}

// distribution counts accounts per value of col, split into personal and
// business, sorted by total count descending.
func distribution(f *table.Frame, col, label string) *table.Sheet {
	keys, groups := f.Group(func(r table.Row) (string, bool) {
		v := strings.TrimSpace(r.String(col))
		if v == "" {
			v = "Unknown"
		}
		return v, true
	})
	sort.Strings(keys)

	total := float64(f.Len())
	s := table.NewSheet(label, "Total Count", "Percent of Total", "Business Count", "Personal Count")
	for _, k := range keys {
		g := groups[k]
		n := float64(g.Len())
		biz := float64(g.Count(pipeline.IsBusiness))
		s.AddRow(k, map[string]float64{
			"Total Count":      n,
			"Percent of Total": calc.Rate(n, total),
			"Business Count":   biz,
			"Personal Count":   n - biz,
		})
	}
	s.SortBy("Total Count", true)
	return s
}
