package calc

import (
	"math"

	"github.com/de-tools/account-review/pkg/table"
)

const (
	daysPerMonth = 30.44
	daysPerYear  = 365.25
)

// Rule is one step of a bucket table. The input is divided by Scale (when
// non-zero) and matched against Upper: strictly below it when Strict is set,
// at or below it otherwise.
type Rule struct {
	Label  string
	Upper  float64
	Strict bool
	Scale  float64
}

func (r Rule) matches(v float64) bool {
	if r.Scale != 0 {
		v /= r.Scale
	}
	if r.Strict {
		return v < r.Upper
	}
	return v <= r.Upper
}

// Buckets is an ordered category table evaluated top to bottom; the first
// matching rule wins. The last rule of every table has an infinite bound, so
// any non-NaN value accepted by the table lands in exactly one bucket.
type Buckets struct {
	Name           string
	RejectNegative bool
	Rules          []Rule
}

// Categorize returns the bucket label for v. NaN, and negative values for
// day-count tables, have no bucket.
func (b Buckets) Categorize(v float64) (string, bool) {
	if math.IsNaN(v) {
		return "", false
	}
	if b.RejectNegative && v < 0 {
		return "", false
	}
	for _, r := range b.Rules {
		if r.matches(v) {
			return r.Label, true
		}
	}
	return "", false
}

// Labels returns the bucket labels in table order.
func (b Buckets) Labels() []string {
	out := make([]string, len(b.Rules))
	for i, r := range b.Rules {
		out[i] = r.Label
	}
	return out
}

// Split groups the rows of f by the bucket of value(row). Rows without a
// value or a bucket are left out. Labels come back in table order, including
// those with no rows, whose group is nil.
func (b Buckets) Split(f *table.Frame, value func(table.Row) (float64, bool)) ([]string, map[string]*table.Frame) {
	_, groups := f.Group(func(r table.Row) (string, bool) {
		v, ok := value(r)
		if !ok {
			return "", false
		}
		return b.Categorize(v)
	})
	return b.Labels(), groups
}

var inf = math.Inf(1)

// Duration buckets the days between opening and closing an account.
var Duration = Buckets{
	Name:           "duration",
	RejectNegative: true,
	Rules: []Rule{
		{Label: "0-1 Month", Upper: 1, Scale: daysPerMonth},
		{Label: "1-3 Months", Upper: 3, Scale: daysPerMonth},
		{Label: "3-6 Months", Upper: 6, Scale: daysPerMonth},
		{Label: "6-12 Months", Upper: 12, Scale: daysPerMonth},
		{Label: "1-2 Years", Upper: 2, Scale: daysPerYear},
		{Label: "2-5 Years", Upper: 5, Scale: daysPerYear},
		{Label: "5-10 Years", Upper: 10, Scale: daysPerYear},
		{Label: "10+ Years", Upper: inf},
	},
}

// Tenure buckets the age in days of an open account.
var Tenure = Buckets{
	Name:           "tenure",
	RejectNegative: true,
	Rules: []Rule{
		{Label: "0-6 Months", Upper: 6, Scale: daysPerMonth},
		{Label: "6-12 Months", Upper: 12, Scale: daysPerMonth},
		{Label: "1-2 Years", Upper: 2, Scale: daysPerYear},
		{Label: "2-5 Years", Upper: 5, Scale: daysPerYear},
		{Label: "5-10 Years", Upper: 10, Scale: daysPerYear},
		{Label: "10+ Years", Upper: inf},
	},
}

// AttritionBalance buckets average balances for closure analysis.
var AttritionBalance = Buckets{
	Name: "attrition_balance",
	Rules: []Rule{
		{Label: "Negative", Upper: 0, Strict: true},
		{Label: "$0", Upper: 0},
		{Label: "$1-$499", Upper: 500, Strict: true},
		{Label: "$500-$999", Upper: 1000, Strict: true},
		{Label: "$1K-$2.5K", Upper: 2500, Strict: true},
		{Label: "$2.5K-$5K", Upper: 5000, Strict: true},
		{Label: "$5K-$10K", Upper: 10000, Strict: true},
		{Label: "$10K+", Upper: inf},
	},
}

// AccountAge buckets account age in days for debit penetration breakdowns.
var AccountAge = Buckets{
	Name:           "account_age",
	RejectNegative: true,
	Rules: []Rule{
		{Label: "0-6 months", Upper: 180, Strict: true},
		{Label: "6-12 months", Upper: 365, Strict: true},
		{Label: "1-2 years", Upper: 730, Strict: true},
		{Label: "2-5 years", Upper: 1825, Strict: true},
		{Label: "5-10 years", Upper: 3650, Strict: true},
		{Label: "10+ years", Upper: inf},
	},
}

// HolderAge buckets account holder age in years.
var HolderAge = Buckets{
	Name: "holder_age",
	Rules: []Rule{
		{Label: "18-24", Upper: 25, Strict: true},
		{Label: "25-34", Upper: 35, Strict: true},
		{Label: "35-44", Upper: 45, Strict: true},
		{Label: "45-54", Upper: 55, Strict: true},
		{Label: "55-64", Upper: 65, Strict: true},
		{Label: "65+", Upper: inf},
	},
}

// DebitBalance buckets balances for debit penetration breakdowns.
var DebitBalance = Buckets{
	Name: "debit_balance",
	Rules: []Rule{
		{Label: "Negative", Upper: 0, Strict: true},
		{Label: "$0-$499", Upper: 500, Strict: true},
		{Label: "$500-$999", Upper: 1000, Strict: true},
		{Label: "$1K-$2.5K", Upper: 2500, Strict: true},
		{Label: "$2.5K-$5K", Upper: 5000, Strict: true},
		{Label: "$5K-$10K", Upper: 10000, Strict: true},
		{Label: "$10K-$25K", Upper: 25000, Strict: true},
		{Label: "$25K-$50K", Upper: 50000, Strict: true},
		{Label: "$50K-$100K", Upper: 100000, Strict: true},
		{Label: "$100K+", Upper: inf},
	},
}

// RegEAccountAge is the seven bucket account age table used by Reg E breakdowns.
var RegEAccountAge = Buckets{
	Name:           "rege_account_age",
	RejectNegative: true,
	Rules: []Rule{
		{Label: "0-6 months", Upper: 180, Strict: true},
		{Label: "6-12 months", Upper: 365, Strict: true},
		{Label: "1-2 years", Upper: 730, Strict: true},
		{Label: "2-5 years", Upper: 1825, Strict: true},
		{Label: "5-10 years", Upper: 3650, Strict: true},
		{Label: "10-20 years", Upper: 7300, Strict: true},
		{Label: "20+ years", Upper: inf},
	},
}

// RegEHolderAge is the seven bucket holder age table used by Reg E breakdowns.
var RegEHolderAge = Buckets{
	Name: "rege_holder_age",
	Rules: []Rule{
		{Label: "18-24", Upper: 25, Strict: true},
		{Label: "25-34", Upper: 35, Strict: true},
		{Label: "35-44", Upper: 45, Strict: true},
		{Label: "45-54", Upper: 55, Strict: true},
		{Label: "55-64", Upper: 65, Strict: true},
		{Label: "65-74", Upper: 75, Strict: true},
		{Label: "75+", Upper: inf},
	},
}

// Tables lists every bucket table.
var Tables = []Buckets{
	Duration, Tenure, AttritionBalance, AccountAge,
	HolderAge, DebitBalance, RegEAccountAge, RegEHolderAge,
}
