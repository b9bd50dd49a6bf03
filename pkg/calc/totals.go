package calc

import (
	"math"
	"strings"

	"github.com/de-tools/account-review/pkg/table"
)

const TotalLabel = "TOTAL"

// RateDef names the columns a rate column is recomputed from.
type RateDef struct {
	Numerator   string
	Denominator string
}

// DebitRate is the default definition: accounts with a debit card over all accounts.
var DebitRate = RateDef{Numerator: "With Debit", Denominator: "Total Accounts"}

// OptInRate is the Reg E definition.
var OptInRate = RateDef{Numerator: "Opted In", Denominator: "Total Accounts"}

type TotalOptions struct {
	// Label of the appended row, TotalLabel when empty.
	Label string
	// Rates overrides the definition per rate column.
	Rates map[string]RateDef
	// Default applies to rate columns without an override, DebitRate when unset.
	Default RateDef
}

// IsRateColumn reports whether a column holds a rate or percentage.
func IsRateColumn(name string) bool {
	return strings.Contains(name, "%") ||
		strings.Contains(name, "Rate") ||
		strings.Contains(name, "DCTR")
}

// AppendTotal returns a copy of s with a total row appended. Rate columns get
// sum(numerator)/sum(denominator) over the data rows, never the mean of the
// row rates; every other column gets its plain sum. An empty sheet is
// returned unchanged.
func AppendTotal(s *table.Sheet, opts TotalOptions) *table.Sheet {
	if s.Empty() {
		return s
	}
	label := opts.Label
	if label == "" {
		label = TotalLabel
	}
	def := opts.Default
	if def == (RateDef{}) {
		def = DebitRate
	}

	totals := make(map[string]float64, len(s.Columns))
	for _, c := range s.Columns {
		if !IsRateColumn(c) {
			totals[c] = sum(s.Column(c))
			continue
		}
		rd, ok := opts.Rates[c]
		if !ok {
			rd = def
		}
		num, den := 0.0, 0.0
		if s.Has(rd.Numerator) {
			num = sum(s.Column(rd.Numerator))
		}
		if s.Has(rd.Denominator) {
			den = sum(s.Column(rd.Denominator))
		}
		totals[c] = Rate(num, den)
	}

	out := s.Clone()
	out.AddRow(label, totals)
	return out
}

// Rate divides num by den, returning 0 when den is not positive.
func Rate(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}
