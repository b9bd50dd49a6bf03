// Package results defines the values analysis modules share through the
// pipeline result map, and accessors that read them back.
//
// Every accessor returns a zero value with Present unset when the key is
// missing or holds something else, so a module reading the output of an
// upstream module that was skipped or failed degrades to zero metrics
// instead of failing. Check Present to tell a real zero from a missing one.
package results

import (
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
)

const (
	KeyA3         = "a3"
	KeyDCTR1      = "dctr_1"
	KeyDCTR3      = "dctr_3"
	KeyDCTR9      = "dctr_9"
	KeyRegE1      = "reg_e_1"
	KeyAttrition1 = "attrition_1"
	KeyValue1     = "value_1"
	KeyAttrition  = "_attrition_data"
)

// A3 is the eligibility funnel.
type A3 struct {
	Present          bool
	TotalAccounts    int
	OpenAccounts     int
	EligibleAccounts int
	Personal         int
	Business         int
	EligibilityRate  float64
	Funnel           *table.Sheet
}

// DCTR1 is historical debit card take rate over eligible accounts.
type DCTR1 struct {
	Present       bool
	TotalAccounts int
	WithDebit     int
	OverallDCTR   float64
	RecentDCTR    float64
	YearsCovered  int
}

// DCTR3 is debit card take rate over accounts opened in the last 12 months.
type DCTR3 struct {
	Present       bool
	TotalAccounts int
	WithDebit     int
	DCTR          float64
}

// DCTR9 summarises debit card take rate per branch.
type DCTR9 struct {
	Present       bool
	TotalBranches int
	BestBranch    string
	BestDCTR      float64
	WorstBranch   string
	WorstDCTR     float64
}

// RegE1 is the Reg E opt-in status.
type RegE1 struct {
	Present   bool
	TotalBase int
	OptedIn   int
	OptedOut  int
	OptInRate float64
	L12MRate  float64
}

// Attrition1 is the overall attrition rate.
type Attrition1 struct {
	Present     bool
	Total       int
	Closed      int
	OverallRate float64
	L12MRate    float64
}

// Value1 is the revenue value of a debit card.
type Value1 struct {
	Present       bool
	AcctsWith     int
	AcctsWithout  int
	RevPerWith    float64
	RevPerWithout float64
	Delta         float64
	HistDCTR      float64
	L12MDCTR      float64
	PotHist       float64
	PotL12M       float64
	Pot100        float64
}

func GetA3(pc *pipeline.Context) A3                 { return get[A3](pc, KeyA3) }
func GetDCTR1(pc *pipeline.Context) DCTR1           { return get[DCTR1](pc, KeyDCTR1) }
func GetDCTR3(pc *pipeline.Context) DCTR3           { return get[DCTR3](pc, KeyDCTR3) }
func GetDCTR9(pc *pipeline.Context) DCTR9           { return get[DCTR9](pc, KeyDCTR9) }
func GetRegE1(pc *pipeline.Context) RegE1           { return get[RegE1](pc, KeyRegE1) }
func GetAttrition1(pc *pipeline.Context) Attrition1 { return get[Attrition1](pc, KeyAttrition1) }
func GetValue1(pc *pipeline.Context) Value1         { return get[Value1](pc, KeyValue1) }

// Set stores v under key with Present marked.
func Set[T any](pc *pipeline.Context, key string, v T) {
	pc.SetResult(key, mark(v))
}

func get[T any](pc *pipeline.Context, key string) T {
	var zero T
	if pc == nil {
		return zero
	}
	raw, ok := pc.Result(key)
	if !ok {
		return zero
	}
	v, ok := raw.(T)
	if !ok {
		return zero
	}
	return v
}

func mark[T any](v T) T {
	switch p := any(&v).(type) {
	case *A3:
		p.Present = true
	case *DCTR1:
		p.Present = true
	case *DCTR3:
		p.Present = true
	case *DCTR9:
		p.Present = true
	case *RegE1:
		p.Present = true
	case *Attrition1:
		p.Present = true
	case *Value1:
		p.Present = true
	}
	return v
}
