// Package analyticstest provides a deterministic account extract and a
// ready pipeline context for analysis module tests.
package analyticstest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	Rows    = 60
	Month   = "2025.12"
	RegECol = "Reg E Code 2025.11"
)

var branches = []string{"North", "South", "East", "West"}

// Accounts builds the extract. Row i is:
//
//   - open (no Date Closed, Stat Code "O") for i < 30, closed ("C") otherwise
//   - product "SAV" when i%3 == 2, else "DDA"
//   - business when i%5 == 0
//   - with a debit card when i is even
//   - opted in to Reg E when i%3 == 0
//
// With eligible status "O" and product "DDA" that leaves 20 eligible
// accounts, 16 personal and 4 business, 10 of them with a debit card.
func Accounts(t *testing.T) *table.Frame {
	t.Helper()
	var (
		stat, product, business, debit, branch, regE []string
		opened, closed                               []time.Time
		balance, spend, items, age                   []float64
	)
	yesNo := func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	}
	for i := 0; i < Rows; i++ {
		if i < 30 {
			stat = append(stat, "O")
			opened = append(opened, time.Date(2015+i%11, time.Month(i%12+1), 15, 0, 0, 0, 0, time.UTC))
			closed = append(closed, time.Time{})
		} else {
			stat = append(stat, "C")
			o := time.Date(2018+i%6, time.Month(i%12+1), 1, 0, 0, 0, 0, time.UTC)
			opened = append(opened, o)
			closed = append(closed, o.AddDate(0, 0, (i-29)*20))
		}
		if i%3 == 2 {
			product = append(product, "SAV")
		} else {
			product = append(product, "DDA")
		}
		business = append(business, yesNo(i%5 == 0))
		debit = append(debit, yesNo(i%2 == 0))
		branch = append(branch, branches[i%len(branches)])
		if i%3 == 0 {
			regE = append(regE, "Y")
		} else {
			regE = append(regE, "N")
		}
		balance = append(balance, float64(i%8*700-100))
		if i%2 == 0 {
			spend = append(spend, float64(i*10+100))
			items = append(items, 3)
		} else {
			spend = append(spend, float64(i*2))
			items = append(items, 1)
		}
		age = append(age, float64(20+i))
	}

	f, err := table.New(
		table.NewStringColumn(pipeline.ColStatCode, stat, nil),
		table.NewStringColumn(pipeline.ColProductCode, product, nil),
		table.NewStringColumn(pipeline.ColBusiness, business, nil),
		table.NewStringColumn(pipeline.ColDebit, debit, nil),
		table.NewStringColumn(pipeline.ColBranch, branch, nil),
		table.NewDateColumn(pipeline.ColDateOpened, opened),
		table.NewDateColumn(pipeline.ColDateClosed, closed),
		table.NewNumberColumn(pipeline.ColAvgBal, balance),
		table.NewNumberColumn(pipeline.ColHolderAge, age),
		table.NewStringColumn(RegECol, regE, nil),
		table.NewNumberColumn("Spend L12M", spend),
		table.NewNumberColumn("Items L12M", items),
	)
	require.NoError(t, err)
	return f
}

// Client is the configuration matching Accounts.
func Client() domain.ClientInfo {
	return domain.ClientInfo{
		ID:                   "1453",
		Name:                 "Fixture CU",
		Month:                Month,
		EligibleStatusCodes:  []string{"O"},
		EligibleProductCodes: []string{"DDA"},
		NSFODFee:             25,
		ICRate:               0.0015,
		RegEOptIn:            []string{"Y"},
	}
}

// Context returns a context holding Accounts with its subsets derived.
func Context(t *testing.T) *pipeline.Context {
	t.Helper()
	return ContextFor(t, Client(), Accounts(t))
}

// ContextFor returns a context for client holding f with its subsets derived.
func ContextFor(t *testing.T, client domain.ClientInfo, f *table.Frame) *pipeline.Context {
	t.Helper()
	pc := pipeline.NewContext(client, t.TempDir())
	pc.SetData(f)
	pc.Subsets = pipeline.DeriveSubsets(Ctx(t), pc)
	return pc
}

// Ctx returns a context carrying a logger that writes to the test log.
func Ctx(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	return logger.WithContext(context.Background())
}

// Slide returns the artifact with the given slide id.
func Slide(t *testing.T, res []domain.AnalysisResult, slideID string) domain.AnalysisResult {
	t.Helper()
	for _, r := range res {
		if r.SlideID == slideID {
			return r
		}
	}
	require.FailNow(t, fmt.Sprintf("no slide %s", slideID))
	return domain.AnalysisResult{}
}
