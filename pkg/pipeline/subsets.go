package pipeline

import (
	"context"
	"strings"

	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

// Canonical column names produced by the loader.
const (
	ColStatCode    = "Stat Code"
	ColProductCode = "Product Code"
	ColBusiness    = "Business?"
	ColDateOpened  = "Date Opened"
	ColDateClosed  = "Date Closed"
	ColAvgBal      = "Avg Bal"
	ColBranch      = "Branch"
	ColDebit       = "Debit?"
	ColHolderAge   = "Account Holder Age"
)

const openStatusPrefix = "O"

// yesValues mark business accounts and the Debit? flag.
var (
	yesValues   = set("YES", "Y")
	debitValues = set("D", "DC", "DEBIT")
)

// DeriveSubsets computes every filtered view of pc.Data. Each stage only
// runs when its columns and configuration are present; otherwise its subset
// stays nil. It never fails.
func DeriveSubsets(ctx context.Context, pc *Context) Subsets {
	logger := zerolog.Ctx(ctx)
	var subs Subsets
	df := pc.Data
	if df == nil {
		return subs
	}

	if df.Has(ColStatCode) {
		subs.OpenAccounts = df.Filter(func(r table.Row) bool {
			return strings.HasPrefix(strings.ToUpper(r.String(ColStatCode)), openStatusPrefix)
		})
		logger.Debug().Int("rows", subs.OpenAccounts.Len()).Msg("open accounts")
	}

	if subs.OpenAccounts != nil && len(pc.Client.EligibleStatusCodes) > 0 {
		statuses := set(pc.Client.EligibleStatusCodes...)
		products := set(pc.Client.EligibleProductCodes...)
		checkProduct := len(products) > 0 && df.Has(ColProductCode)

		subs.EligibleData = subs.OpenAccounts.Filter(func(r table.Row) bool {
			if _, ok := statuses[strings.TrimSpace(r.String(ColStatCode))]; !ok {
				return false
			}
			if checkProduct {
				_, ok := products[strings.TrimSpace(r.String(ColProductCode))]
				return ok
			}
			return true
		})
		logger.Debug().Int("rows", subs.EligibleData.Len()).Msg("eligible accounts")

		if df.Has(ColBusiness) {
			subs.EligibleBusiness = subs.EligibleData.Filter(IsBusiness)
			subs.EligiblePersonal = subs.EligibleData.Filter(func(r table.Row) bool { return !IsBusiness(r) })
			logger.Debug().
				Int("personal", subs.EligiblePersonal.Len()).
				Int("business", subs.EligibleBusiness.Len()).
				Msg("eligible split")
		}

		if dc := pc.Client.DebitColumn(); df.Has(dc) {
			subs.EligibleWithDebit = subs.EligibleData.Filter(func(r table.Row) bool {
				_, ok := debitValues[normalize(r.String(dc))]
				return ok
			})
			logger.Debug().Int("rows", subs.EligibleWithDebit.Len()).Msg("eligible with debit")
		}
	}

	if df.Has(ColDateOpened) && pc.HasEndDate() {
		w := calc.TrailingTwelveMonths(pc.EndDate)
		subs.Last12Months = df.Filter(func(r table.Row) bool {
			opened, ok := r.Date(ColDateOpened)
			return ok && w.Contains(opened)
		})
		logger.Debug().Int("rows", subs.Last12Months.Len()).Msg("last 12 months")
	}

	return subs
}

// HasDebit reports whether the account in r has a debit card per its
// Debit? flag.
func HasDebit(r table.Row) bool {
	_, ok := yesValues[normalize(r.String(ColDebit))]
	return ok
}

// IsBusiness reports whether the account in r is a business account.
func IsBusiness(r table.Row) bool {
	_, ok := yesValues[normalize(r.String(ColBusiness))]
	return ok
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.TrimSpace(v)] = struct{}{}
	}
	return out
}
