package domain

const DefaultDebitIndicator = "DC Indicator"

// ClientInfo identifies the institution and reporting month of a run and
// carries its eligibility configuration. It is built once before a run and
// never changed during it.
type ClientInfo struct {
	ID    string
	Name  string
	Month string // YYYY.MM

	EligibleStatusCodes  []string
	EligibleProductCodes []string
	EligibleMailable     []string

	NSFODFee float64
	ICRate   float64

	DebitIndicator string
	RegEOptIn      []string
	RegEColumn     string
	AssignedCSM    string
}

// DebitColumn returns the configured debit indicator column or the default.
func (c ClientInfo) DebitColumn() string {
	if c.DebitIndicator == "" {
		return DefaultDebitIndicator
	}
	return c.DebitIndicator
}
