package loader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ODDFile is the identity encoded in an extract file name of the form
// ClientID-YYYY-MM-Client Name-ODD.xlsx.
type ODDFile struct {
	ClientID   string
	Year       string
	MonthNum   string
	ClientName string
	Filename   string
}

// Month returns the reporting month as YYYY.MM.
func (o ODDFile) Month() string {
	return o.Year + "." + o.MonthNum
}

var (
	monthNumeric = regexp.MustCompile(`^(\d{4})\.(\d{2})$`)
	monthName    = regexp.MustCompile(`(?i)^(January|February|March|April|May|June|July|August|September|October|November|December),?\s*(\d{4})$`)
)

// ParseODDName splits an extract file name into its parts. It returns false
// for names that do not follow the convention.
func ParseODDName(name string) (ODDFile, bool) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), ".xlsx") {
		return ODDFile{}, false
	}
	parts := strings.Split(strings.TrimSuffix(base, filepath.Ext(base)), "-")
	if len(parts) < 5 || !strings.EqualFold(strings.TrimSpace(parts[len(parts)-1]), "ODD") {
		return ODDFile{}, false
	}

	year := strings.TrimSpace(parts[1])
	month := strings.TrimSpace(parts[2])
	if !digits(year) || !digits(month) {
		return ODDFile{}, false
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return ODDFile{
		ClientID:   strings.TrimSpace(parts[0]),
		Year:       year,
		MonthNum:   month,
		ClientName: strings.TrimSpace(strings.Join(parts[3:len(parts)-1], "-")),
		Filename:   base,
	}, true
}

// ParseMonthFolder reads "2026.02" or "February, 2026" into year and
// zero-padded month.
func ParseMonthFolder(name string) (string, string, bool) {
	name = strings.TrimSpace(name)
	if m := monthNumeric.FindStringSubmatch(name); m != nil {
		return m[1], m[2], true
	}
	m := monthName.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	for mon := time.January; mon <= time.December; mon++ {
		if strings.EqualFold(mon.String(), m[1]) {
			return m[2], fmt.Sprintf("%02d", int(mon)), true
		}
	}
	return "", "", false
}

// ResolveMonth validates a YYYY.MM month, defaulting to the month of now.
func ResolveMonth(month string, now time.Time) (string, error) {
	if month == "" {
		return now.Format("2006.01"), nil
	}
	m := monthNumeric.FindStringSubmatch(month)
	if m == nil {
		return "", fmt.Errorf("month must be in YYYY.MM format, got %q", month)
	}
	if n, _ := strconv.Atoi(m[2]); n < 1 || n > 12 {
		return "", fmt.Errorf("month number out of range in %q", month)
	}
	return month, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
