package calc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a closed date interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// AddMonths shifts t by n calendar months. When the target month is shorter
// the day is clamped to its last day, so Mar 31 minus one month is Feb 28.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first)
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// TrailingTwelveMonths returns [end - 12 months, end].
func TrailingTwelveMonths(end time.Time) Window {
	return Window{Start: AddMonths(end, -12), End: end}
}

// MonthsIn returns a "Jan25" style label for every calendar month touched
// by w, oldest first.
func MonthsIn(w Window) []string {
	var labels []string
	cur := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, w.Start.Location())
	for !cur.After(w.End) {
		labels = append(labels, cur.Format("Jan06"))
		cur = cur.AddDate(0, 1, 0)
	}
	return labels
}

// DaysBetween returns the whole days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return float64(int(b.Sub(a).Hours() / 24))
}

// ParseMonth parses a "YYYY.MM" reporting month into the first day of that month.
func ParseMonth(month string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(month), ".")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid month %q, expected YYYY.MM", month)
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return time.Time{}, fmt.Errorf("invalid year in month %q", month)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return time.Time{}, fmt.Errorf("invalid month number in %q", month)
	}
	return time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC), nil
}

// ReportingPeriod returns the twelve month window ending on the last day of month.
func ReportingPeriod(month string) (Window, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return Window{}, err
	}
	end := first.AddDate(0, 0, daysIn(first)-1)
	return Window{Start: first.AddDate(0, -11, 0), End: end}, nil
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
