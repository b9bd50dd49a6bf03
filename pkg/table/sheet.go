package table

import (
	"math"
	"sort"
)

// Sheet is a small breakdown table: one label column followed by numeric
// value columns. Missing values are NaN. Sheets are what analysis modules
// hand to the workbook renderer.
type Sheet struct {
	LabelColumn string
	Columns     []string
	rows        []SheetRow
}

// SheetRow is one labelled row of a sheet.
type SheetRow struct {
	Label  string
	Values []float64
}

// NewSheet creates an empty sheet.
func NewSheet(labelColumn string, columns ...string) *Sheet {
	return &Sheet{LabelColumn: labelColumn, Columns: append([]string(nil), columns...)}
}

// AddRow appends a row. Columns absent from values are stored as NaN and
// keys that are not sheet columns are ignored.
func (s *Sheet) AddRow(label string, values map[string]float64) *Sheet {
	row := SheetRow{Label: label, Values: make([]float64, len(s.Columns))}
	for i, c := range s.Columns {
		v, ok := values[c]
		if !ok {
			v = math.NaN()
		}
		row.Values[i] = v
	}
	s.rows = append(s.rows, row)
	return s
}

// Len returns the number of rows.
func (s *Sheet) Len() int {
	return len(s.rows)
}

// Empty reports whether the sheet has no rows.
func (s *Sheet) Empty() bool {
	return s == nil || len(s.rows) == 0
}

// Rows returns a copy of the rows.
func (s *Sheet) Rows() []SheetRow {
	out := make([]SheetRow, len(s.rows))
	for i, r := range s.rows {
		out[i] = SheetRow{Label: r.Label, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// Has reports whether the sheet has a value column with the given name.
func (s *Sheet) Has(col string) bool {
	return s.columnIndex(col) >= 0
}

// Column returns the values of one column in row order.
func (s *Sheet) Column(col string) []float64 {
	idx := s.columnIndex(col)
	out := make([]float64, len(s.rows))
	for i, r := range s.rows {
		if idx < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = r.Values[idx]
	}
	return out
}

// Value returns the value in the row with the given label.
func (s *Sheet) Value(label, col string) (float64, bool) {
	idx := s.columnIndex(col)
	if idx < 0 {
		return math.NaN(), false
	}
	for _, r := range s.rows {
		if r.Label == label {
			return r.Values[idx], !math.IsNaN(r.Values[idx])
		}
	}
	return math.NaN(), false
}

// Clone returns a deep copy.
func (s *Sheet) Clone() *Sheet {
	return &Sheet{LabelColumn: s.LabelColumn, Columns: append([]string(nil), s.Columns...), rows: s.Rows()}
}

// SortBy orders rows by a column; ties keep their current order and NaN sorts last.
func (s *Sheet) SortBy(col string, desc bool) {
	idx := s.columnIndex(col)
	if idx < 0 {
		return
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		a, b := s.rows[i].Values[idx], s.rows[j].Values[idx]
		switch {
		case math.IsNaN(a):
			return false
		case math.IsNaN(b):
			return true
		case desc:
			return a > b
		default:
			return a < b
		}
	})
}

func (s *Sheet) columnIndex(col string) int {
	for i, c := range s.Columns {
		if c == col {
			return i
		}
	}
	return -1
}
