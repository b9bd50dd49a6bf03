package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// DateLayout is the canonical text form of date cells.
const DateLayout = "2006-01-02"

// Column is a typed, nullable vector of cells.
type Column struct {
	Name  string
	Kind  Kind
	strs  []string
	nums  []float64
	dates []time.Time
	valid []bool
}

// NewStringColumn builds a string column. A nil valid slice marks every cell present.
func NewStringColumn(name string, values []string, valid []bool) *Column {
	if valid == nil {
		valid = make([]bool, len(values))
		for i := range valid {
			valid[i] = true
		}
	}
	return &Column{Name: name, Kind: KindString, strs: values, valid: valid}
}

// NewNumberColumn builds a number column; NaN cells are null.
func NewNumberColumn(name string, values []float64) *Column {
	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = !math.IsNaN(v)
	}
	return &Column{Name: name, Kind: KindNumber, nums: values, valid: valid}
}

// NewDateColumn builds a date column; zero times are null.
func NewDateColumn(name string, values []time.Time) *Column {
	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = !v.IsZero()
	}
	return &Column{Name: name, Kind: KindDate, dates: values, valid: valid}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.valid)
}

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool {
	return !c.valid[i]
}

func (c *Column) stringAt(i int) string {
	if !c.valid[i] {
		return ""
	}
	switch c.Kind {
	case KindNumber:
		return strconv.FormatFloat(c.nums[i], 'f', -1, 64)
	case KindDate:
		return c.dates[i].Format(DateLayout)
	default:
		return c.strs[i]
	}
}

func (c *Column) numberAt(i int) (float64, bool) {
	if !c.valid[i] {
		return math.NaN(), false
	}
	switch c.Kind {
	case KindNumber:
		return c.nums[i], true
	case KindString:
		v, err := strconv.ParseFloat(strings.TrimSpace(c.strs[i]), 64)
		if err != nil {
			return math.NaN(), false
		}
		return v, true
	default:
		return math.NaN(), false
	}
}

func (c *Column) dateAt(i int) (time.Time, bool) {
	if !c.valid[i] || c.Kind != KindDate {
		return time.Time{}, false
	}
	return c.dates[i], true
}

// take returns a new column holding the cells at the given positions.
func (c *Column) take(positions []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, valid: make([]bool, len(positions))}
	switch c.Kind {
	case KindNumber:
		out.nums = make([]float64, len(positions))
	case KindDate:
		out.dates = make([]time.Time, len(positions))
	default:
		out.strs = make([]string, len(positions))
	}
	for j, p := range positions {
		out.valid[j] = c.valid[p]
		switch c.Kind {
		case KindNumber:
			out.nums[j] = c.nums[p]
		case KindDate:
			out.dates[j] = c.dates[p]
		default:
			out.strs[j] = c.strs[p]
		}
	}
	return out
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, valid: append([]bool(nil), c.valid...)}
	out.strs = append([]string(nil), c.strs...)
	out.nums = append([]float64(nil), c.nums...)
	out.dates = append([]time.Time(nil), c.dates...)
	return out
}
