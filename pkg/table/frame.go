package table

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is an immutable view over a set of equally sized columns.
//
// Filtering never copies cell data: a filtered frame shares the base columns
// and keeps the ids of the base rows it selects, so every derived view is a
// row subset of the frame it came from. Columns added with WithColumn belong
// to the view only.
type Frame struct {
	cols     []*Column
	index    map[string]int
	rows     []int
	extra    []*Column
	extraIdx map[string]int
}

// New builds a frame from columns of equal length with unique names.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols)), extraIdx: map[string]int{}}
	n := -1
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if n >= 0 && c.Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), n)
		}
		n = c.Len()
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	if n < 0 {
		n = 0
	}
	f.rows = make([]int, n)
	for i := range f.rows {
		f.rows[i] = i
	}
	return f, nil
}

// Len returns the number of rows in the view.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Columns returns the column names, base columns first.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.cols)+len(f.extra))
	for _, c := range f.cols {
		names = append(names, c.Name)
	}
	for _, c := range f.extra {
		names = append(names, c.Name)
	}
	return names
}

// Has reports whether the frame carries a column with the given name.
func (f *Frame) Has(name string) bool {
	if _, ok := f.index[name]; ok {
		return true
	}
	_, ok := f.extraIdx[name]
	return ok
}

// KindOf returns the storage kind of a column.
func (f *Frame) KindOf(name string) (Kind, bool) {
	if i, ok := f.index[name]; ok {
		return f.cols[i].Kind, true
	}
	if i, ok := f.extraIdx[name]; ok {
		return f.extra[i].Kind, true
	}
	return KindString, false
}

// RowIDs returns the base row ids selected by this view.
func (f *Frame) RowIDs() []int {
	return append([]int(nil), f.rows...)
}

// Row returns the row at view position pos.
func (f *Frame) Row(pos int) Row {
	return Row{f: f, pos: pos}
}

// Each calls fn for every row in view order.
func (f *Frame) Each(fn func(Row)) {
	for pos := range f.rows {
		fn(Row{f: f, pos: pos})
	}
}

// Filter returns the view of rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	positions := make([]int, 0, len(f.rows))
	for pos := range f.rows {
		if keep(Row{f: f, pos: pos}) {
			positions = append(positions, pos)
		}
	}
	return f.subset(positions)
}

// Count returns the number of rows matching pred.
func (f *Frame) Count(pred func(Row) bool) int {
	n := 0
	for pos := range f.rows {
		if pred(Row{f: f, pos: pos}) {
			n++
		}
	}
	return n
}

// WithColumn returns a view carrying an extra column aligned to its rows.
func (f *Frame) WithColumn(c *Column) (*Frame, error) {
	if c.Len() != f.Len() {
		return nil, fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.Len())
	}
	if f.Has(c.Name) {
		return nil, fmt.Errorf("duplicate column %q", c.Name)
	}
	out := f.shallow()
	out.rows = f.rows
	out.extraIdx[c.Name] = len(out.extra)
	out.extra = append(out.extra, c)
	return out, nil
}

// Clone returns a deep copy of the view that shares no cell storage.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		index:    make(map[string]int, len(f.index)),
		extraIdx: make(map[string]int, len(f.extraIdx)),
		rows:     append([]int(nil), f.rows...),
	}
	for i, c := range f.cols {
		out.cols = append(out.cols, c.clone())
		out.index[c.Name] = i
	}
	for i, c := range f.extra {
		out.extra = append(out.extra, c.clone())
		out.extraIdx[c.Name] = i
	}
	return out
}

// Distinct returns the sorted distinct non-null text values of a column.
func (f *Frame) Distinct(name string) []string {
	seen := map[string]struct{}{}
	f.Each(func(r Row) {
		if r.IsNull(name) {
			return
		}
		seen[r.String(name)] = struct{}{}
	})
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Group splits the view by key. Rows for which key reports false are left
// out. Keys are returned in order of first appearance.
func (f *Frame) Group(key func(Row) (string, bool)) ([]string, map[string]*Frame) {
	var keys []string
	positions := map[string][]int{}
	for pos := range f.rows {
		k, ok := key(Row{f: f, pos: pos})
		if !ok {
			continue
		}
		if _, seen := positions[k]; !seen {
			keys = append(keys, k)
		}
		positions[k] = append(positions[k], pos)
	}
	groups := make(map[string]*Frame, len(keys))
	for _, k := range keys {
		groups[k] = f.subset(positions[k])
	}
	return keys, groups
}

// Sum adds the non-null numeric values of a column.
func (f *Frame) Sum(name string) float64 {
	total := 0.0
	f.Each(func(r Row) {
		if v, ok := r.Number(name); ok {
			total += v
		}
	})
	return total
}

func (f *Frame) shallow() *Frame {
	out := &Frame{
		cols:     f.cols,
		index:    f.index,
		extra:    append([]*Column(nil), f.extra...),
		extraIdx: make(map[string]int, len(f.extraIdx)),
	}
	for k, v := range f.extraIdx {
		out.extraIdx[k] = v
	}
	return out
}

func (f *Frame) subset(positions []int) *Frame {
	out := &Frame{cols: f.cols, index: f.index, extraIdx: make(map[string]int, len(f.extraIdx))}
	out.rows = make([]int, len(positions))
	for j, p := range positions {
		out.rows[j] = f.rows[p]
	}
	for i, c := range f.extra {
		out.extra = append(out.extra, c.take(positions))
		out.extraIdx[c.Name] = i
	}
	return out
}

func (f *Frame) locate(name string, pos int) (*Column, int, bool) {
	if i, ok := f.index[name]; ok {
		return f.cols[i], f.rows[pos], true
	}
	if i, ok := f.extraIdx[name]; ok {
		return f.extra[i], pos, true
	}
	return nil, 0, false
}

// Row is a cursor over one row of a frame.
type Row struct {
	f   *Frame
	pos int
}

// ID returns the base row id.
func (r Row) ID() int {
	return r.f.rows[r.pos]
}

// IsNull reports whether the cell is missing or the column does not exist.
func (r Row) IsNull(col string) bool {
	c, i, ok := r.f.locate(col, r.pos)
	return !ok || c.IsNull(i)
}

// String returns the cell as text; missing cells are empty.
func (r Row) String(col string) string {
	c, i, ok := r.f.locate(col, r.pos)
	if !ok {
		return ""
	}
	return c.stringAt(i)
}

// Number returns the cell as a float; text cells are parsed.
func (r Row) Number(col string) (float64, bool) {
	c, i, ok := r.f.locate(col, r.pos)
	if !ok {
		return math.NaN(), false
	}
	return c.numberAt(i)
}

// Date returns the cell of a date column.
func (r Row) Date(col string) (time.Time, bool) {
	c, i, ok := r.f.locate(col, r.pos)
	if !ok {
		return time.Time{}, false
	}
	return c.dateAt(i)
}
