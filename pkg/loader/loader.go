package loader

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// MinFileSize is the smallest extract accepted; anything shorter is empty or truncated.
const MinFileSize = 100

// RequiredColumns lists each canonical column followed by the aliases it may
// appear under. The first alias found is renamed to the canonical name.
var RequiredColumns = [][]string{
	{pipeline.ColStatCode},
	{pipeline.ColProductCode, "Prod Code"},
	{pipeline.ColDateOpened},
	{pipeline.ColAvgBal, "Balance", "Current Balance", "Cur Bal"},
}

// DateColumns are parsed once at load time; unparseable cells become null.
var DateColumns = []string{pipeline.ColDateOpened, pipeline.ColDateClosed}

var supported = []string{".xlsx", ".csv"}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"01-02-2006",
	"01-02-06",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// Loader reads account extracts into a table. CSV files go through DuckDB,
// workbooks through excelize.
type Loader struct {
	db *sql.DB
}

func New(db *sql.DB) (*Loader, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &Loader{db: db}, nil
}

// raw is an extract before typing: a header and rows of text cells where
// an empty cell is null.
type raw struct {
	header []string
	cells  [][]string
	valid  [][]bool
}

// Load reads path, renames aliased columns, checks the required columns and
// types the date and balance columns.
func (l *Loader) Load(ctx context.Context, path string) (*table.Frame, error) {
	logger := zerolog.Ctx(ctx).With().Str("file", filepath.Base(path)).Logger()
	logger.Info().Msg("loading data")

	ext := strings.ToLower(filepath.Ext(path))
	if !contains(supported, ext) {
		return nil, fault.Data(
			map[string]any{"file": path, "supported": supported},
			"unsupported file format: %s", ext,
		)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindData, err, "stat %s", path)
	}
	if info.Size() < MinFileSize {
		return nil, fault.Data(
			map[string]any{"file": path, "size": info.Size()},
			"file is too small (%d bytes), likely empty or corrupt", info.Size(),
		)
	}

	var r *raw
	switch ext {
	case ".csv":
		r, err = l.readCSV(ctx, path)
	default:
		r, err = readWorkbook(path)
	}
	if err != nil {
		return nil, err
	}

	if err := normalize(ctx, r, path); err != nil {
		return nil, err
	}

	f, err := build(r)
	if err != nil {
		return nil, fault.Wrap(fault.KindData, err, "build table from %s", path)
	}
	logger.Info().Int("rows", f.Len()).Int("columns", len(f.Columns())).Msg("data loaded")
	return f, nil
}

func (l *Loader) readCSV(ctx context.Context, path string) (*raw, error) {
	query := fmt.Sprintf(
		"SELECT * FROM read_csv(%s, header = true, all_varchar = true)",
		quote(path),
	)
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.Wrap(fault.KindData, err, "cannot read CSV file")
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fault.Wrap(fault.KindData, err, "read CSV header")
	}

	r := &raw{header: header}
	for rows.Next() {
		vals := make([]sql.NullString, len(header))
		ptrs := make([]any, len(header))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fault.Wrap(fault.KindData, err, "scan CSV row")
		}
		cells := make([]string, len(header))
		valid := make([]bool, len(header))
		for i, v := range vals {
			cells[i] = strings.TrimSpace(v.String)
			valid[i] = v.Valid && cells[i] != ""
		}
		r.cells = append(r.cells, cells)
		r.valid = append(r.valid, valid)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Wrap(fault.KindData, err, "iterate CSV rows")
	}
	return r, nil
}

func readWorkbook(path string) (*raw, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindData, err, "cannot read Excel file")
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fault.Data(map[string]any{"file": path}, "workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fault.Wrap(fault.KindData, err, "read sheet %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, fault.Data(map[string]any{"file": path, "sheet": sheets[0]}, "sheet %s is empty", sheets[0])
	}

	r := &raw{}
	for _, h := range rows[0] {
		r.header = append(r.header, strings.TrimSpace(h))
	}
	for _, row := range rows[1:] {
		cells := make([]string, len(r.header))
		valid := make([]bool, len(r.header))
		for i := range r.header {
			if i < len(row) {
				cells[i] = strings.TrimSpace(row[i])
			}
			valid[i] = cells[i] != ""
		}
		r.cells = append(r.cells, cells)
		r.valid = append(r.valid, valid)
	}
	return r, nil
}

// normalize renames aliases to canonical names and reports every missing
// required column at once.
func normalize(ctx context.Context, r *raw, path string) error {
	present := map[string]int{}
	for i, h := range r.header {
		present[h] = i
	}

	var missing []string
	for _, names := range RequiredColumns {
		canonical := names[0]
		if _, ok := present[canonical]; ok {
			continue
		}
		found := false
		for _, alias := range names[1:] {
			if i, ok := present[alias]; ok {
				r.header[i] = canonical
				present[canonical] = i
				delete(present, alias)
				zerolog.Ctx(ctx).Info().Str("from", alias).Str("to", canonical).Msg("column renamed")
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, canonical)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fault.Data(
			map[string]any{"file": path, "missing": missing},
			"ODD file missing required columns: %s", strings.Join(missing, ", "),
		)
	}
	return nil
}

func build(r *raw) (*table.Frame, error) {
	cols := make([]*table.Column, 0, len(r.header))
	seen := map[string]bool{}
	for j, name := range r.header {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		cells := make([]string, len(r.cells))
		valid := make([]bool, len(r.cells))
		for i := range r.cells {
			cells[i] = r.cells[i][j]
			valid[i] = r.valid[i][j]
		}

		switch {
		case contains(DateColumns, name):
			cols = append(cols, table.NewDateColumn(name, parseDates(cells, valid)))
		case isBalanceLike(name):
			if nums, ok := parseNumbers(cells, valid); ok {
				cols = append(cols, table.NewNumberColumn(name, nums))
				continue
			}
			cols = append(cols, table.NewStringColumn(name, cells, valid))
		default:
			cols = append(cols, table.NewStringColumn(name, cells, valid))
		}
	}
	return table.New(cols...)
}

func isBalanceLike(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "bal") || strings.HasSuffix(n, " age")
}

func parseDates(cells []string, valid []bool) []time.Time {
	out := make([]time.Time, len(cells))
	for i, c := range cells {
		if !valid[i] {
			continue
		}
		if t, ok := ParseDate(c); ok {
			out[i] = t
		}
	}
	return out
}

// ParseDate reads a date cell written in any of the common extract layouts
// or as an Excel serial number.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// parseNumbers converts a column when every present cell is numeric.
// Thousands separators and currency signs are accepted.
func parseNumbers(cells []string, valid []bool) ([]float64, bool) {
	out := make([]float64, len(cells))
	for i, c := range cells {
		if !valid[i] {
			out[i] = math.NaN()
			continue
		}
		clean := strings.NewReplacer(",", "", "$", "").Replace(c)
		if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
			clean = "-" + strings.Trim(clean, "()")
		}
		v, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// FindDataFile returns the first extract in dir, preferring workbooks.
func FindDataFile(dir string) (string, error) {
	for _, ext := range supported {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return "", fault.Wrap(fault.KindRetrieve, err, "scan %s", dir)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return "", fault.Data(
		map[string]any{"directory": dir, "searched": []string{"*.xlsx", "*.csv"}},
		"no data file found in %s", dir,
	)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
