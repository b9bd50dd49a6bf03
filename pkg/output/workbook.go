package output

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet   = "Summary"
	maxSheetName   = 31
	maxColumnWidth = 40
	minColumnWidth = 8
	headerColor    = "1E3D59"
)

var sheetNameCleaner = strings.NewReplacer(
	":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")",
)

// WorkbookMeta is what the Summary sheet reports about a run.
type WorkbookMeta struct {
	ClientID   string
	ClientName string
	Month      string
	CSM        string
	Generated  time.Time
}

// WorkbookPath is where a run's workbook is written inside dir.
func WorkbookPath(dir, clientID, month string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_analysis.xlsx", clientID, month))
}

// SheetName builds the tab name for one table of a slide, limited to what
// Excel accepts.
func SheetName(slideID, tableName string) string {
	name := sheetNameCleaner.Replace(slideID + "_" + tableName)
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// WriteWorkbook writes one sheet per table of every successful slide plus a
// leading Summary sheet. It returns the number of data sheets written and
// writes nothing when there are none.
func WriteWorkbook(ctx context.Context, path string, meta WorkbookMeta, slides []domain.AnalysisResult) (int, error) {
	logger := zerolog.Ctx(ctx)

	wb := excelize.NewFile()
	defer wb.Close()

	st, err := newStyles(wb)
	if err != nil {
		return 0, fault.Wrap(fault.KindOutput, err, "create workbook styles")
	}

	used := map[string]bool{}
	written := 0
	for _, s := range slides {
		if !s.Success || len(s.Tables) == 0 {
			continue
		}
		for _, name := range sortedTables(s.Tables) {
			sheet := unique(SheetName(s.SlideID, name), used)
			if _, err := wb.NewSheet(sheet); err != nil {
				return 0, fault.Wrap(fault.KindOutput, err, "create sheet %s", sheet)
			}
			if err := writeSheet(wb, sheet, s.Tables[name], st); err != nil {
				return 0, fault.Wrap(fault.KindOutput, err, "write sheet %s", sheet)
			}
			written++
		}
	}

	if written == 0 {
		logger.Warn().Msg("no tables to write, workbook skipped")
		return 0, nil
	}

	if err := writeSummary(wb, meta, slides, st); err != nil {
		return 0, fault.Wrap(fault.KindOutput, err, "write summary sheet")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fault.Wrap(fault.KindOutput, err, "create output directory")
	}
	if err := wb.SaveAs(path); err != nil {
		return 0, fault.Wrap(fault.KindOutput, err, "save workbook %s", path)
	}
	logger.Info().Str("path", filepath.Base(path)).Int("sheets", written).Msg("workbook written")
	return written, nil
}

type styles struct {
	header int
	title  int
}

func newStyles(wb *excelize.File) (styles, error) {
	header, err := wb.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11, Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerColor}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "D0D0D0", Style: 1},
			{Type: "right", Color: "D0D0D0", Style: 1},
			{Type: "top", Color: "D0D0D0", Style: 1},
			{Type: "bottom", Color: "D0D0D0", Style: 1},
		},
	})
	if err != nil {
		return styles{}, err
	}
	title, err := wb.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: headerColor, Size: 14, Family: "Calibri"},
	})
	if err != nil {
		return styles{}, err
	}
	return styles{header: header, title: title}, nil
}

func writeSheet(wb *excelize.File, sheet string, s *table.Sheet, st styles) error {
	header := append([]any{s.LabelColumn}, toAny(s.Columns)...)
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(fmt.Sprint(h)) + 2
	}

	for i, r := range s.Rows() {
		row := make([]any, 0, len(r.Values)+1)
		row = append(row, r.Label)
		widths[0] = max(widths[0], len(r.Label)+2)
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
			widths[j+1] = max(widths[j+1], len(fmt.Sprintf("%.2f", v))+2)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := wb.SetCellStyle(sheet, "A1", last, st.header); err != nil {
		return err
	}
	if err := wb.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return setWidths(wb, sheet, widths)
}

// writeSummary renames the default first sheet so the summary leads the workbook.
func writeSummary(wb *excelize.File, meta WorkbookMeta, slides []domain.AnalysisResult, st styles) error {
	sheet := wb.GetSheetName(0)
	if err := wb.SetSheetName(sheet, SummarySheet); err != nil {
		return err
	}

	generated := meta.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	title := fmt.Sprintf("Account Review: %s", meta.ClientName)
	if meta.ClientName == "" {
		title = fmt.Sprintf("Account Review: %s", meta.ClientID)
	}

	rows := [][]any{
		{title},
		{},
		{"Client ID", meta.ClientID},
		{"Client Name", meta.ClientName},
		{"Month", meta.Month},
		{"CSM", meta.CSM},
		{"Generated", generated.Format("2006-01-02 15:04")},
		{},
		{"Slide", "Title", "Section", "Status"},
	}
	for _, s := range slides {
		status := "OK"
		if !s.Success {
			status = "FAILED: " + s.Error
		}
		rows = append(rows, []any{s.SlideID, s.Title, Section(s.SlideID), status})
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(SummarySheet, cell, &r); err != nil {
			return err
		}
	}
	if err := wb.SetCellStyle(SummarySheet, "A1", "A1", st.title); err != nil {
		return err
	}
	if err := wb.SetCellStyle(SummarySheet, "A9", "D9", st.header); err != nil {
		return err
	}
	wb.SetActiveSheet(0)
	return setWidths(wb, SummarySheet, []int{14, 40, 12, 30})
}

func setWidths(wb *excelize.File, sheet string, widths []int) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		w = min(max(w, minColumnWidth), maxColumnWidth)
		if err := wb.SetColWidth(sheet, col, col, float64(w)); err != nil {
			return err
		}
	}
	return nil
}

func sortedTables(tables map[string]*table.Sheet) []string {
	names := make([]string, 0, len(tables))
	for name, s := range tables {
		if s != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// unique suffixes a truncated name until no earlier sheet uses it.
func unique(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)] || strings.EqualFold(candidate, SummarySheet); n++ {
		suffix := fmt.Sprintf("~%d", n)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
