package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/store/duckdb"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupLoader(t *testing.T) (*Loader, context.Context) {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	l, err := New(db)
	require.NoError(t, err)

	logger := zerolog.New(zerolog.NewTestWriter(t))
	return l, logger.WithContext(context.Background())
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvExtract(header string, rows ...string) string {
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

func TestNew(t *testing.T) {
	l, err := New(nil)
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestLoad_CSV(t *testing.T) {
	l, ctx := setupLoader(t)
	path := writeFile(t, "1453-2026-01-Connex CU-ODD.csv", csvExtract(
		"Stat Code,Prod Code,Date Opened,Date Closed,Balance,Branch",
		"O,DDA,2020-01-15,,1200.50,North",
		"C,SAV,03/02/2019,2025-06-30,\"1,000\",South",
		"O,DDA,not a date,,,East",
	))

	f, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	assert.True(t, f.Has(pipeline.ColProductCode))
	assert.True(t, f.Has(pipeline.ColAvgBal))
	assert.False(t, f.Has("Prod Code"))

	kind, _ := f.KindOf(pipeline.ColDateOpened)
	assert.Equal(t, table.KindDate, kind)
	kind, _ = f.KindOf(pipeline.ColAvgBal)
	assert.Equal(t, table.KindNumber, kind)

	first := f.Row(0)
	d, ok := first.Date(pipeline.ColDateOpened)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), d)
	assert.True(t, first.IsNull(pipeline.ColDateClosed))
	v, _ := first.Number(pipeline.ColAvgBal)
	assert.Equal(t, 1200.5, v)

	second := f.Row(1)
	d, _ = second.Date(pipeline.ColDateOpened)
	assert.Equal(t, time.Date(2019, 3, 2, 0, 0, 0, 0, time.UTC), d)
	v, _ = second.Number(pipeline.ColAvgBal)
	assert.Equal(t, 1000.0, v)

	third := f.Row(2)
	assert.True(t, third.IsNull(pipeline.ColDateOpened))
	assert.True(t, third.IsNull(pipeline.ColAvgBal))
	assert.Equal(t, "East", third.String(pipeline.ColBranch))
}

func TestLoad_MissingColumns(t *testing.T) {
	l, ctx := setupLoader(t)
	path := writeFile(t, "extract.csv", csvExtract(
		"Stat Code,Branch,Some Other Column,Yet Another Column",
		"O,North,aaaaaaaaaaaaaaaaaa,bbbbbbbbbbbbbbbbbbbbbbb",
		"O,South,aaaaaaaaaaaaaaaaaa,bbbbbbbbbbbbbbbbbbbbbbb",
	))

	_, err := l.Load(ctx, path)
	require.Error(t, err)
	assert.Equal(t, fault.KindData, fault.KindOf(err))
	assert.Equal(t,
		[]string{pipeline.ColAvgBal, pipeline.ColDateOpened, pipeline.ColProductCode},
		fault.DetailOf(err)["missing"],
	)
}

func TestLoad_RejectedFiles(t *testing.T) {
	l, ctx := setupLoader(t)

	t.Run("too small", func(t *testing.T) {
		_, err := l.Load(ctx, writeFile(t, "tiny.csv", "Stat Code\nO\n"))
		require.Error(t, err)
		assert.Equal(t, fault.KindData, fault.KindOf(err))
		assert.Contains(t, err.Error(), "too small")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := l.Load(ctx, writeFile(t, "extract.txt", strings.Repeat("x", 200)))
		require.Error(t, err)
		assert.Equal(t, fault.KindData, fault.KindOf(err))
		assert.Contains(t, err.Error(), ".txt")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := l.Load(ctx, filepath.Join(t.TempDir(), "gone.csv"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoad_Workbook(t *testing.T) {
	l, ctx := setupLoader(t)

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	rows := [][]any{
		{"Stat Code", "Product Code", "Date Opened", "Avg Bal", "Business?"},
		{"O", "DDA", "2021-05-01", 250.0, "No"},
		{"O", "DDA", "2022-07-09", 1250.0, "Yes"},
		{"C", "SAV", "2018-11-30", -40.0, "No"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), "extract.xlsx")
	require.NoError(t, wb.SaveAs(path))

	f, err := l.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())

	d, ok := f.Row(1).Date(pipeline.ColDateOpened)
	require.True(t, ok)
	assert.Equal(t, 2022, d.Year())
	v, _ := f.Row(2).Number(pipeline.ColAvgBal)
	assert.Equal(t, -40.0, v)
	assert.Equal(t, "Yes", f.Row(1).String(pipeline.ColBusiness))
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-02-29", "02/29/2024", "2/29/2024", "2024/02/29", "45351"} {
		d, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d, in)
	}
	_, ok := ParseDate("soon")
	assert.False(t, ok)
}

func TestFindDataFile(t *testing.T) {
	dir := t.TempDir()
	_, err := FindDataFile(dir)
	assert.Equal(t, fault.KindData, fault.KindOf(err))

	for _, name := range []string{"b.csv", "a.csv", "z.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	got, err := FindDataFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "z.xlsx"), got)
}

func TestParseODDName(t *testing.T) {
	o, ok := ParseODDName("/drive/1453-2026-1-Connex CU-ODD.xlsx")
	require.True(t, ok)
	assert.Equal(t, "1453", o.ClientID)
	assert.Equal(t, "Connex CU", o.ClientName)
	assert.Equal(t, "2026.01", o.Month())

	o, ok = ParseODDName("77-2025-11-First-Rate Bank-odd.XLSX")
	require.True(t, ok)
	assert.Equal(t, "First-Rate Bank", o.ClientName)

	for _, bad := range []string{"1453-2026-01-Connex-ODD.csv", "1453-2026-Connex-ODD.xlsx", "1453-20x6-01-Connex-ODD.xlsx", "1453-2026-01-Connex-DATA.xlsx"} {
		_, ok := ParseODDName(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseMonthFolder(t *testing.T) {
	cases := map[string][2]string{
		"2026.02":        {"2026", "02"},
		"February, 2026": {"2026", "02"},
		"december 2025":  {"2025", "12"},
	}
	for in, want := range cases {
		y, m, ok := ParseMonthFolder(in)
		require.True(t, ok, in)
		assert.Equal(t, want, [2]string{y, m}, in)
	}
	_, _, ok := ParseMonthFolder("Q1 2026")
	assert.False(t, ok)
}

func TestResolveMonth(t *testing.T) {
	now := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	m, err := ResolveMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, "2026.03", m)

	m, err = ResolveMonth("2025.12", now)
	require.NoError(t, err)
	assert.Equal(t, "2025.12", m)

	for _, bad := range []string{"2025-12", "2025.13", "25.01"} {
		_, err := ResolveMonth(bad, now)
		assert.Error(t, err, bad)
	}
}
