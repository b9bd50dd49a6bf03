package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/analytics/analyticstest"
	"github.com/de-tools/account-review/pkg/analytics/catalog"
	"github.com/de-tools/account-review/pkg/archive"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/output"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) Load(ctx context.Context, path string) (*table.Frame, error) {
	args := m.Called(ctx, path)
	if f := args.Get(0); f != nil {
		return f.(*table.Frame), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockTarget struct {
	mock.Mock
}

func (m *mockTarget) Archive(ctx context.Context, prefix string, files []string) ([]string, error) {
	args := m.Called(ctx, prefix, files)
	if out := args.Get(0); out != nil {
		return out.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDeck struct {
	mock.Mock
}

func (m *mockDeck) Build(ctx context.Context, path string, meta output.WorkbookMeta, slides []domain.AnalysisResult) error {
	return m.Called(ctx, path, meta, slides).Error(0)
}

var fixed = func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }

func newContext(t *testing.T) *pipeline.Context {
	pc := pipeline.NewContext(analyticstest.Client(), t.TempDir())
	pc.InputPath = "/data/1453-2025-12-Fixture CU-ODD.xlsx"
	return pc
}

func names(results []pipeline.StepResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func TestDefault_FullRun(t *testing.T) {
	ctx := analyticstest.Ctx(t)
	registry, err := catalog.Load(ctx)
	require.NoError(t, err)
	deck, err := output.NewOutlineDeck()
	require.NoError(t, err)
	archiveDir := t.TempDir()
	target, err := archive.NewLocalTarget(archiveDir)
	require.NoError(t, err)

	pc := newContext(t)
	l := &mockLoader{}
	l.On("Load", mock.Anything, pc.InputPath).Return(analyticstest.Accounts(t), nil)

	results := pipeline.Run(ctx, pc, Default(Dependencies{
		Loader:   l,
		Registry: registry,
		Deck:     deck,
		Archive:  target,
		Now:      fixed,
	}))

	assert.Equal(t, []string{NameLoad, NameSubsets, NameAnalyze, NameGenerate, NameArchive}, names(results))
	for _, r := range results {
		assert.True(t, r.Success, "%s: %s", r.Name, r.Error)
	}
	assert.NotNil(t, pc.Subsets.EligibleData)
	assert.NotEmpty(t, pc.Slides)

	require.Len(t, pc.ExportLog, 2)
	assert.Equal(t, output.WorkbookPath(pc.Paths.ExcelDir, "1453", analyticstest.Month), pc.ExportLog[0])
	assert.Equal(t, output.DeckPath(pc.Paths.DeckDir, "1453", analyticstest.Month), pc.ExportLog[1])
	for _, f := range pc.ExportLog {
		_, err := os.Stat(filepath.Join(archiveDir, "1453", analyticstest.Month, filepath.Base(f)))
		assert.NoError(t, err)
	}
	l.AssertExpectations(t)
}

func TestLoad_FindsDataFile(t *testing.T) {
	pc := newContext(t)
	pc.InputPath = ""
	require.NoError(t, os.MkdirAll(pc.Paths.BaseDir, 0o755))
	extract := filepath.Join(pc.Paths.BaseDir, "extract.csv")
	require.NoError(t, os.WriteFile(extract, []byte("Stat Code\nO\n"), 0o644))

	l := &mockLoader{}
	l.On("Load", mock.Anything, extract).Return(analyticstest.Accounts(t), nil)

	require.NoError(t, Load(l)(analyticstest.Ctx(t), pc))
	assert.Equal(t, extract, pc.InputPath)
	assert.True(t, pc.HasData())
	assert.Equal(t, pc.Data.Len(), pc.DataOriginal.Len())
}

func TestLoad_FailureStopsRun(t *testing.T) {
	pc := newContext(t)
	l := &mockLoader{}
	l.On("Load", mock.Anything, pc.InputPath).
		Return(nil, fault.Data(map[string]any{"missing": []string{"Avg Bal"}}, "ODD file missing required columns: Avg Bal"))

	results := pipeline.Run(analyticstest.Ctx(t), pc, Default(Dependencies{Loader: l}))
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, fault.KindData, fault.KindOf(results[0].Err))
	assert.False(t, pc.HasData())
}

func TestSubsets_NoData(t *testing.T) {
	err := Subsets(analyticstest.Ctx(t), newContext(t))
	require.Error(t, err)
	assert.Equal(t, fault.KindData, fault.KindOf(err))
	assert.Contains(t, err.Error(), "no data loaded")
}

func TestAnalyze_Selected(t *testing.T) {
	ctx := analyticstest.Ctx(t)
	registry, err := catalog.Load(ctx)
	require.NoError(t, err)

	t.Run("runs only the named modules", func(t *testing.T) {
		pc := analyticstest.Context(t)
		pc.Options.Modules = []string{"overview.stat_codes", "attrition.rates"}
		require.NoError(t, Analyze(registry)(ctx, pc))
		require.Len(t, pc.Outcomes, 2)
		assert.Equal(t, "overview.stat_codes", pc.Outcomes[0].ModuleID)
		assert.Equal(t, "attrition.rates", pc.Outcomes[1].ModuleID)
	})

	t.Run("unknown module", func(t *testing.T) {
		pc := analyticstest.Context(t)
		pc.Options.Modules = []string{"overview.stat_codes", "nope"}
		err := Analyze(registry)(ctx, pc)
		assert.Equal(t, fault.KindConfig, fault.KindOf(err))
		assert.Empty(t, pc.Outcomes)
	})

	t.Run("no registry", func(t *testing.T) {
		assert.Error(t, Analyze(nil)(ctx, analyticstest.Context(t)))
	})
}

func analysed(t *testing.T) *pipeline.Context {
	pc := analyticstest.Context(t)
	pc.Slides = []domain.AnalysisResult{{
		SlideID: "A9.1", Title: "Attrition Rate", Success: true,
		Tables: map[string]*table.Sheet{
			"Rates": table.NewSheet("Year", "Closed").AddRow("2025", map[string]float64{"Closed": 3}),
		},
	}}
	return pc
}

func TestGenerate(t *testing.T) {
	ctx := analyticstest.Ctx(t)

	t.Run("nothing to generate", func(t *testing.T) {
		pc := analyticstest.Context(t)
		require.NoError(t, Generate(nil, fixed)(ctx, pc))
		assert.Empty(t, pc.ExportLog)
	})

	t.Run("deck skipped", func(t *testing.T) {
		pc := analysed(t)
		pc.Options.SkipDeck = true
		deck := &mockDeck{}
		require.NoError(t, Generate(deck, fixed)(ctx, pc))
		require.Len(t, pc.ExportLog, 1)
		assert.FileExists(t, pc.ExportLog[0])
		deck.AssertNotCalled(t, "Build", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deck failure is tolerated", func(t *testing.T) {
		pc := analysed(t)
		deck := &mockDeck{}
		deck.On("Build", mock.Anything, mock.Anything, mock.MatchedBy(func(m output.WorkbookMeta) bool {
			return m.ClientID == "1453" && m.Generated.Equal(fixed())
		}), pc.Slides).Return(errors.New("disk full"))

		require.NoError(t, Generate(deck, fixed)(ctx, pc))
		assert.Len(t, pc.ExportLog, 1)
		deck.AssertExpectations(t)
	})
}

func TestArchive(t *testing.T) {
	ctx := analyticstest.Ctx(t)

	t.Run("no target", func(t *testing.T) {
		pc := newContext(t)
		pc.ExportLog = []string{"a.xlsx"}
		assert.NoError(t, Archive(nil)(ctx, pc))
	})

	t.Run("nothing exported", func(t *testing.T) {
		target := &mockTarget{}
		assert.NoError(t, Archive(target)(ctx, newContext(t)))
		target.AssertNotCalled(t, "Archive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failure does not stop the run", func(t *testing.T) {
		pc := newContext(t)
		pc.ExportLog = []string{"a.xlsx"}
		target := &mockTarget{}
		target.On("Archive", mock.Anything, "1453/2025.12", pc.ExportLog).Return(nil, errors.New("access denied"))

		steps := []pipeline.Step{
			pipeline.Optional(NameArchive, Archive(target)),
			pipeline.Critical("after", func(context.Context, *pipeline.Context) error { return nil }),
		}
		results := pipeline.Run(ctx, pc, steps)
		require.Len(t, results, 2)
		assert.False(t, results[0].Success)
		assert.Equal(t, fault.KindOutput, fault.KindOf(results[0].Err))
		assert.True(t, results[1].Success)
		assert.False(t, pipeline.Succeeded(results))
	})
}
