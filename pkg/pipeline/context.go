package pipeline

import (
	"path/filepath"
	"time"

	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/google/uuid"
)

// OutputPaths are the directories a run writes to.
type OutputPaths struct {
	BaseDir   string
	ChartsDir string
	ExcelDir  string
	DeckDir   string
}

// NewOutputPaths resolves base/<client>/<month> and its charts directory.
func NewOutputPaths(base, clientID, month string) OutputPaths {
	runDir := filepath.Join(base, clientID, month)
	return OutputPaths{
		BaseDir:   runDir,
		ChartsDir: filepath.Join(runDir, "charts"),
		ExcelDir:  runDir,
		DeckDir:   runDir,
	}
}

// Subsets are the filtered views derived from the loaded table. A nil
// subset means the view does not apply to this run.
type Subsets struct {
	OpenAccounts      *table.Frame
	EligibleData      *table.Frame
	EligiblePersonal  *table.Frame
	EligibleBusiness  *table.Frame
	EligibleWithDebit *table.Frame
	Last12Months      *table.Frame
}

// Options tune a single run.
type Options struct {
	// Modules restricts analysis to the given module ids, run in the given order.
	Modules  []string
	SkipDeck bool
}

// Context is the state of one pipeline run. It has a single owner: steps and
// analysis modules run one at a time and mutate it in place.
type Context struct {
	RunID   string
	Client  domain.ClientInfo
	Paths   OutputPaths
	Options Options

	InputPath    string
	Data         *table.Frame
	DataOriginal *table.Frame
	Subsets      Subsets

	// Results holds per-module []domain.AnalysisResult under the module id
	// next to ad-hoc values shared between modules.
	Results   map[string]any
	Slides    []domain.AnalysisResult
	Outcomes  []domain.ModuleOutcome
	ExportLog []string

	StartDate time.Time
	EndDate   time.Time
}

// NewContext builds a context for client with outputs under baseDir. The
// reporting window is taken from the client month when it parses.
func NewContext(client domain.ClientInfo, baseDir string) *Context {
	pc := &Context{
		RunID:   uuid.NewString(),
		Client:  client,
		Paths:   NewOutputPaths(baseDir, client.ID, client.Month),
		Results: map[string]any{},
	}
	if w, err := calc.ReportingPeriod(client.Month); err == nil {
		pc.StartDate, pc.EndDate = w.Start, w.End
	}
	return pc
}

// SetData installs the loaded table and keeps an untouched deep copy of it.
func (pc *Context) SetData(f *table.Frame) {
	pc.Data = f
	pc.DataOriginal = f.Clone()
}

// HasData reports whether a table is loaded.
func (pc *Context) HasData() bool {
	return pc.Data != nil
}

// Result returns the value stored under key.
func (pc *Context) Result(key string) (any, bool) {
	v, ok := pc.Results[key]
	return v, ok
}

// SetResult stores a shared value under key.
func (pc *Context) SetResult(key string, v any) {
	if pc.Results == nil {
		pc.Results = map[string]any{}
	}
	pc.Results[key] = v
}

// ModuleResults returns the artifacts a module stored under its id.
func (pc *Context) ModuleResults(id string) ([]domain.AnalysisResult, bool) {
	v, ok := pc.Results[id].([]domain.AnalysisResult)
	return v, ok
}

// HasEndDate reports whether the reporting window is known.
func (pc *Context) HasEndDate() bool {
	return !pc.EndDate.IsZero()
}
