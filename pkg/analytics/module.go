package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/rs/zerolog"
)

const NoDataLoaded = "no data loaded"

// Module is an analysis unit run by the dispatcher.
type Module interface {
	ID() string
	DisplayName() string
	Section() string
	RequiredColumns() []string
	RequiredResults() []string
	// Validate lists the reasons the module cannot run against pc. It never fails.
	Validate(pc *pipeline.Context) []string
	Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error)
}

// Dependent is implemented by modules that declare which result keys they
// write and which they read without requiring them.
type Dependent interface {
	Produces() []string
	Reads() []string
}

// Base carries module metadata and the default validation. Concrete modules
// embed it and implement Run.
type Base struct {
	ModuleID string
	Name     string
	Sect     string
	Columns  []string
	Results  []string
	Outputs  []string
	Optional []string
}

func (b Base) ID() string                { return b.ModuleID }
func (b Base) DisplayName() string       { return b.Name }
func (b Base) Section() string           { return b.Sect }
func (b Base) RequiredColumns() []string { return b.Columns }
func (b Base) RequiredResults() []string { return b.Results }
func (b Base) Produces() []string        { return b.Outputs }
func (b Base) Reads() []string           { return b.Optional }

// Validate checks that a table is loaded, that it has every required column
// and that every required result key is present.
func (b Base) Validate(pc *pipeline.Context) []string {
	if pc == nil || !pc.HasData() {
		return []string{NoDataLoaded}
	}
	var problems []string

	var missing []string
	for _, c := range b.Columns {
		if !pc.Data.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		problems = append(problems, fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}

	var absent []string
	for _, k := range b.Results {
		if _, ok := pc.Result(k); !ok {
			absent = append(absent, k)
		}
	}
	if len(absent) > 0 {
		sort.Strings(absent)
		problems = append(problems, fmt.Sprintf("missing results: %s", strings.Join(absent, ", ")))
	}
	return problems
}

// Success builds a successful artifact.
func Success(slideID, title string) domain.AnalysisResult {
	return domain.AnalysisResult{SlideID: slideID, Title: title, Success: true}
}

// Part runs one slide of a module. An error or panic from fn becomes a failed
// artifact for that slide, so the module's remaining slides still run.
func Part(ctx context.Context, slideID, title string, fn func() ([]domain.AnalysisResult, error)) (out []domain.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Warn().Str("slide", slideID).Interface("panic", r).Msg("slide panicked")
			out = []domain.AnalysisResult{domain.FailedResult(slideID, title, fmt.Errorf("panic: %v", r))}
		}
	}()
	res, err := fn()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Str("slide", slideID).Err(err).Msg("slide failed")
		return []domain.AnalysisResult{domain.FailedResult(slideID, title, err)}
	}
	return res
}
