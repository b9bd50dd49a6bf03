// Package steps holds the stages of a single-client run: load, subsets,
// analysis, deliverables and archive.
package steps

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/archive"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/loader"
	"github.com/de-tools/account-review/pkg/output"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

const (
	NameLoad     = "load_data"
	NameSubsets  = "create_subsets"
	NameAnalyze  = "run_analyses"
	NameGenerate = "generate_output"
	NameArchive  = "archive"
)

// TableLoader reads an account extract into a frame.
type TableLoader interface {
	Load(ctx context.Context, path string) (*table.Frame, error)
}

// Dependencies are the collaborators the steps call into. Deck and Archive
// may be nil; the matching work is then skipped.
type Dependencies struct {
	Loader   TableLoader
	Registry analytics.Registry
	Deck     output.DeckBuilder
	Archive  archive.Target
	Now      func() time.Time
}

// Default returns the standard run: every step critical except archive.
func Default(deps Dependencies) []pipeline.Step {
	return []pipeline.Step{
		pipeline.Critical(NameLoad, Load(deps.Loader)),
		pipeline.Critical(NameSubsets, Subsets),
		pipeline.Critical(NameAnalyze, Analyze(deps.Registry)),
		pipeline.Critical(NameGenerate, Generate(deps.Deck, deps.Now)),
		pipeline.Optional(NameArchive, Archive(deps.Archive)),
	}
}

// Load reads pc.InputPath, or the first extract found in the run's output
// directory when no input was given.
func Load(l TableLoader) pipeline.StepFunc {
	return func(ctx context.Context, pc *pipeline.Context) error {
		if l == nil {
			return fmt.Errorf("loader is nil")
		}
		file := pc.InputPath
		if file == "" {
			found, err := loader.FindDataFile(pc.Paths.BaseDir)
			if err != nil {
				return err
			}
			file = found
			pc.InputPath = found
		}

		f, err := l.Load(ctx, file)
		if err != nil {
			return err
		}
		pc.SetData(f)
		zerolog.Ctx(ctx).Info().
			Str("file", filepath.Base(file)).
			Int("rows", f.Len()).
			Int("columns", len(f.Columns())).
			Msg("data loaded")
		return nil
	}
}

// Subsets derives the filtered views of the loaded table.
func Subsets(ctx context.Context, pc *pipeline.Context) error {
	if !pc.HasData() {
		return fault.Data(nil, "cannot create subsets: no data loaded")
	}
	pc.Subsets = pipeline.DeriveSubsets(ctx, pc)
	return nil
}

// Analyze dispatches the registered modules, or only pc.Options.Modules
// when set.
func Analyze(registry analytics.Registry) pipeline.StepFunc {
	return func(ctx context.Context, pc *pipeline.Context) error {
		if registry == nil {
			return fmt.Errorf("module registry is nil")
		}
		d := analytics.NewDispatcher(registry)
		if len(pc.Options.Modules) == 0 {
			d.Dispatch(ctx, pc)
			return nil
		}
		_, err := d.DispatchSelected(ctx, pc, pc.Options.Modules)
		return err
	}
}

// Generate writes the workbook and, unless skipped, the deck outline. Paths
// of the files written are appended to pc.ExportLog. A deck failure is
// logged and does not fail the step.
func Generate(deck output.DeckBuilder, now func() time.Time) pipeline.StepFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, pc *pipeline.Context) error {
		logger := zerolog.Ctx(ctx)
		if len(pc.Slides) == 0 {
			logger.Warn().Msg("no analysis results to generate deliverables from")
			return nil
		}

		meta := output.WorkbookMeta{
			ClientID:   pc.Client.ID,
			ClientName: pc.Client.Name,
			Month:      pc.Client.Month,
			CSM:        pc.Client.AssignedCSM,
			Generated:  now(),
		}

		wbPath := output.WorkbookPath(pc.Paths.ExcelDir, pc.Client.ID, pc.Client.Month)
		n, err := output.WriteWorkbook(ctx, wbPath, meta, pc.Slides)
		if err != nil {
			return err
		}
		if n > 0 {
			pc.ExportLog = append(pc.ExportLog, wbPath)
		}

		if pc.Options.SkipDeck || deck == nil {
			logger.Info().Msg("deck generation skipped")
			return nil
		}
		deckPath := output.DeckPath(pc.Paths.DeckDir, pc.Client.ID, pc.Client.Month)
		if err := deck.Build(ctx, deckPath, meta, pc.Slides); err != nil {
			logger.Warn().Err(err).Msg("deck build failed")
			return nil
		}
		if len(output.Group(pc.Slides)) > 0 {
			pc.ExportLog = append(pc.ExportLog, deckPath)
		}
		return nil
	}
}

// Archive copies the exported deliverables to target under
// "<client>/<month>". A nil target skips the step.
func Archive(target archive.Target) pipeline.StepFunc {
	return func(ctx context.Context, pc *pipeline.Context) error {
		logger := zerolog.Ctx(ctx)
		if target == nil {
			logger.Info().Msg("no archive configured")
			return nil
		}
		if len(pc.ExportLog) == 0 {
			logger.Info().Msg("nothing to archive")
			return nil
		}
		locations, err := target.Archive(ctx, path.Join(pc.Client.ID, pc.Client.Month), pc.ExportLog)
		if err != nil {
			return fault.Wrap(fault.KindOutput, err, "archive deliverables")
		}
		logger.Info().Strs("locations", locations).Msg("deliverables archived")
		return nil
	}
}
