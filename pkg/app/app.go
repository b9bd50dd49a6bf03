// Package app opens the long-lived collaborators shared by the CLI and the
// web server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/catalog"
	"github.com/de-tools/account-review/pkg/archive"
	"github.com/de-tools/account-review/pkg/config"
	"github.com/de-tools/account-review/pkg/loader"
	"github.com/de-tools/account-review/pkg/output"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/pipeline/steps"
	"github.com/de-tools/account-review/pkg/services/history"
	"github.com/de-tools/account-review/pkg/services/review"
	"github.com/de-tools/account-review/pkg/store/duckdb"
	"github.com/de-tools/account-review/pkg/store/duckdb/runs"
	"github.com/rs/zerolog"
)

// App holds the databases and services of one process.
type App struct {
	Settings *config.Settings
	History  history.Service
	Registry analytics.Registry
	Loader   *loader.Loader
	Deck     output.DeckBuilder
	Archive  archive.Target

	historyDB *sql.DB
	scratchDB *sql.DB
}

// Open connects the run history database, an in-memory DuckDB used for
// reading extracts, the module registry and the configured archive.
func Open(ctx context.Context, settings *config.Settings) (*App, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings are nil")
	}
	a := &App{Settings: settings}

	var err error
	a.historyDB, err = duckdb.NewDB(duckdb.Settings{DbPath: settings.Paths.HistoryDB})
	if err != nil {
		return nil, fmt.Errorf("failed to open run history database: %w", err)
	}
	store, err := runs.NewStore(a.historyDB)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create run store: %w", err)
	}
	if a.History, err = history.NewService(a.historyDB, store); err != nil {
		a.Close()
		return nil, err
	}

	a.scratchDB, err = duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	if a.Loader, err = loader.New(a.scratchDB); err != nil {
		a.Close()
		return nil, err
	}

	if a.Registry, err = catalog.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Deck, err = output.NewOutlineDeck(); err != nil {
		a.Close()
		return nil, err
	}
	if a.Archive, err = archive.NewTarget(ctx, settings.Archive.Settings()); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("history_db", settings.Paths.HistoryDB).
		Int("modules", len(a.Registry.IDs())).
		Str("archive", settings.Archive.Kind).
		Msg("application ready")
	return a, nil
}

// Reviewer builds a review service writing under outputDir, or the
// configured output directory when empty.
func (a *App) Reviewer(outputDir string, opts pipeline.Options) (review.Service, error) {
	if outputDir == "" {
		outputDir = a.Settings.Paths.OutputDir
	}
	deps := steps.Dependencies{
		Loader:   a.Loader,
		Registry: a.Registry,
		Deck:     a.Deck,
		Archive:  a.Archive,
	}
	return review.NewService(review.Settings{OutputDir: outputDir, Options: opts}, deps, a.History)
}

func (a *App) Close() error {
	var errs []error
	for _, db := range []*sql.DB{a.historyDB, a.scratchDB} {
		if db != nil {
			errs = append(errs, db.Close())
		}
	}
	return errors.Join(errs...)
}
