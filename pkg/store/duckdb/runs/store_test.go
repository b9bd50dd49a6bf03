package runs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/account-review/pkg/models/store"
	"github.com/de-tools/account-review/pkg/store/duckdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupFixture(t *testing.T) *fixture {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	s, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{
		db:    db,
		store: s,
	}
}

func newRun(id, client string, started time.Time) *store.Run {
	return &store.Run{
		ID:         id,
		ClientID:   client,
		ClientName: "Client " + client,
		Month:      "2025.12",
		InputPath:  "/in/" + client + ".xlsx",
		Status:     "running",
		StartedAt:  started,
	}
}

func strPtr(s string) *string { return &s }

func TestNewStore(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupFixture(t)
		assert.NotNil(t, f.store)
	})

	t.Run("nil db", func(t *testing.T) {
		s, err := NewStore(nil)
		assert.Error(t, err)
		assert.Nil(t, s)
	})
}

func TestStore_RunLifecycle(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	started := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	run := newRun("run-1", "1453", started)
	require.NoError(t, f.store.CreateRun(ctx, run))

	got, err := f.store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "1453", got.ClientID)
	assert.Equal(t, "Client 1453", got.ClientName)
	assert.Equal(t, "running", got.Status)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.Error)

	finished := started.Add(2 * time.Minute)
	run.Status = "failed"
	run.SlideCount = 12
	run.FinishedAt = &finished
	run.Error = strPtr("analyze: boom")
	require.NoError(t, f.store.FinishRun(ctx, run))

	got, err = f.store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, 12, got.SlideCount)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, finished.Unix(), got.FinishedAt.Unix())
	require.NotNil(t, got.Error)
	assert.Equal(t, "analyze: boom", *got.Error)

	t.Run("unknown run", func(t *testing.T) {
		_, err := f.store.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		err = f.store.FinishRun(ctx, &store.Run{ID: "missing", Status: "succeeded"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := f.store.CreateRun(ctx, newRun("run-1", "1453", started))
		assert.Error(t, err)
	})
}

func TestStore_StepsAndOutcomes(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateRun(ctx, newRun("run-1", "1453", time.Now())))

	steps := []store.StepResult{
		{Name: "load", Success: true, ElapsedMs: 120},
		{Name: "archive", Success: false, ElapsedMs: 3, Error: strPtr("bucket unreachable")},
	}
	require.NoError(t, f.store.AddSteps(ctx, "run-1", steps))
	require.NoError(t, f.store.AddSteps(ctx, "run-1", nil))

	outcomes := []store.ModuleOutcome{
		{ModuleID: "overview.stat_codes", Status: "succeeded", Results: 1, ElapsedMs: 4},
		{ModuleID: "rege.status", Status: "skipped", Problems: []string{"missing columns: Debit?"}},
	}
	require.NoError(t, f.store.AddOutcomes(ctx, "run-1", outcomes))

	gotSteps, err := f.store.GetSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotSteps, 2)
	assert.Equal(t, 0, gotSteps[0].Seq)
	assert.Equal(t, "load", gotSteps[0].Name)
	assert.Nil(t, gotSteps[0].Error)
	assert.False(t, gotSteps[1].Success)
	require.NotNil(t, gotSteps[1].Error)
	assert.Equal(t, "bucket unreachable", *gotSteps[1].Error)

	gotOutcomes, err := f.store.GetOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, gotOutcomes, 2)
	assert.Equal(t, "overview.stat_codes", gotOutcomes[0].ModuleID)
	assert.Empty(t, gotOutcomes[0].Problems)
	assert.Equal(t, []string{"missing columns: Debit?"}, gotOutcomes[1].Problems)

	empty, err := f.store.GetSteps(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_ListRuns(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.CreateRun(ctx, newRun("a", "1453", base)))
	require.NoError(t, f.store.CreateRun(ctx, newRun("b", "1453", base.Add(time.Hour))))
	require.NoError(t, f.store.CreateRun(ctx, newRun("c", "77", base.Add(2*time.Hour))))

	t.Run("all runs newest first", func(t *testing.T) {
		runs, err := f.store.ListRuns(ctx, store.RunFilter{})
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "c", runs[0].ID)
		assert.Equal(t, "a", runs[2].ID)
	})

	t.Run("by client", func(t *testing.T) {
		runs, err := f.store.ListRuns(ctx, store.RunFilter{ClientIDs: []string{"1453"}})
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})

	t.Run("limit", func(t *testing.T) {
		runs, err := f.store.ListRuns(ctx, store.RunFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "c", runs[0].ID)
	})
}

func TestStore_UsesContextTransaction(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := duckdb.InTransaction(ctx, f.db, func(ctx context.Context) error {
		require.NoError(t, f.store.CreateRun(ctx, newRun("tx", "1453", time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = f.store.GetRun(ctx, "tx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("insert run", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO runs").WillReturnError(errors.New("disk full"))
		err := s.CreateRun(ctx, newRun("x", "1", time.Now()))
		assert.ErrorContains(t, err, "insert run: disk full")
	})

	t.Run("missing run id", func(t *testing.T) {
		assert.Error(t, s.CreateRun(ctx, &store.Run{}))
	})

	t.Run("prepare steps", func(t *testing.T) {
		mock.ExpectPrepare("INSERT INTO step_results").WillReturnError(errors.New("locked"))
		err := s.AddSteps(ctx, "x", []store.StepResult{{Name: "load"}})
		assert.ErrorContains(t, err, "prepare statement")
	})

	t.Run("list runs", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM runs").WillReturnError(errors.New("closed"))
		_, err := s.ListRuns(ctx, store.RunFilter{})
		assert.ErrorContains(t, err, "query runs")
	})

	t.Run("scan run", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM runs WHERE id").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("x"))
		_, err := s.GetRun(ctx, "x")
		assert.ErrorContains(t, err, "scan run")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
