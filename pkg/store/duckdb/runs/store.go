package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/account-review/pkg/models/store"
	"github.com/de-tools/account-review/pkg/store/duckdb"
)

var ErrNotFound = errors.New("run not found")

// Store persists run history: one row per run plus its step results and
// module outcomes. Writes join the transaction carried on ctx when present.
type Store interface {
	CreateRun(ctx context.Context, run *store.Run) error
	FinishRun(ctx context.Context, run *store.Run) error
	AddSteps(ctx context.Context, runID string, steps []store.StepResult) error
	AddOutcomes(ctx context.Context, runID string, outcomes []store.ModuleOutcome) error
	GetRun(ctx context.Context, id string) (*store.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error)
	GetSteps(ctx context.Context, runID string) ([]store.StepResult, error)
	GetOutcomes(ctx context.Context, runID string) ([]store.ModuleOutcome, error)
}

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{
		db: db,
	}, nil
}

func (s *defaultStore) conn(ctx context.Context) duckdb.Execer {
	return duckdb.Conn(ctx, s.db)
}

func (s *defaultStore) CreateRun(ctx context.Context, run *store.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO runs (id, client_id, client_name, month, input_path, status, started_at, slide_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ClientID, run.ClientName, run.Month, run.InputPath, run.Status, run.StartedAt, run.SlideCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *defaultStore) FinishRun(ctx context.Context, run *store.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	res, err := s.conn(ctx).ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, slide_count = ?, error = ?
		WHERE id = ?`,
		run.Status, *run.FinishedAt, run.SlideCount, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *defaultStore) AddSteps(ctx context.Context, runID string, steps []store.StepResult) error {
	if len(steps) == 0 {
		return nil
	}
	stmt, err := s.conn(ctx).PrepareContext(ctx, `
		INSERT INTO step_results (run_id, seq, name, success, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, step := range steps {
		if _, err := stmt.ExecContext(ctx, runID, i, step.Name, step.Success, step.ElapsedMs, step.Error); err != nil {
			return fmt.Errorf("insert step %s: %w", step.Name, err)
		}
	}
	return nil
}

func (s *defaultStore) AddOutcomes(ctx context.Context, runID string, outcomes []store.ModuleOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	stmt, err := s.conn(ctx).PrepareContext(ctx, `
		INSERT INTO module_outcomes (run_id, seq, module_id, status, problems, error, results, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, o := range outcomes {
		problems, err := json.Marshal(nonNil(o.Problems))
		if err != nil {
			return fmt.Errorf("marshal problems: %w", err)
		}
		_, err = stmt.ExecContext(ctx, runID, i, o.ModuleID, o.Status, string(problems), o.Error, o.Results, o.ElapsedMs)
		if err != nil {
			return fmt.Errorf("insert outcome %s: %w", o.ModuleID, err)
		}
	}
	return nil
}

const runColumns = `id, client_id, client_name, month, input_path, status, started_at, finished_at, slide_count, error`

func (s *defaultStore) GetRun(ctx context.Context, id string) (*store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return runs[0], nil
}

func (s *defaultStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if len(filter.ClientIDs) > 0 {
		placeholders := make([]string, len(filter.ClientIDs))
		for i, id := range filter.ClientIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += fmt.Sprintf(" WHERE client_id IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY started_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *defaultStore) GetSteps(ctx context.Context, runID string) ([]store.StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, success, elapsed_ms, error
		FROM step_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := make([]store.StepResult, 0)
	for rows.Next() {
		step := store.StepResult{RunID: runID}
		var errMsg sql.NullString
		if err := rows.Scan(&step.Seq, &step.Name, &step.Success, &step.ElapsedMs, &errMsg); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		step.Error = nullable(errMsg)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (s *defaultStore) GetOutcomes(ctx context.Context, runID string) ([]store.ModuleOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, module_id, status, CAST(problems AS VARCHAR), error, results, elapsed_ms
		FROM module_outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]store.ModuleOutcome, 0)
	for rows.Next() {
		o := store.ModuleOutcome{RunID: runID}
		var problems, errMsg sql.NullString
		if err := rows.Scan(&o.Seq, &o.ModuleID, &o.Status, &problems, &errMsg, &o.Results, &o.ElapsedMs); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if problems.Valid && problems.String != "" {
			if err := json.Unmarshal([]byte(problems.String), &o.Problems); err != nil {
				return nil, fmt.Errorf("unmarshal problems: %w", err)
			}
		}
		o.Error = nullable(errMsg)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func scanRuns(rows *sql.Rows) ([]*store.Run, error) {
	runs := make([]*store.Run, 0)
	for rows.Next() {
		var (
			run                 store.Run
			name, input, errMsg sql.NullString
			finished            sql.NullTime
		)
		err := rows.Scan(
			&run.ID, &run.ClientID, &name, &run.Month, &input, &run.Status,
			&run.StartedAt, &finished, &run.SlideCount, &errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ClientName = name.String
		run.InputPath = input.String
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		run.Error = nullable(errMsg)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
