package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const RunsSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id VARCHAR PRIMARY KEY,
		client_id VARCHAR NOT NULL,
		client_name VARCHAR,
		month VARCHAR NOT NULL,
		input_path VARCHAR,
		status VARCHAR NOT NULL,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP NULL,
		slide_count INTEGER NOT NULL DEFAULT 0,
		error VARCHAR NULL
	);
`

const StepResultsSchema = `
	CREATE TABLE IF NOT EXISTS step_results (
		run_id VARCHAR NOT NULL,
		seq INTEGER NOT NULL,
		name VARCHAR NOT NULL,
		success BOOLEAN NOT NULL,
		elapsed_ms BIGINT NOT NULL,
		error VARCHAR NULL,
		PRIMARY KEY (run_id, seq)
	);
`

const ModuleOutcomesSchema = `
	CREATE TABLE IF NOT EXISTS module_outcomes (
		run_id VARCHAR NOT NULL,
		seq INTEGER NOT NULL,
		module_id VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		problems JSON,
		error VARCHAR NULL,
		results INTEGER NOT NULL DEFAULT 0,
		elapsed_ms BIGINT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
`

var bootQueries = []string{
	RunsSchema,
	StepResultsSchema,
	ModuleOutcomesSchema,
}

type Settings struct {
	DbPath string
}

// DefaultSettings keeps run history in the working directory.
func DefaultSettings() Settings {
	return Settings{DbPath: "ars_history.db"}
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		bootQueries := append([]string{}, bootQueries...)

		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
