package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/de-tools/account-review/pkg/adapters"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/models/store"
	"github.com/de-tools/account-review/pkg/store/duckdb"
	"github.com/de-tools/account-review/pkg/store/duckdb/runs"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("run not found")

// Service records pipeline runs and reads them back.
type Service interface {
	Start(ctx context.Context, run domain.Run) error
	Finish(ctx context.Context, run domain.Run) error
	List(ctx context.Context, clientIDs []string, limit int) ([]domain.Run, error)
	Get(ctx context.Context, id string) (domain.Run, error)
}

type service struct {
	db    *sql.DB
	store runs.Store
}

func NewService(db *sql.DB, store runs.Store) (Service, error) {
	if db == nil || store == nil {
		return nil, fmt.Errorf("database connection and run store are required")
	}
	return &service{db: db, store: store}, nil
}

func (s *service) Start(ctx context.Context, run domain.Run) error {
	if err := s.store.CreateRun(ctx, adapters.MapDomainRunToStore(run)); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("run_id", run.ID).Msg("run recorded")
	return nil
}

// Finish stores the final status with the step results and module outcomes
// in one transaction.
func (s *service) Finish(ctx context.Context, run domain.Run) error {
	err := duckdb.InTransaction(ctx, s.db, func(ctx context.Context) error {
		if err := s.store.FinishRun(ctx, adapters.MapDomainRunToStore(run)); err != nil {
			return err
		}
		if err := s.store.AddSteps(ctx, run.ID, adapters.MapDomainStepsToStore(run.Steps)); err != nil {
			return err
		}
		return s.store.AddOutcomes(ctx, run.ID, adapters.MapDomainOutcomesToStore(run.Modules))
	})
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

func (s *service) List(ctx context.Context, clientIDs []string, limit int) ([]domain.Run, error) {
	rows, err := s.store.ListRuns(ctx, store.RunFilter{ClientIDs: clientIDs, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, adapters.MapStoreRunToDomain(r, nil, nil))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id string) (domain.Run, error) {
	r, err := s.store.GetRun(ctx, id)
	if errors.Is(err, runs.ErrNotFound) {
		return domain.Run{}, ErrNotFound
	}
	if err != nil {
		return domain.Run{}, err
	}
	steps, err := s.store.GetSteps(ctx, id)
	if err != nil {
		return domain.Run{}, err
	}
	outcomes, err := s.store.GetOutcomes(ctx, id)
	if err != nil {
		return domain.Run{}, err
	}
	return adapters.MapStoreRunToDomain(r, steps, outcomes), nil
}
