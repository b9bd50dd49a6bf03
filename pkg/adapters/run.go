package adapters

import (
	"time"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/models/api"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/models/store"
)

func MapDomainRunToStore(r domain.Run) *store.Run {
	return &store.Run{
		ID:         r.ID,
		ClientID:   r.ClientID,
		ClientName: r.ClientName,
		Month:      r.Month,
		InputPath:  r.InputPath,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		SlideCount: r.SlideCount,
		Error:      optional(r.Error),
	}
}

func MapStoreRunToDomain(r *store.Run, steps []store.StepResult, outcomes []store.ModuleOutcome) domain.Run {
	if r == nil {
		return domain.Run{}
	}
	run := domain.Run{
		ID:         r.ID,
		ClientID:   r.ClientID,
		ClientName: r.ClientName,
		Month:      r.Month,
		InputPath:  r.InputPath,
		Status:     domain.RunStatus(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		SlideCount: r.SlideCount,
		Error:      deref(r.Error),
	}
	for _, s := range steps {
		run.Steps = append(run.Steps, domain.StepRecord{
			Name:    s.Name,
			Success: s.Success,
			Elapsed: time.Duration(s.ElapsedMs) * time.Millisecond,
			Error:   deref(s.Error),
		})
	}
	for _, o := range outcomes {
		run.Modules = append(run.Modules, domain.ModuleOutcome{
			ModuleID: o.ModuleID,
			Status:   domain.OutcomeStatus(o.Status),
			Problems: o.Problems,
			Error:    deref(o.Error),
			Results:  o.Results,
			Elapsed:  time.Duration(o.ElapsedMs) * time.Millisecond,
		})
	}
	return run
}

func MapDomainStepsToStore(steps []domain.StepRecord) []store.StepResult {
	out := make([]store.StepResult, 0, len(steps))
	for _, s := range steps {
		out = append(out, store.StepResult{
			Name:      s.Name,
			Success:   s.Success,
			ElapsedMs: s.Elapsed.Milliseconds(),
			Error:     optional(s.Error),
		})
	}
	return out
}

func MapDomainOutcomesToStore(outcomes []domain.ModuleOutcome) []store.ModuleOutcome {
	out := make([]store.ModuleOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, store.ModuleOutcome{
			ModuleID:  o.ModuleID,
			Status:    string(o.Status),
			Problems:  o.Problems,
			Error:     optional(o.Error),
			Results:   o.Results,
			ElapsedMs: o.Elapsed.Milliseconds(),
		})
	}
	return out
}

func MapRunDomainToApi(r domain.Run) api.Run {
	res := api.Run{
		ID:         r.ID,
		ClientID:   r.ClientID,
		ClientName: r.ClientName,
		Month:      r.Month,
		InputPath:  r.InputPath,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		SlideCount: r.SlideCount,
		Error:      r.Error,
	}
	for _, s := range r.Steps {
		res.Steps = append(res.Steps, api.Step{
			Name:      s.Name,
			Success:   s.Success,
			ElapsedMs: s.Elapsed.Milliseconds(),
			Error:     s.Error,
		})
	}
	for _, o := range r.Modules {
		res.Modules = append(res.Modules, api.ModuleOutcome{
			ModuleID:  o.ModuleID,
			Status:    string(o.Status),
			Problems:  o.Problems,
			Error:     o.Error,
			Results:   o.Results,
			ElapsedMs: o.Elapsed.Milliseconds(),
		})
	}
	return res
}

func MapModuleToApi(m analytics.Module) api.Module {
	return api.Module{
		ID:       m.ID(),
		Name:     m.DisplayName(),
		Section:  m.Section(),
		Columns:  m.RequiredColumns(),
		Requires: m.RequiredResults(),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
