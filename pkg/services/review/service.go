// Package review runs the pipeline for one client and records the run.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/pipeline/steps"
	"github.com/de-tools/account-review/pkg/services/history"
	"github.com/rs/zerolog"
)

// Job is one client review: an extract and the client it belongs to.
// Modules, when set, replaces the configured module selection.
type Job struct {
	InputPath string
	Client    domain.ClientInfo
	Modules   []string
}

type Settings struct {
	OutputDir string
	Options   pipeline.Options
}

// Service reviews one client at a time. Review never returns an error: the
// outcome of every step is in the returned run.
type Service interface {
	Review(ctx context.Context, job Job) (domain.Run, *pipeline.Context)
}

type service struct {
	settings Settings
	deps     steps.Dependencies
	history  history.Service
	now      func() time.Time
}

// NewService builds a review service. A nil history service disables run
// recording.
func NewService(settings Settings, deps steps.Dependencies, hist history.Service) (Service, error) {
	if settings.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if deps.Loader == nil || deps.Registry == nil {
		return nil, fmt.Errorf("loader and module registry are required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{settings: settings, deps: deps, history: hist, now: now}, nil
}

func (s *service) Review(ctx context.Context, job Job) (domain.Run, *pipeline.Context) {
	pc := pipeline.NewContext(job.Client, s.settings.OutputDir)
	pc.InputPath = job.InputPath
	pc.Options = s.settings.Options
	if len(job.Modules) > 0 {
		pc.Options.Modules = job.Modules
	}

	logger := zerolog.Ctx(ctx).With().Str("client", job.Client.ID).Str("run_id", pc.RunID).Logger()
	ctx = logger.WithContext(ctx)

	run := domain.Run{
		ID:         pc.RunID,
		ClientID:   job.Client.ID,
		ClientName: job.Client.Name,
		Month:      job.Client.Month,
		InputPath:  job.InputPath,
		Status:     domain.RunStatusRunning,
		StartedAt:  s.now().UTC(),
	}
	if s.history != nil {
		if err := s.history.Start(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("run history unavailable")
		}
	}

	results := pipeline.Run(ctx, pc, steps.Default(s.deps))

	finished := s.now().UTC()
	run.FinishedAt = &finished
	run.InputPath = pc.InputPath
	run.SlideCount = SlideCount(pc.Slides)
	run.Modules = pc.Outcomes
	run.Status = domain.RunStatusSucceeded
	for _, r := range results {
		run.Steps = append(run.Steps, domain.StepRecord{
			Name:    r.Name,
			Success: r.Success,
			Elapsed: r.Elapsed,
			Error:   r.Error,
		})
		if !r.Success && run.Error == "" {
			run.Status = domain.RunStatusFailed
			run.Error = fmt.Sprintf("%s: %s", r.Name, r.Error)
			run.Cause = r.Err
		}
	}

	if s.history != nil {
		if err := s.history.Finish(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("failed to record run")
		}
	}
	return run, pc
}

// SlideCount counts the successful artifacts.
func SlideCount(slides []domain.AnalysisResult) int {
	n := 0
	for _, s := range slides {
		if s.Success {
			n++
		}
	}
	return n
}
