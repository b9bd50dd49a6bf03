package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var moduleOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ars",
	Name:      "module_outcomes_total",
	Help:      "Analysis module outcomes by module and status.",
}, []string{"module", "status"})

// Collectors returns the dispatcher metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{moduleOutcomes}
}

// Summary counts the outcomes of one dispatch.
type Summary struct {
	Outcomes  []domain.ModuleOutcome
	Succeeded int
	Skipped   int
	Failed    int
}

func (s *Summary) add(o domain.ModuleOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case domain.OutcomeSucceeded:
		s.Succeeded++
	case domain.OutcomeSkipped:
		s.Skipped++
	case domain.OutcomeFailed:
		s.Failed++
	}
}

// Dispatcher runs analysis modules against a pipeline context, one at a
// time, isolating each module's failure from the rest.
type Dispatcher struct {
	registry Registry
}

func NewDispatcher(registry Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch runs every registered module in canonical order.
func (d *Dispatcher) Dispatch(ctx context.Context, pc *pipeline.Context) Summary {
	modules := d.registry.Ordered(ctx)
	logger := zerolog.Ctx(ctx)
	if len(modules) == 0 {
		logger.Warn().Msg("no analytics modules registered, skipping analysis")
		return Summary{}
	}
	logger.Info().Int("modules", len(modules)).Msg("running analytics modules")
	return d.dispatch(ctx, pc, modules)
}

// DispatchSelected runs only the given modules in the given order. An
// unknown id fails before any module runs.
func (d *Dispatcher) DispatchSelected(ctx context.Context, pc *pipeline.Context, ids []string) (Summary, error) {
	modules := make([]Module, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		m, err := d.registry.Get(id)
		if err != nil {
			return Summary{}, err
		}
		modules = append(modules, m)
	}
	zerolog.Ctx(ctx).Info().Strs("modules", ids).Msg("running selected analytics modules")
	return d.dispatch(ctx, pc, modules), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, pc *pipeline.Context, modules []Module) Summary {
	logger := zerolog.Ctx(ctx)
	var summary Summary

	for _, m := range modules {
		o := d.runOne(ctx, pc, m)
		summary.add(o)
		pc.Outcomes = append(pc.Outcomes, o)
		moduleOutcomes.WithLabelValues(o.ModuleID, string(o.Status)).Inc()
	}

	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("analysis complete")
	return summary
}

func (d *Dispatcher) runOne(ctx context.Context, pc *pipeline.Context, m Module) domain.ModuleOutcome {
	id := m.ID()
	logger := zerolog.Ctx(ctx).With().Str("module", id).Logger()
	o := domain.ModuleOutcome{ModuleID: id}

	if problems := m.Validate(pc); len(problems) > 0 {
		o.Status = domain.OutcomeSkipped
		o.Problems = problems
		logger.Warn().Str("problems", strings.Join(problems, "; ")).Msg("module skipped")
		return o
	}

	start := time.Now()
	results, err := invoke(logger.WithContext(ctx), pc, m)
	o.Elapsed = time.Since(start)
	if err != nil {
		o.Status = domain.OutcomeFailed
		o.Error = err.Error()
		pc.Slides = append(pc.Slides, domain.FailedResult(id, m.DisplayName(), err))
		logger.Error().Err(err).Dur("elapsed", o.Elapsed).Msg("module failed")
		return o
	}

	pc.SetResult(id, results)
	pc.Slides = append(pc.Slides, results...)
	o.Status = domain.OutcomeSucceeded
	o.Results = len(results)
	logger.Info().Int("results", len(results)).Dur("elapsed", o.Elapsed).Msg("module produced results")
	return o
}

func invoke(ctx context.Context, pc *pipeline.Context, m Module) (results []domain.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module %s panicked: %v", m.ID(), r)
		}
	}()
	return m.Run(ctx, pc)
}
