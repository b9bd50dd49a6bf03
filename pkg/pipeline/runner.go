package pipeline

import (
	"context"
	"fmt"
	"os/user"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// StepFunc is the body of a pipeline step.
type StepFunc func(ctx context.Context, pc *Context) error

// Step is one named stage of a run. A failed critical step stops the run;
// a failed non-critical step is recorded and the run moves on.
type Step struct {
	Name     string
	Execute  StepFunc
	Critical bool
}

// Critical returns a step whose failure halts the run.
func Critical(name string, fn StepFunc) Step {
	return Step{Name: name, Execute: fn, Critical: true}
}

// Optional returns a step whose failure is recorded but does not halt the run.
func Optional(name string, fn StepFunc) Step {
	return Step{Name: name, Execute: fn}
}

// StepResult records one step attempt.
type StepResult struct {
	Name    string
	Success bool
	Elapsed time.Duration
	Error   string
	Err     error
}

var stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ars",
	Name:      "step_duration_seconds",
	Help:      "Wall clock time of pipeline steps.",
}, []string{"step", "status"})

// Collectors returns the pipeline metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{stepDuration}
}

// Run executes steps in order against pc and returns the result of every
// step attempted. Step errors and panics never escape Run.
func Run(ctx context.Context, pc *Context, steps []Step) []StepResult {
	logger := zerolog.Ctx(ctx).With().Str("client", pc.Client.ID).Str("run_id", pc.RunID).Logger()
	actor := currentUser()

	logger.Info().
		Bool("audit", true).
		Str("user", actor).
		Str("action", "pipeline_start").
		Int("steps", len(steps)).
		Msg("pipeline start")

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		logger.Info().Str("step", step.Name).Msg("step starting")
		start := time.Now()
		err := execute(ctx, step, pc)
		res := StepResult{Name: step.Name, Success: err == nil, Elapsed: time.Since(start)}

		if err == nil {
			results = append(results, res)
			stepDuration.WithLabelValues(step.Name, "ok").Observe(res.Elapsed.Seconds())
			logger.Info().Str("step", step.Name).Dur("elapsed", res.Elapsed).Msg("step completed")
			continue
		}

		res.Err = err
		res.Error = err.Error()
		results = append(results, res)
		stepDuration.WithLabelValues(step.Name, "failed").Observe(res.Elapsed.Seconds())

		if step.Critical {
			logger.Error().Err(err).Str("step", step.Name).Dur("elapsed", res.Elapsed).Msg("critical step failed")
			break
		}
		logger.Warn().Err(err).Str("step", step.Name).Dur("elapsed", res.Elapsed).Msg("step failed, continuing")
	}

	var total time.Duration
	ok := 0
	for _, r := range results {
		total += r.Elapsed
		if r.Success {
			ok++
		}
	}
	status := "OK"
	if ok != len(results) {
		status = "FAILED"
	}
	logger.Info().
		Bool("audit", true).
		Str("user", actor).
		Str("action", "pipeline_done").
		Str("status", status).
		Int("succeeded", ok).
		Int("attempted", len(results)).
		Dur("elapsed", total).
		Msg("pipeline done")

	return results
}

// Succeeded reports whether every attempted step succeeded.
func Succeeded(results []StepResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

func execute(ctx context.Context, step Step, pc *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
	}()
	if step.Execute == nil {
		return fmt.Errorf("step %s has no function", step.Name)
	}
	return step.Execute(ctx, pc)
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}
