// Package batch reviews several clients concurrently, one pipeline context
// per client.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/loader"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/services/review"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Reviewer runs a single client.
type Reviewer interface {
	Review(ctx context.Context, job review.Job) (domain.Run, *pipeline.Context)
}

// BatchResult is the outcome of one client in a batch.
type BatchResult struct {
	ClientID   string
	Name       string
	RunID      string
	Success    bool
	Elapsed    time.Duration
	SlideCount int
	Error      string
}

// Run reviews every job with at most workers running at once and returns
// one result per job, in job order. A failing or panicking client never
// affects the others. Jobs not started before ctx is cancelled are
// reported as failed.
func Run(ctx context.Context, reviewer Reviewer, jobs []review.Job, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	logger := zerolog.Ctx(ctx)
	actor := currentUser()
	logger.Info().
		Bool("audit", true).
		Str("user", actor).
		Str("action", "batch_start").
		Int("clients", len(jobs)).
		Int("workers", workers).
		Msg("batch start")

	results := make([]BatchResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = runOne(ctx, reviewer, job, i+1, len(jobs))
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	var total time.Duration
	for _, r := range results {
		total += r.Elapsed
		if r.Success {
			ok++
			continue
		}
		logger.Warn().Str("client", r.ClientID).Str("error", r.Error).Msg("client failed")
	}
	logger.Info().
		Bool("audit", true).
		Str("user", actor).
		Str("action", "batch_done").
		Int("succeeded", ok).
		Int("total", len(results)).
		Dur("elapsed", total).
		Msg("batch done")
	return results
}

func runOne(ctx context.Context, reviewer Reviewer, job review.Job, n, total int) (res BatchResult) {
	start := time.Now()
	res = BatchResult{ClientID: job.Client.ID, Name: job.Client.Name}
	if res.Name == "" {
		res.Name = job.Client.ID
	}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.Elapsed = time.Since(start)
	}()

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	zerolog.Ctx(ctx).Info().
		Str("client", job.Client.ID).
		Str("file", filepath.Base(job.InputPath)).
		Msgf("[%d/%d] processing", n, total)

	run, _ := reviewer.Review(ctx, job)
	res.RunID = run.ID
	res.Success = run.Status == domain.RunStatusSucceeded
	res.SlideCount = run.SlideCount
	res.Error = run.Error
	return res
}

// Succeeded counts the successful results.
func Succeeded(results []BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

// Scanned is an extract found by Scan.
type Scanned struct {
	loader.ODDFile
	Path string
}

// Scan walks dir for extracts named after the ODD convention and keeps those
// of month, one per client. A "formatted" extract wins over a raw one; among
// equals the first in path order wins. Lock files and generated deliverables
// are ignored.
func Scan(dir, month string) ([]Scanned, error) {
	best := map[string]Scanned{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		lower := strings.ToLower(name)
		if strings.HasPrefix(name, "~$") || strings.Contains(lower, "_analysis") || strings.Contains(lower, "_deck") {
			return nil
		}
		odd, ok := loader.ParseODDName(unformatted(name))
		if !ok || (month != "" && odd.Month() != month) {
			return nil
		}
		cur, seen := best[odd.ClientID]
		if !seen || (formatted(path) && !formatted(cur.Path)) {
			best[odd.ClientID] = Scanned{ODDFile: odd, Path: path}
		}
		return nil
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindRetrieve, err, "scan %s", dir)
	}

	out := make([]Scanned, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

// unformatted maps "X-ODD-formatted.xlsx" to "X-ODD.xlsx".
func unformatted(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if strings.HasSuffix(strings.ToLower(stem), "-formatted") {
		stem = stem[:len(stem)-len("-formatted")]
	}
	return stem + ext
}

func formatted(path string) bool {
	return strings.Contains(strings.ToLower(filepath.Base(path)), "formatted")
}

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "unknown"
	}
	return u.Username
}
