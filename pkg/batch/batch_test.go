package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/services/review"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeReviewer fails clients whose id starts with "f", panics for "p" and
// tracks the highest number of reviews running at once.
type fakeReviewer struct {
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeReviewer) Review(ctx context.Context, job review.Job) (domain.Run, *pipeline.Context) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	run := domain.Run{ID: "run-" + job.Client.ID, ClientID: job.Client.ID, Status: domain.RunStatusSucceeded, SlideCount: 3}
	switch job.Client.ID[0] {
	case 'f':
		run.Status = domain.RunStatusFailed
		run.SlideCount = 0
		run.Error = "load_data: file is too small"
	case 'p':
		panic("corrupt workbook")
	}
	return run, nil
}

func jobs(ids ...string) []review.Job {
	out := make([]review.Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, review.Job{InputPath: id + ".xlsx", Client: domain.ClientInfo{ID: id, Month: "2025.12"}})
	}
	return out
}

func testCtx(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

func TestRun(t *testing.T) {
	reviewer := &fakeReviewer{}
	results := Run(testCtx(t), reviewer, jobs("a1", "f2", "p3", "a4", "a5", "a6"), 2)

	require.Len(t, results, 6)
	assert.Equal(t, "a1", results[0].ClientID)
	assert.Equal(t, "a1", results[0].Name)
	assert.True(t, results[0].Success)
	assert.Equal(t, "run-a1", results[0].RunID)
	assert.Equal(t, 3, results[0].SlideCount)
	assert.Positive(t, results[0].Elapsed)

	assert.False(t, results[1].Success)
	assert.Equal(t, "load_data: file is too small", results[1].Error)

	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Error, "corrupt workbook")

	assert.Equal(t, 4, Succeeded(results))
	assert.LessOrEqual(t, reviewer.peak.Load(), int32(2))
}

func TestRun_Sequential(t *testing.T) {
	reviewer := &fakeReviewer{}
	results := Run(testCtx(t), reviewer, jobs("a1", "a2", "a3"), 0)
	assert.Equal(t, 3, Succeeded(results))
	assert.Equal(t, int32(1), reviewer.peak.Load())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testCtx(t))
	cancel()

	results := Run(ctx, &fakeReviewer{}, jobs("a1", "a2"), 2)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.Equal(t, context.Canceled.Error(), r.Error)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"JB/2025.12/1453/1453-2025-12-Connex CU-ODD.xlsx",
		"JB/2025.12/1453/1453-2025-12-Connex CU-ODD-formatted.xlsx",
		"JB/2025.12/1453/~$1453-2025-12-Connex CU-ODD.xlsx",
		"JB/2025.12/1453/1453_2025.12_analysis.xlsx",
		"KL/2025.12/77/77-2025-12-First-Rate-ODD.xlsx",
		"KL/2025.11/77/77-2025-11-First-Rate-ODD.xlsx",
		"KL/notes.txt",
	}
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	found, err := Scan(root, "2025.12")
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, "1453", found[0].ClientID)
	assert.Equal(t, "Connex CU", found[0].ClientName)
	assert.Equal(t, "1453-2025-12-Connex CU-ODD-formatted.xlsx", filepath.Base(found[0].Path))

	assert.Equal(t, "77", found[1].ClientID)
	assert.Equal(t, "First-Rate", found[1].ClientName)
	assert.Equal(t, "2025.12", found[1].Month())

	all, err := Scan(root, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = Scan(filepath.Join(root, "missing"), "")
	assert.Error(t, err)
}
