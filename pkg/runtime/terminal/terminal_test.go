package terminal

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	dir    string
	config string
}

func newHarness(t *testing.T) harness {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`paths:
  output_dir: %q
  history_db: %q
clients:
  "1453":
    name: "Connex CU"
    eligible_status_codes: ["O"]
    eligible_product_codes: ["DDA"]
`, filepath.Join(dir, "out"), filepath.Join(dir, "history.db"))
	path := filepath.Join(dir, "ars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return harness{dir: dir, config: path}
}

func (h harness) extract(t *testing.T) string {
	rows := []string{"Stat Code,Product Code,Date Opened,Date Closed,Avg Bal,Business?"}
	for i := 0; i < 10; i++ {
		if i%3 == 0 {
			rows = append(rows, "C,DDA,2022-02-01,2025-09-15,800,No")
			continue
		}
		rows = append(rows, "O,DDA,2022-02-01,,1250,No")
	}
	path := filepath.Join(h.dir, "extract.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

func (h harness) exec(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cli := NewCLI(Options{
		Output:    &out,
		LogOutput: zerolog.NewTestWriter(t),
		Now:       func() time.Time { return time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC) },
	})
	cli.SetArgs(append([]string{"--config", h.config}, args...))
	err := cli.Execute(context.Background())
	return out.String(), err
}

func TestModulesCommand(t *testing.T) {
	out, err := newHarness(t).exec(t, "modules")
	require.NoError(t, err)
	for _, id := range analytics.DefaultOrder {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, fmt.Sprintf("%d module(s) registered", len(analytics.DefaultOrder)))
}

func TestRunAndRunsCommands(t *testing.T) {
	h := newHarness(t)
	out, err := h.exec(t, "run", h.extract(t), "--client", "1453", "--month", "2025.12", "--skip-deck")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Client: 1453 (Connex CU)")
	assert.Contains(t, out, "Status: SUCCEEDED")
	assert.Contains(t, out, "load_data")
	assert.Contains(t, out, "1453_2025.12_analysis.xlsx")

	out, err = h.exec(t, "runs", "--client", "1453")
	require.NoError(t, err)
	assert.Contains(t, out, "1 run(s)")
	assert.Contains(t, out, "succeeded")
}

func TestRunCommand_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "run", filepath.Join(h.dir, "missing.csv"), "--client", "1453")
	require.Error(t, err)
	title, _ := fault.Guidance(err)
	assert.Equal(t, "File Not Found", title)

	_, err = h.exec(t, "run", h.extract(t), "--client", "1453", "--month", "2025.13")
	assert.Equal(t, fault.KindConfig, fault.KindOf(err))

	_, err = h.exec(t, "run", h.extract(t))
	assert.Equal(t, fault.KindConfig, fault.KindOf(err))
}

func TestBatchCommand_NothingFound(t *testing.T) {
	h := newHarness(t)
	out, err := h.exec(t, "batch", h.dir, "--month", "2025.12")
	require.NoError(t, err)
	assert.Contains(t, out, "No extracts found for 2025.12")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", false)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, zerolog.InfoLevel, NewLogger(&buf, "loud", false).GetLevel())
}
