package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/de-tools/account-review/pkg/archive"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `paths:
  output_dir: "/srv/ars/out"
  history_db: "/srv/ars/history.db"
pipeline:
  max_workers: 6
archive:
  kind: s3
  bucket: ars-archive
  prefix: deliverables
clients:
  "1453":
    name: "Connex CU"
    eligible_status_codes: ["O", "A"]
    eligible_product_codes: ["DDA"]
    nsf_od_fee: 25
    ic_rate: 0.0015
    reg_e_opt_in: ["Y"]
    assigned_csm: "JBerkowitz"
`

func TestLoad_ValidYAML(t *testing.T) {
	s, err := Load(writeConfig(t, "ars.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, "/srv/ars/out", s.Paths.OutputDir)
	assert.Equal(t, 6, s.Pipeline.MaxWorkers)
	assert.Equal(t, "info", s.Logging.Level)
	assert.Equal(t, "127.0.0.1:8080", s.Server.Addr)
	assert.Equal(t, archive.Settings{Kind: "s3", Bucket: "ars-archive", Prefix: "deliverables"}, s.Archive.Settings())

	c, err := s.Client("1453")
	require.NoError(t, err)
	info := c.ClientInfo("1453", "2025.12")
	assert.Equal(t, "Connex CU", info.Name)
	assert.Equal(t, "2025.12", info.Month)
	assert.Equal(t, []string{"O", "A"}, info.EligibleStatusCodes)
	assert.Equal(t, 25.0, info.NSFODFee)
	assert.Equal(t, "DC Indicator", info.DebitColumn())
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "output", s.Paths.OutputDir)
	assert.Equal(t, 4, s.Pipeline.MaxWorkers)
	assert.Empty(t, s.Clients)

	_, err = s.Client("1453")
	assert.Equal(t, fault.KindConfig, fault.KindOf(err))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ARS_PIPELINE_MAX_WORKERS", "2")
	t.Setenv("ARS_LOGGING_LEVEL", "debug")

	s, err := Load(writeConfig(t, "ars.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Pipeline.MaxWorkers)
	assert.Equal(t, "debug", s.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Equal(t, fault.KindConfig, fault.KindOf(err))
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "bad.yaml", "paths: [unterminated"))
		assert.Equal(t, fault.KindConfig, fault.KindOf(err))
	})

	t.Run("failed validation", func(t *testing.T) {
		content := `pipeline:
  max_workers: 0
logging:
  level: chatty
archive:
  kind: s3
clients:
  "9":
    ic_rate: 2
`
		_, err := Load(writeConfig(t, "ars.yaml", content))
		require.Error(t, err)
		assert.Equal(t, fault.KindConfig, fault.KindOf(err))
		msg := err.Error()
		assert.Contains(t, msg, "MaxWorkers")
		assert.Contains(t, msg, "Level")
		assert.Contains(t, msg, "Bucket")
		assert.Contains(t, msg, "ICRate")
	})
}

func TestLoad_JSON(t *testing.T) {
	content := `{"paths": {"output_dir": "out", "history_db": "h.db"}, "clients": {"77": {"name": "First Rate"}}}`
	s, err := Load(writeConfig(t, "ars.json", content))
	require.NoError(t, err)
	c, err := s.Client("77")
	require.NoError(t, err)
	assert.Equal(t, "First Rate", c.Name)
}
