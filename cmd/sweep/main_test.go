package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Pareto/internal/scenario"
)

const caseTemplate = `param use_epsilon := 0;
param epsilon_value := 1e12;
param elasticity := -0.1;
param fix_demand := 0;
`

func writeConfig(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "case.dat")
	require.NoError(t, os.WriteFile(tmpl, []byte(caseTemplate), 0o644))

	body := `
server:
  metrics_port: 0
hermes:
  url: ""
store:
  driver: file
  dir: ` + filepath.Join(dir, "frontiers") + `
oracle:
  driver: process
  command: sh
  args: ["-c", "` + script + `", "oracle"]
  template: ` + tmpl + `
sweep:
  points: 3
  run_root: ` + filepath.Join(dir, "runs") + `
  scenarios:
    - tag: elast_5pct
      elasticity: -0.05
logging:
  level: error
`
	path := filepath.Join(dir, "pareto.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunRejectsBadInvocation(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-no-such-flag"}))
	assert.Equal(t, 1, run([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}))
	assert.Equal(t, 1, run([]string{"-config", writeConfig(t, "exit 0"), "-scenarios", "elast_99pct"}))
}

func TestRunReturnsFailureCode(t *testing.T) {
	// A malformed record aborts the sweep.
	path := writeConfig(t, `echo '{' > $1/last_run.json`)
	assert.Equal(t, 1, run([]string{"-config", path}))

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(path), "frontiers"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSelectScenarios(t *testing.T) {
	all := scenario.DefaultScenarios()

	got, err := selectScenarios(all, "")
	require.NoError(t, err)
	assert.Equal(t, all, got)

	got, err = selectScenarios(all, "demand_fixed, elast_5pct")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "demand_fixed", got[0].Tag)
	assert.Equal(t, "elast_5pct", got[1].Tag)

	_, err = selectScenarios(all, "nope")
	assert.Error(t, err)
}
