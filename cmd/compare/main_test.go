package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocompare/domain/analysis"
	"gocompare/domain/variable"
)

func TestReadContractYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
variables:
  - name: arm
    role: group
    data_type: categorical
  - name: hb_t0
    role: outcome
    data_type: numeric
    timepoint: t0
    subgroup: hb
timepoint_order: [t0, t1]
`), 0o644))
	jsonPath := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"variables": [
		{"name": "arm", "role": "group", "data_type": "categorical"},
		{"name": "hb_t0", "role": "outcome", "data_type": "numeric", "timepoint": "t0", "subgroup": "hb"}
	], "timepoint_order": ["t0", "t1"]}`), 0o644))

	fromYAML, err := readContract(yamlPath)
	require.NoError(t, err)
	fromJSON, err := readContract(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromJSON)
	assert.Equal(t, variable.RoleGroup, fromYAML.Variables[0].Role)
	assert.Equal(t, "hb", fromYAML.Variables[1].Subgroup)
	assert.Equal(t, []string{"t0", "t1"}, fromYAML.TimepointOrder)
}

func TestGenerateThenRun(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "trial.csv")
	contract := filepath.Join(dir, "trial.contract.yaml")
	out := filepath.Join(dir, "result.json")

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("analysis:\n  random_slope_min_subjects: 1000\n"), 0o644))

	gen := newGenerateCmd()
	gen.SetArgs([]string{data})
	gen.SetOut(io.Discard)
	require.NoError(t, gen.ExecuteContext(context.Background()))
	assert.FileExists(t, contract)

	run := newRunCmd(&options{configPath: cfgPath, logLevel: "ERROR"})
	run.SetArgs([]string{"-c", contract, "-d", data, "-m", "longitudinal", "-o", out, "-q"})
	require.NoError(t, run.ExecuteContext(context.Background()))

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	var result analysis.BatchResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, analysis.ModeLongitudinal, result.Mode)
	assert.Equal(t, []string{"hb_t0", "hb_t1", "hb_t2", "hb_t3"}, result.Records[0].Task.Targets)
	assert.Equal(t, analysis.StatusSucceeded, result.Records[0].Status)
}

func TestValidateReportsMissingColumns(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "d.csv")
	contract := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(data, []byte("arm,score\nA,1\nB,2\n"), 0o644))
	require.NoError(t, os.WriteFile(contract, []byte(`
variables:
  - {name: arm, role: group, data_type: categorical}
  - {name: score, role: outcome, data_type: numeric}
  - {name: weight, role: outcome, data_type: numeric}
`), 0o644))

	cmd := newValidateCmd(&options{logLevel: "ERROR"})
	cmd.SetArgs([]string{"-c", contract, "-d", data})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
}

func TestPrintPlanListsTasks(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "d.csv")
	contract := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(data, []byte("arm,score\nA,1\nA,2\nB,3\nB,4\n"), 0o644))
	require.NoError(t, os.WriteFile(contract, []byte(`
variables:
  - {name: arm, role: group, data_type: categorical}
  - {name: score, role: outcome, data_type: numeric}
`), 0o644))

	var buf bytes.Buffer
	cmd := newPlanCmd(&options{logLevel: "ERROR"})
	cmd.SetArgs([]string{"-c", contract, "-d", data})
	cmd.SetOut(&buf)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), "full strategy")
	assert.Contains(t, buf.String(), "score by arm")
}
