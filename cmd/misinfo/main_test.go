package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/sink"
)

const experiment = `
name: cli ring
agents: 6
seed: 3
rounds: 4
priors: [A, A, B, A, A, B]
truth: A
engine:
  stop_on_convergence: true
policies:
  - kind: majority
logging:
  level: error
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeExperiment(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "misinfo version "+version)

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version, info["version"])
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeExperiment(t, dir, "exp.yaml", experiment)
	outDir := filepath.Join(dir, "runs")

	out, err := execute(t, "run", path, "--out", outDir, "--run-id", "cli-1", "--rounds", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Run cli-1: completed")
	assert.Contains(t, out, "ROUND")

	run, err := sink.NewFile(outDir).Load("cli-1")
	require.NoError(t, err)
	assert.Equal(t, core.RunCompleted, run.Status)
	assert.LessOrEqual(t, run.Summary.RoundsExecuted, 3)
}

func TestRunCmd_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeExperiment(t, dir, "exp.yaml", experiment)

	out, err := execute(t, "run", path, "--json", "--run-id", "cli-json")
	require.NoError(t, err)
	var run core.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, "cli-json", run.ID)
	assert.NotEmpty(t, run.Rounds)
}

func TestRunCmd_Repeats(t *testing.T) {
	dir := t.TempDir()
	path := writeExperiment(t, dir, "exp.yaml", experiment)
	dbPath := filepath.Join(dir, "sweep.db")

	out, err := execute(t, "run", path, "--repeats", "3", "--run-id", "cli-batch", "--sqlite", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Batch cli-batch: 3 of 3 runs")
	assert.Contains(t, out, "cli-batch_002")

	db, err := sink.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()
	ids, err := db.ListBatch(context.Background(), "cli-batch")
	require.NoError(t, err)
	assert.Equal(t, []string{"cli-batch_000", "cli-batch_001", "cli-batch_002"}, ids)
}

func TestRunCmd_InvalidOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeExperiment(t, dir, "exp.yaml", experiment)

	_, err := execute(t, "run", path, "--rounds", "0")
	assert.Error(t, err)
}

func TestTopologyCmd(t *testing.T) {
	out, err := execute(t, "topology", "--family", "complete", "--size", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Edges:               10")
	assert.Contains(t, out, "Diameter:            1")

	out, err = execute(t, "topology", "--family", "ring", "--size", "6", "--json", "--edges")
	require.NoError(t, err)
	var doc struct {
		Metrics struct {
			Nodes int `json:"nodes"`
		} `json:"metrics"`
		Edges []core.Edge `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 6, doc.Metrics.Nodes)
	assert.NotEmpty(t, doc.Edges)

	_, err = execute(t, "topology", "--family", "torus")
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := writeExperiment(t, dir, "good.yaml", experiment)
	bad := writeExperiment(t, dir, "bad.yaml", "name: x\nagents: 2\npolicies: [{kind: stubborn}]\n")

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good)

	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL "+bad)
}
