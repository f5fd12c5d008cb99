package misinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloBova/llm-networks-misinformation/config"
	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/model"
	"github.com/PaoloBova/llm-networks-misinformation/sink"
)

func parse(t *testing.T, doc string) *config.Experiment {
	t.Helper()
	exp, err := config.Parse([]byte(doc), config.FormatYAML)
	require.NoError(t, err)
	return exp
}

func TestSimulate_PersistsToEverySink(t *testing.T) {
	dir := t.TempDir()
	exp := parse(t, fmt.Sprintf(`
name: Ring Majority
agents: 4
seed: 1
rounds: 5
engine:
  stop_on_convergence: true
priors: [A, A, B, A]
truth: A
policies:
  - kind: majority
output:
  dir: %s
  sqlite: %s
`, filepath.Join(dir, "runs"), filepath.Join(dir, "runs.db")))

	mem := sink.NewInMemory()
	run, err := Simulate(context.Background(), exp, func(o *Options) {
		o.RunID = "ring-1"
		o.Sinks = []core.RunSink{mem}
	})
	require.NoError(t, err)
	assert.Equal(t, core.RunCompleted, run.Status)
	assert.True(t, run.Summary.Converged)
	assert.Equal(t, "Ring Majority", run.Config["name"])
	require.NotNil(t, run.Summary.Rounds[len(run.Summary.Rounds)-1].CorrectProportion)

	fromFile, err := sink.NewFile(filepath.Join(dir, "runs")).Load("ring-1")
	require.NoError(t, err)
	assert.Equal(t, len(run.Rounds), len(fromFile.Rounds))

	db, err := sink.OpenSQLite(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer db.Close()
	fromDB, err := db.Get(context.Background(), "ring-1")
	require.NoError(t, err)
	assert.Equal(t, run.Summary.RoundsExecuted, fromDB.Summary.RoundsExecuted)

	_, err = mem.Get("ring-1")
	require.NoError(t, err)
}

func TestSimulate_DelegatesWithMockBackend(t *testing.T) {
	exp := parse(t, `
name: llm debate
agents: 3
rounds: 2
topology: {family: complete}
priors: [A, B, B]
params:
  question: Which technology is better?
policies:
  - kind: delegate
    params: {choices: [A, B]}
backend:
  provider: mock
  prompt_cost_per_1k: 1
  completion_cost_per_1k: 2
`)

	mock := model.NewMockModel("scripted")
	mock.SetReplyFunc(func(req model.Request) (string, error) {
		if !strings.Contains(req.Prompt, "Which technology is better?") {
			return "", fmt.Errorf("question missing from prompt")
		}
		return `Thinking... {"choice": "B", "justification": "most neighbours say B"}`, nil
	})

	sim, err := New(exp, func(o *Options) { o.Model = mock })
	require.NoError(t, err)
	assert.NotEmpty(t, sim.RunID())
	assert.Equal(t, 3, sim.Graph().Size())

	run, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, mock.Calls())
	assert.Equal(t, []string{"B", "B", "B"}, run.Rounds[2].Choices())
	assert.Equal(t, "most neighbours say B", run.Rounds[2].Entries[0].Decision.Justification)

	require.NotNil(t, run.Usage)
	assert.Equal(t, 6, run.Usage.Calls)
	assert.Equal(t, 6*8, run.Usage.CompletionTokens)
	assert.Positive(t, run.Usage.PromptTokens)
	assert.Equal(t, run.Usage.PromptTokens+run.Usage.CompletionTokens, run.Usage.TotalTokens)
	want := float64(run.Usage.PromptTokens)/1000 + float64(run.Usage.CompletionTokens)*2/1000
	assert.InDelta(t, want, run.Usage.Cost, 1e-9)
}

func TestSimulate_NoUsageWithoutDelegates(t *testing.T) {
	exp := parse(t, `
name: scripted
agents: 4
rounds: 1
priors: [A, B, A, B]
policies: [{kind: stubborn}]
`)
	run, err := Simulate(context.Background(), exp)
	require.NoError(t, err)
	assert.Nil(t, run.Usage)
	assert.Empty(t, run.BatchID)
}

const sweepExperiment = `
name: Voter Sweep
agents: 10
seed: 3
rounds: 4
topology: {family: ring, k: 4}
priors: [A, B, A, B, A, B, A, B, A, B]
policies:
  - kind: voter
    params: {p: 0.9}
sweep:
  repeats: 2
  seeds: [1, 2]
output:
  sqlite: %s
`

func TestSimulateBatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sweep.db")
	exp := parse(t, fmt.Sprintf(sweepExperiment, dbPath))

	batch, err := SimulateBatch(context.Background(), exp, func(o *Options) { o.BatchID = "sweep" })
	require.NoError(t, err)
	assert.Equal(t, "sweep", batch.ID)
	require.Len(t, batch.Cells, 4)
	require.Len(t, batch.Runs, 4)

	ids := map[string]bool{}
	seeds := map[uint64]bool{}
	series := map[string]bool{}
	for i, run := range batch.Runs {
		assert.Equal(t, fmt.Sprintf("sweep_%03d", i), run.ID)
		assert.Equal(t, "sweep", run.BatchID)
		assert.Equal(t, core.RunCompleted, run.Status)
		assert.Equal(t, batch.Cells[i].Seed, run.Provenance.Seed)
		ids[run.ID] = true
		seeds[run.Provenance.Seed] = true
		data, err := json.Marshal(run.Rounds)
		require.NoError(t, err)
		series[string(data)] = true
	}
	assert.Len(t, ids, 4)
	assert.Len(t, seeds, 4)
	assert.Greater(t, len(series), 1)

	again, err := SimulateBatch(context.Background(), exp, func(o *Options) { o.BatchID = "again" })
	require.NoError(t, err)
	for i := range batch.Runs {
		assert.Equal(t, batch.Runs[i].Rounds, again.Runs[i].Rounds)
	}

	db, err := sink.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()
	stored, err := db.ListBatch(context.Background(), "sweep")
	require.NoError(t, err)
	assert.Equal(t, []string{"sweep_000", "sweep_001", "sweep_002", "sweep_003"}, stored)
}

func TestSimulateBatch_StopsWhenCancelled(t *testing.T) {
	exp := parse(t, fmt.Sprintf(sweepExperiment, filepath.Join(t.TempDir(), "sweep.db")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := SimulateBatch(ctx, exp)
	require.ErrorIs(t, err, core.ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, batch.Runs)
	assert.Len(t, batch.Cells, 4)
	assert.NotEmpty(t, batch.ID)
}

func TestSimulate_SystemicFaultKeepsHistory(t *testing.T) {
	exp := parse(t, `
name: broken backend
agents: 4
rounds: 3
priors: [A, B, A, B]
policies:
  - kind: delegate
`)
	mock := model.NewMockModel("broken")
	mock.SetReplyFunc(func(model.Request) (string, error) { return "no json here", nil })

	run, err := Simulate(context.Background(), exp, func(o *Options) { o.Model = mock })
	require.ErrorIs(t, err, core.ErrSystemicFault)
	require.NotNil(t, run)
	assert.Equal(t, core.RunAborted, run.Status)
	assert.Len(t, run.Rounds, 2)
}

func TestNew_InvalidTopology(t *testing.T) {
	exp := parse(t, `
name: tiny
agents: 2
policies: [{kind: stubborn}]
`)
	_, err := New(exp)
	assert.ErrorIs(t, err, core.ErrInvalidTopology)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = NewLogger(config.LoggingConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}
