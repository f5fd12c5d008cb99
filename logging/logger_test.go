package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*SimLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Output = buf
	cfg.Level = level
	return NewLogger(cfg), buf
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"debug": LogLevelDebug, "": LogLevelInfo, "WARN": LogLevelWarn, "error": LogLevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSimLogger_ContextAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.WithComponent("engine").WithRun("run-1").WithContext("family", "ring").Info("Round completed", "round", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "ring", entry["family"])
	assert.Equal(t, float64(2), entry["round"])
}

func TestSimLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	l.LogRound(1, 4, 0, 1, time.Millisecond)
	assert.Empty(t, buf.String())

	l.LogRound(1, 4, 1, 0.75, time.Millisecond)
	assert.Contains(t, buf.String(), "Round completed with faults")
}

func TestSimLogger_CloneIsolation(t *testing.T) {
	base, buf := newBufferLogger(LogLevelDebug)
	_ = base.WithContext("k", "v")
	base.Info("plain")
	assert.False(t, strings.Contains(buf.String(), `"k"`))
}

func TestSimLogger_DecisionAndBackendHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.LogDecision(3, 1, "A", time.Millisecond, nil)
	l.LogDecision(3, 2, "", time.Millisecond, errors.New("boom"))
	l.LogBackendCall("mock", 12, time.Millisecond, nil)

	out := buf.String()
	assert.Contains(t, out, "Decision completed")
	assert.Contains(t, out, "Decision failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Backend call completed")
}

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}
