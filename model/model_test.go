package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_ReplyOrder(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("exact", `{"choice":"A"}`)
	m.AddAgentResponse(2, `{"choice":"B"}`)

	resp, err := Complete(context.Background(), m, Request{AgentID: 2, Prompt: "exact"})
	require.NoError(t, err)
	assert.Equal(t, `{"choice":"A"}`, resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = Complete(context.Background(), m, Request{AgentID: 2, Prompt: "other"})
	require.NoError(t, err)
	assert.Equal(t, `{"choice":"B"}`, resp.Text)

	resp, err = Complete(context.Background(), m, Request{AgentID: 0, Instructions: "be brief", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", resp.Text)
	assert.Equal(t, &TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, resp.Usage)
	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, Info{Name: "mock", Provider: "mock"}, m.Info())
}

func TestMockModel_ReplyFuncError(t *testing.T) {
	m := NewMockModel("mock")
	boom := errors.New("boom")
	m.SetReplyFunc(func(Request) (string, error) { return "", boom })

	_, err := Complete(context.Background(), m, Request{Prompt: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestComplete_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Complete(ctx, NewMockModel("mock"), Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

type silentModel struct{}

func (silentModel) Generate(context.Context, Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error)
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (silentModel) Info() Info { return Info{Name: "silent"} }

func TestComplete_EmptyStream(t *testing.T) {
	_, err := Complete(context.Background(), silentModel{}, Request{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
