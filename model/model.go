package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrEmptyResponse is returned by Complete when a model closed its stream
// without producing a response.
var ErrEmptyResponse = errors.New("model returned no response")

// Request captures the normalized model input produced by a delegate policy.
type Request struct {
	AgentID      int            `json:"agent_id"`
	Instructions string         `json:"instructions"` // system prompt
	Prompt       string         `json:"prompt"`       // rendered decision context
	Schema       map[string]any `json:"schema,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final completion emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock"
}

// Model is the minimal interface required by delegate policies.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains a Generate call and returns its last response.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)
	var (
		last Response
		got  bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			last, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !got {
		return Response{}, ErrEmptyResponse
	}
	return last, nil
}

// ReplyFunc computes a MockModel reply.
type ReplyFunc func(req Request) (string, error)

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Replies are looked up by exact prompt, then by agent, then fall back to
// the reply func or a default text.
type MockModel struct {
	info Info

	mu       sync.RWMutex
	byPrompt map[string]string
	byAgent  map[int]string
	fallback ReplyFunc
	calls    atomic.Int64
}

var _ Model = (*MockModel)(nil)

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:     Info{Name: name, Provider: "mock"},
		byPrompt: make(map[string]string),
		byAgent:  make(map[int]string),
	}
}

// AddResponse registers a canned completion for an exact prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPrompt[prompt] = response
}

// AddAgentResponse registers a canned completion for every request of agent.
func (m *MockModel) AddAgentResponse(agent int, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byAgent[agent] = response
}

// SetReplyFunc installs the fallback used when no canned reply matches.
func (m *MockModel) SetReplyFunc(fn ReplyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// Calls returns how many requests the mock has served.
func (m *MockModel) Calls() int { return int(m.calls.Load()) }

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		m.calls.Add(1)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		text, err := m.reply(req)
		if err != nil {
			errCh <- err
			return
		}
		prompt := countWords(req.Instructions) + countWords(req.Prompt)
		completion := countWords(text)
		respCh <- Response{
			Text:         text,
			FinishReason: "stop",
			Usage: &TokenUsage{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			},
		}
	}()
	return respCh, errCh
}

func (m *MockModel) reply(req Request) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.byPrompt[req.Prompt]; ok {
		return r, nil
	}
	if r, ok := m.byAgent[req.AgentID]; ok {
		return r, nil
	}
	if m.fallback != nil {
		return m.fallback(req)
	}
	return fmt.Sprintf("Mock response to: %s", req.Prompt), nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// countWords stands in for a tokenizer in the mock's usage report.
func countWords(s string) int { return len(strings.Fields(s)) }
