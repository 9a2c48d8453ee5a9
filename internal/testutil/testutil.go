// Package testutil provides scripted fakes shared by the package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/endpoint"
)

// Call records one invocation observed by a ScriptedClient.
type Call struct {
	AgentID string
	Request endpoint.Request
}

// Step is one scripted endpoint outcome.
type Step struct {
	Response endpoint.Response
	Err      error
}

// ScriptedClient plays back a fixed sequence of endpoint outcomes and records
// every call it receives. Once the script is exhausted the last step repeats.
type ScriptedClient struct {
	mu    sync.Mutex
	steps []Step
	calls []Call
}

// NewScriptedClient builds a client from outcome steps.
func NewScriptedClient(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Invoke implements endpoint.Client.
func (c *ScriptedClient) Invoke(_ context.Context, desc core.AgentDescriptor, req endpoint.Request) (endpoint.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{AgentID: desc.AgentID, Request: req})

	if len(c.steps) == 0 {
		return endpoint.TextResponse("ok"), nil
	}
	idx := len(c.calls) - 1
	if idx >= len(c.steps) {
		idx = len(c.steps) - 1
	}
	step := c.steps[idx]
	return step.Response, step.Err
}

// Calls returns a copy of the recorded calls.
func (c *ScriptedClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many invocations the client has seen.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// TextStep builds a successful text reply step.
func TextStep(text string) Step {
	return Step{Response: endpoint.TextResponse(text)}
}

// ErrStep builds a failing step carrying a coded error.
func ErrStep(code core.Code, message string) Step {
	return Step{Err: core.NewError(code, message)}
}
