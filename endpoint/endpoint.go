// Package endpoint defines the uniform request/response protocol spoken to
// agent endpoints and provides client implementations: an HTTP JSON client
// for external agent processes and in-process adapters backed by model
// provider SDKs. Agents are capability-described endpoints, never in-process
// polymorphic objects, so the orchestrator stays decoupled from agent
// internals.
package endpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/intentmesh/intentmesh/core"
)

// HistoryEntry is one prior message exposed to an agent. It deliberately
// omits internal identifiers and idempotency tokens.
type HistoryEntry struct {
	Sender      core.Sender      `json:"sender"`
	ContentType core.ContentType `json:"content_type"`
	Payload     map[string]any   `json:"payload"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Request is the wire request sent to an agent endpoint: the bounded
// conversation window (most-recent-first), the new message, caller context
// and the tool list from the agent's descriptor.
type Request struct {
	History []HistoryEntry  `json:"history,omitempty"`
	Text    string          `json:"text"`
	Context map[string]any  `json:"context,omitempty"`
	Tools   []core.ToolInfo `json:"tools,omitempty"`
}

// Response is the agent's native output before normalization: a declared
// native content type plus an arbitrary payload shape.
type Response struct {
	ContentType string          `json:"content_type"`
	Payload     json.RawMessage `json:"payload"`
}

// Client invokes agent endpoints. Implementations classify failures with
// the core taxonomy: transient transport problems as CodeTransport
// (retriable), agent rejections as CodeAgentSemantic and protocol
// violations as CodeNormalization (both fatal for the request).
type Client interface {
	Invoke(ctx context.Context, desc core.AgentDescriptor, req Request) (Response, error)
}

// HistoryFromMessages converts stored messages into protocol history
// entries, preserving the given order.
func HistoryFromMessages(msgs []core.Message) []HistoryEntry {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryEntry{
			Sender:      m.Sender,
			ContentType: m.ContentType,
			Payload:     m.Payload,
			Timestamp:   m.Timestamp,
		})
	}
	return out
}

// TextResponse builds a native text response. Shared by the in-process
// adapters.
func TextResponse(text string) Response {
	payload, _ := json.Marshal(map[string]string{"text": text})
	return Response{ContentType: string(core.ContentTypeText), Payload: payload}
}
