package core

import "time"

// ToolInfo declares one capability an agent exposes. The exact field set is
// deliberately minimal; deployment-specific extensions belong in the
// descriptor Metadata map.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AgentDescriptor describes a reachable agent endpoint and its capability
// contract. Descriptors are owned by the agent directory and read-only to
// the dispatcher.
type AgentDescriptor struct {
	AgentID              string            `json:"agent_id"`
	Endpoint             string            `json:"endpoint"`
	AcceptedContentTypes []ContentType     `json:"accepted_content_types"`
	Tools                []ToolInfo        `json:"tools,omitempty"`
	Timeout              time.Duration     `json:"timeout"`
	MaxRetries           int               `json:"max_retries"`
	Metadata             map[string]string `json:"metadata,omitempty"`
}

// DefaultAgentTimeout bounds endpoint invocations when a descriptor does not
// set its own budget.
const DefaultAgentTimeout = 30 * time.Second

// Accepts reports whether the descriptor's content-type contract allows ct.
// An empty accepted set means the agent only commits to plain text.
func (d AgentDescriptor) Accepts(ct ContentType) bool {
	if len(d.AcceptedContentTypes) == 0 {
		return ct == ContentTypeText
	}
	for _, accepted := range d.AcceptedContentTypes {
		if accepted == ct {
			return true
		}
	}
	return false
}

// EffectiveTimeout returns the descriptor timeout or the package default.
func (d AgentDescriptor) EffectiveTimeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultAgentTimeout
}
