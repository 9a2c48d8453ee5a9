package endpoint

import (
	"context"

	"github.com/intentmesh/intentmesh/core"
)

// ProviderMetadataKey selects which registered client serves a descriptor.
const ProviderMetadataKey = "provider"

// Mux routes invocations to different clients based on the descriptor's
// provider metadata. Descriptors without a provider entry (or with an
// unregistered one) go to the fallback, normally the HTTP client. This lets
// one directory mix external agent processes with in-process model-backed
// agents.
type Mux struct {
	clients  map[string]Client
	fallback Client
}

// NewMux creates a mux with the given fallback client.
func NewMux(fallback Client) *Mux {
	if fallback == nil {
		fallback = NewHTTPClient()
	}
	return &Mux{clients: make(map[string]Client), fallback: fallback}
}

// Register binds a provider name to a client. Call before serving traffic;
// the mux is not safe for concurrent mutation.
func (m *Mux) Register(provider string, client Client) {
	if provider == "" || client == nil {
		return
	}
	m.clients[provider] = client
}

// Invoke implements Client.
func (m *Mux) Invoke(ctx context.Context, desc core.AgentDescriptor, req Request) (Response, error) {
	if provider, ok := desc.Metadata[ProviderMetadataKey]; ok {
		if client, ok := m.clients[provider]; ok {
			return client.Invoke(ctx, desc, req)
		}
	}
	return m.fallback.Invoke(ctx, desc, req)
}
