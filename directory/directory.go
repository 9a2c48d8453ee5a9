// Package directory maps agent identities to reachable endpoint descriptors.
// The directory is read-mostly: lookups are lock-free snapshot reads and
// updates follow the same atomic-swap discipline as the intent registry.
package directory

import (
	"sync/atomic"

	"github.com/intentmesh/intentmesh/core"
)

// Snapshot is an immutable set of agent descriptors. Never mutate a snapshot
// after installing it.
type Snapshot struct {
	agents map[string]core.AgentDescriptor
}

// NewSnapshot builds a snapshot from descriptors. Descriptors without an
// agent id are dropped; later duplicates overwrite earlier ones.
func NewSnapshot(descriptors ...core.AgentDescriptor) *Snapshot {
	s := &Snapshot{agents: make(map[string]core.AgentDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.AgentID == "" {
			continue
		}
		s.agents[d.AgentID] = d
	}
	return s
}

// Resolve returns the descriptor for an agent id.
func (s *Snapshot) Resolve(agentID string) (core.AgentDescriptor, error) {
	if d, ok := s.agents[agentID]; ok {
		return d, nil
	}
	return core.AgentDescriptor{}, core.NewErrorf(core.CodeUnknownAgent, "agent %q is not in the directory", agentID)
}

// Len returns the number of registered agents.
func (s *Snapshot) Len() int { return len(s.agents) }

// Descriptors returns a copy of all descriptors in the snapshot.
func (s *Snapshot) Descriptors() []core.AgentDescriptor {
	out := make([]core.AgentDescriptor, 0, len(s.agents))
	for _, d := range s.agents {
		out = append(out, d)
	}
	return out
}

// Directory provides lock-free snapshot reads over atomically swapped agent
// descriptors.
type Directory struct {
	snapshot atomic.Pointer[Snapshot]
}

// New creates a directory seeded with the given descriptors.
func New(descriptors ...core.AgentDescriptor) *Directory {
	d := &Directory{}
	d.snapshot.Store(NewSnapshot(descriptors...))
	return d
}

// Snapshot returns the current descriptor set. Dispatch pins one snapshot
// per request.
func (d *Directory) Snapshot() *Snapshot { return d.snapshot.Load() }

// Resolve resolves an agent id against the current snapshot.
func (d *Directory) Resolve(agentID string) (core.AgentDescriptor, error) {
	return d.Snapshot().Resolve(agentID)
}

// Capable reports whether the descriptor's contract allows the content type.
func (d *Directory) Capable(desc core.AgentDescriptor, ct core.ContentType) bool {
	return desc.Accepts(ct)
}

// Reload atomically replaces the descriptor set.
func (d *Directory) Reload(s *Snapshot) {
	if s == nil {
		return
	}
	d.snapshot.Store(s)
}

// Healthy is the operator-facing "agents available" signal: true only when
// the directory is non-empty and the default agent resolves.
func (d *Directory) Healthy(defaultAgentID string) bool {
	snap := d.Snapshot()
	if snap.Len() == 0 {
		return false
	}
	_, err := snap.Resolve(defaultAgentID)
	return err == nil
}
