// Package registry maintains the mapping from classified intent keys to the
// agent identities that own them. The mapping is static at request time:
// readers work against an immutable snapshot and reloads swap the whole
// table atomically, so a partially-updated view is never observable and
// in-flight dispatches keep the snapshot they started with.
package registry

import (
	"sync/atomic"

	"github.com/intentmesh/intentmesh/core"
)

// Entry is one intent-to-agent binding in registration order.
type Entry struct {
	Intent  string
	AgentID string
}

// Table is an immutable intent mapping snapshot. Build one with NewTable (or
// ParseConfig) and install it via Registry.Reload; never mutate a table that
// has been installed.
type Table struct {
	version      string
	defaultAgent string
	entries      map[string]string
	order        []string
}

// NewTable builds a table from ordered entries. Later duplicates of an
// intent key overwrite earlier ones without changing registration order.
func NewTable(version, defaultAgent string, entries ...Entry) *Table {
	t := &Table{
		version:      version,
		defaultAgent: defaultAgent,
		entries:      make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		if e.Intent == "" {
			continue
		}
		if _, seen := t.entries[e.Intent]; !seen {
			t.order = append(t.order, e.Intent)
		}
		t.entries[e.Intent] = e.AgentID
	}
	return t
}

// Lookup resolves an intent key to its owning agent id.
func (t *Table) Lookup(intentKey string) (string, error) {
	if agentID, ok := t.entries[intentKey]; ok {
		return agentID, nil
	}
	return "", core.NewErrorf(core.CodeUnknownIntent, "intent %q is not registered", intentKey)
}

// DefaultAgentID returns the configured fallback agent, or "" when none is
// configured.
func (t *Table) DefaultAgentID() string { return t.defaultAgent }

// Intents returns the intent keys in registration order. The classifier uses
// this order for deterministic tie-breaking.
func (t *Table) Intents() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Version returns the configuration version the table was loaded from.
func (t *Table) Version() string { return t.version }

// Len returns the number of registered intents.
func (t *Table) Len() int { return len(t.entries) }

// Registry provides lock-free snapshot reads over an atomically swapped
// intent table. Reloads block only other reloads, never readers.
type Registry struct {
	table atomic.Pointer[Table]
}

// New creates a registry seeded with the given table. A nil table installs
// an empty one.
func New(table *Table) *Registry {
	r := &Registry{}
	if table == nil {
		table = NewTable("", "")
	}
	r.table.Store(table)
	return r
}

// Snapshot returns the current table. Dispatch pins one snapshot per request
// so routing decisions stay consistent across a reload.
func (r *Registry) Snapshot() *Table { return r.table.Load() }

// Lookup resolves an intent against the current snapshot.
func (r *Registry) Lookup(intentKey string) (string, error) {
	return r.Snapshot().Lookup(intentKey)
}

// DefaultAgentID returns the fallback agent of the current snapshot.
func (r *Registry) DefaultAgentID() string { return r.Snapshot().DefaultAgentID() }

// Reload atomically replaces the whole mapping. Readers either see the old
// table or the new one, never a mix.
func (r *Registry) Reload(table *Table) {
	if table == nil {
		return
	}
	r.table.Store(table)
}
