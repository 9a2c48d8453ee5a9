// Package conversation provides implementations of the core
// ConversationStore contract: a volatile in-memory store for tests and
// development, a SQLite-backed store for single-node durable deployments and
// a Redis-backed store for shared deployments.
//
// All implementations uphold the same guarantees: message appends are
// atomic per batch, histories are append-only and ListMessages returns
// most-recent-first ordering.
package conversation
