// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a richer MeshLogger with contextual
// helpers (conversation, request, component) and domain specific logging
// helpers for classification, endpoint calls and commits.
package logging
