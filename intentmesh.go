// Package intentmesh provides a high-level façade over the dispatch pipeline
// (classification, routing, endpoint invocation, normalization & conversation
// persistence) enabling rapid construction of intent-routed agent systems.
// Most applications interact with this package by:
//  1. Creating a Mesh via New() (optionally overriding default in-memory services)
//  2. Loading an intent table and agent descriptors (static or from config files)
//  3. Sending user messages (Send) and handing the canonical envelope to callers
//
// The façade delegates request execution to dispatch.Dispatcher while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// conversation store, real endpoint transport and a structured logger.
package intentmesh

import (
	"context"

	"github.com/intentmesh/intentmesh/classify"
	"github.com/intentmesh/intentmesh/conversation"
	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/directory"
	"github.com/intentmesh/intentmesh/dispatch"
	"github.com/intentmesh/intentmesh/endpoint"
	"github.com/intentmesh/intentmesh/logging"
	"github.com/intentmesh/intentmesh/notify"
	"github.com/intentmesh/intentmesh/registry"
)

// Options configures the Mesh instance.
type Options struct {
	// Table is the initial intent-to-agent mapping. Defaults to an empty
	// table; load one via registry.LoadFile or build it with registry.NewTable.
	Table *registry.Table

	// Agents seeds the agent directory.
	Agents []core.AgentDescriptor

	// Classifier ranks intents for inbound text. Defaults to an empty
	// keyword classifier; most deployments construct one from their intent
	// vocabulary.
	Classifier core.Classifier

	// Store persists conversations. Defaults to the in-memory store.
	Store core.ConversationStore

	// Client invokes agent endpoints. Defaults to the HTTP protocol client.
	Client endpoint.Client

	// Threshold is the classification confidence gate.
	Threshold float64

	// HistoryWindow bounds the conversation window sent to agents.
	HistoryWindow int

	// Sink receives dispatch lifecycle events (defaults to discard).
	Sink notify.Sink

	// Logger (defaults to a JSON slog logger if nil).
	Logger *logging.MeshLogger
}

// Mesh is the high-level façade aggregating the routing state and dispatcher.
type Mesh struct {
	registry   *registry.Registry
	directory  *directory.Directory
	store      core.ConversationStore
	dispatcher *dispatch.Dispatcher
}

// New creates a new Mesh with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		Classifier:    classify.NewKeyword(),
		Threshold:     dispatch.DefaultThreshold,
		HistoryWindow: dispatch.DefaultHistoryWindow,
		Sink:          notify.NopSink{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = conversation.NewInMemoryStore()
	}
	if opts.Client == nil {
		opts.Client = endpoint.NewHTTPClient()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil)
	}

	reg := registry.New(opts.Table)
	dir := directory.New(opts.Agents...)
	d := dispatch.New(reg, dir, opts.Classifier, opts.Store, opts.Client, func(o *dispatch.Options) {
		o.Threshold = opts.Threshold
		o.HistoryWindow = opts.HistoryWindow
		o.Sink = opts.Sink
		o.Logger = opts.Logger
	})

	return &Mesh{registry: reg, directory: dir, store: opts.Store, dispatcher: d}
}

// Send dispatches one user message and returns the canonical outcome. An
// empty ConversationID starts a new conversation for the user.
func (m *Mesh) Send(ctx context.Context, req dispatch.Request) (dispatch.Result, error) {
	return m.dispatcher.Dispatch(ctx, req)
}

// Registry exposes the intent registry for reloads and snapshots.
func (m *Mesh) Registry() *registry.Registry { return m.registry }

// Directory exposes the agent directory for reloads and health checks.
func (m *Mesh) Directory() *directory.Directory { return m.directory }

// Store exposes the conversation store for history reads.
func (m *Mesh) Store() core.ConversationStore { return m.store }

// Healthy reports whether the mesh can currently route at all: agents are
// registered and the configured default agent resolves.
func (m *Mesh) Healthy() bool {
	return m.directory.Healthy(m.registry.DefaultAgentID())
}

// History returns up to limit messages of a conversation, most recent first.
func (m *Mesh) History(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	return m.store.ListMessages(ctx, conversationID, limit)
}
