// Package dispatch implements the request lifecycle that turns one inbound
// user message into exactly one committed message pair: classify, route,
// invoke the selected agent endpoint, normalize the reply and commit it
// together with the user message. All routing state is pinned per request, so
// a registry or directory reload mid-flight never changes a decision already
// made.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/directory"
	"github.com/intentmesh/intentmesh/endpoint"
	"github.com/intentmesh/intentmesh/logging"
	"github.com/intentmesh/intentmesh/normalize"
	"github.com/intentmesh/intentmesh/notify"
	"github.com/intentmesh/intentmesh/registry"
)

// State is one phase of the dispatch lifecycle. Transitions are linear;
// failures jump to StateFailed from any phase.
type State string

const (
	// StateClassifying covers intent classification of the inbound text.
	StateClassifying State = "CLASSIFYING"
	// StateRouting covers intent-to-agent resolution.
	StateRouting State = "ROUTING"
	// StateInvoking covers the endpoint call including retries.
	StateInvoking State = "INVOKING"
	// StateNormalizing covers native-to-canonical response conversion.
	StateNormalizing State = "NORMALIZING"
	// StateCommitting covers the atomic message pair commit.
	StateCommitting State = "COMMITTING"
	// StateCompleted is the terminal success state.
	StateCompleted State = "COMPLETED"
	// StateFailed is the terminal failure state. Nothing is committed.
	StateFailed State = "FAILED"
)

const (
	// DefaultThreshold is the confidence gate below which classification
	// falls back to the default agent.
	DefaultThreshold = 0.5
	// DefaultHistoryWindow bounds how many stored messages are replayed to
	// the agent endpoint.
	DefaultHistoryWindow = 20
	// DefaultBackoffBase seeds the exponential retry backoff.
	DefaultBackoffBase = 100 * time.Millisecond
	// DefaultLockTableSize bounds the per-conversation lock cache.
	DefaultLockTableSize = 4096
)

// Request is one inbound user message to dispatch. An empty ConversationID
// starts a new conversation for the user. Token is the caller's idempotency
// token; resubmitting the same token replays the stored outcome instead of
// re-invoking the agent.
type Request struct {
	UserID         string
	ConversationID string
	Text           string
	Context        map[string]any
	Token          string
}

// Result is the outcome of one dispatch. On failure, Envelope carries the
// canonical error envelope and Err the underlying coded error; the
// conversation is untouched.
type Result struct {
	RequestID      string
	ConversationID string
	State          State
	Envelope       core.Envelope
	Intent         string
	Confidence     float64
	LowConfidence  bool
	AgentID        string
	Attempts       int
	Replayed       bool
	Err            error
}

// Options configure a Dispatcher.
type Options struct {
	// Threshold is the minimum top-candidate confidence for intent routing.
	Threshold float64
	// HistoryWindow is the number of recent messages sent to the endpoint.
	HistoryWindow int
	// BackoffBase is the initial retry delay, doubled per attempt.
	BackoffBase time.Duration
	// LockTableSize bounds the per-conversation serialization cache.
	LockTableSize int
	Sink          notify.Sink
	Logger        *logging.MeshLogger
}

// Dispatcher executes the dispatch state machine. Requests against the same
// conversation are serialized; requests against different conversations run
// concurrently.
type Dispatcher struct {
	registry   *registry.Registry
	directory  *directory.Directory
	classifier core.Classifier
	store      core.ConversationStore
	client     endpoint.Client
	normalizer *normalize.Normalizer

	threshold     float64
	historyWindow int
	backoffBase   time.Duration
	sink          notify.Sink
	logger        *logging.MeshLogger
	locks         *lockTable

	// sleep is swapped in tests to avoid real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a dispatcher from its collaborators.
func New(
	reg *registry.Registry,
	dir *directory.Directory,
	classifier core.Classifier,
	store core.ConversationStore,
	client endpoint.Client,
	optFns ...func(o *Options),
) *Dispatcher {
	opts := Options{
		Threshold:     DefaultThreshold,
		HistoryWindow: DefaultHistoryWindow,
		BackoffBase:   DefaultBackoffBase,
		LockTableSize: DefaultLockTableSize,
		Sink:          notify.NopSink{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil)
	}
	logger := opts.Logger.WithComponent("dispatch")

	return &Dispatcher{
		registry:      reg,
		directory:     dir,
		classifier:    classifier,
		store:         store,
		client:        client,
		normalizer:    normalize.New(),
		threshold:     opts.Threshold,
		historyWindow: opts.HistoryWindow,
		backoffBase:   opts.BackoffBase,
		sink:          opts.Sink,
		logger:        logger,
		locks:         newLockTable(opts.LockTableSize),
		sleep:         sleepCtx,
	}
}

// Dispatch runs one request through the full lifecycle. It always returns a
// Result whose Envelope is safe to hand to the caller; the error return
// duplicates Result.Err for convenience.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	res := Result{RequestID: core.NewID(), State: StateFailed}
	logger := d.logger.WithConversation(req.ConversationID, res.RequestID)

	if req.Text == "" {
		return d.fail(ctx, res, core.NewError(core.CodeInvalidArgument, "message text must not be empty"))
	}

	conv, err := d.resolveConversation(ctx, req)
	if err != nil {
		return d.fail(ctx, res, err)
	}
	res.ConversationID = conv.ID
	logger = d.logger.WithConversation(conv.ID, res.RequestID)

	// One dispatch at a time per conversation. This is what makes the
	// append order of message pairs deterministic under concurrent sends.
	mu := d.locks.get(conv.ID)
	mu.Lock()
	defer mu.Unlock()

	if req.Token != "" {
		replayed, ok, err := d.replay(ctx, conv.ID, req.Token)
		if err != nil {
			return d.fail(ctx, res, err)
		}
		if ok {
			res.State = StateCompleted
			res.Envelope = replayed
			res.Replayed = true
			logger.Info("request replayed from idempotency token", "token", req.Token)
			return res, nil
		}
	}

	// Pin both snapshots for the whole request.
	table := d.registry.Snapshot()
	agents := d.directory.Snapshot()

	d.notifyState(ctx, res, StateClassifying)
	started := time.Now()
	classification, err := d.classifier.Classify(ctx, req.Text, req.Context)
	if err != nil {
		return d.fail(ctx, res, core.WrapError(core.CodeRoutingFailure, err, "classification failed"))
	}

	d.notifyState(ctx, res, StateRouting)
	route, err := d.route(table, agents, classification)
	if err != nil {
		return d.fail(ctx, res, err)
	}
	res.Intent = route.intent
	res.Confidence = route.confidence
	res.LowConfidence = route.lowConfidence
	res.AgentID = route.desc.AgentID
	logger.LogClassification(route.intent, route.confidence, route.lowConfidence, time.Since(started))

	d.notifyState(ctx, res, StateInvoking)
	nativeResp, attempts, err := d.invoke(ctx, logger, route.desc, conv.ID, req)
	res.Attempts = attempts
	if err != nil {
		return d.fail(ctx, res, err)
	}

	d.notifyState(ctx, res, StateNormalizing)
	env, err := d.normalizer.Normalize(route.desc, normalize.Response{
		ContentType: nativeResp.ContentType,
		Payload:     nativeResp.Payload,
	})
	if err != nil {
		return d.fail(ctx, res, err)
	}

	d.notifyState(ctx, res, StateCommitting)
	commitStart := time.Now()
	userMsg := core.NewUserMessage(conv.ID, req.Text, req.Token)
	agentMsg := core.NewAgentMessage(conv.ID, env, req.Token)
	err = d.store.AppendMessages(ctx, conv.ID, userMsg, agentMsg)
	logger.LogCommit(conv.ID, 2, time.Since(commitStart), err)
	if err != nil {
		return d.fail(ctx, res, err)
	}

	res.State = StateCompleted
	res.Envelope = env
	d.sink.Notify(ctx, notify.Event{
		RequestID:      res.RequestID,
		ConversationID: res.ConversationID,
		State:          string(StateCompleted),
		Intent:         res.Intent,
		AgentID:        res.AgentID,
		Envelope:       &env,
		Timestamp:      time.Now().UTC(),
	})
	return res, nil
}

func (d *Dispatcher) resolveConversation(ctx context.Context, req Request) (core.Conversation, error) {
	if req.ConversationID == "" {
		return d.store.CreateConversation(ctx, req.UserID)
	}
	return d.store.GetConversation(ctx, req.ConversationID)
}

// replay looks up an already-committed outcome for the token. Pair commits
// are all-or-nothing, so a hit always contains the agent reply.
func (d *Dispatcher) replay(ctx context.Context, conversationID, token string) (core.Envelope, bool, error) {
	msgs, err := d.store.FindByToken(ctx, conversationID, token)
	if err != nil {
		return core.Envelope{}, false, err
	}
	for _, m := range msgs {
		if m.Sender == core.SenderAgent {
			return m.Envelope(), true, nil
		}
	}
	return core.Envelope{}, false, nil
}

type routeDecision struct {
	intent        string
	confidence    float64
	lowConfidence bool
	desc          core.AgentDescriptor
}

// route turns a classification into an agent descriptor against pinned
// snapshots. Low confidence, unknown intents and unknown agents all fall back
// to the default agent; only an unusable default is a routing failure.
func (d *Dispatcher) route(table *registry.Table, agents *directory.Snapshot, c core.Classification) (routeDecision, error) {
	decision := routeDecision{}

	top, ok := c.Top()
	if !ok || top.Confidence < d.threshold {
		decision.lowConfidence = true
		if ok {
			decision.intent = top.Intent
			decision.confidence = top.Confidence
		}
		return d.routeDefault(table, agents, decision, nil)
	}

	decision.intent = top.Intent
	decision.confidence = top.Confidence

	agentID, err := table.Lookup(top.Intent)
	if err != nil {
		decision.lowConfidence = true
		return d.routeDefault(table, agents, decision, err)
	}
	desc, err := agents.Resolve(agentID)
	if err != nil {
		decision.lowConfidence = true
		return d.routeDefault(table, agents, decision, err)
	}
	decision.desc = desc
	return decision, nil
}

func (d *Dispatcher) routeDefault(table *registry.Table, agents *directory.Snapshot, decision routeDecision, cause error) (routeDecision, error) {
	defaultID := table.DefaultAgentID()
	if defaultID == "" {
		if cause != nil {
			return decision, core.WrapError(core.CodeRoutingFailure, cause, "no default agent to fall back to")
		}
		return decision, core.NewError(core.CodeRoutingFailure, "no confident intent and no default agent configured")
	}
	desc, err := agents.Resolve(defaultID)
	if err != nil {
		return decision, core.WrapError(core.CodeRoutingFailure, err, fmt.Sprintf("default agent %q is unresolvable", defaultID))
	}
	decision.desc = desc
	return decision, nil
}

// invoke calls the endpoint with retries. Only transport failures are
// retried; each attempt carries the descriptor's timeout budget and retries
// back off exponentially from the configured base.
func (d *Dispatcher) invoke(ctx context.Context, logger *logging.MeshLogger, desc core.AgentDescriptor, conversationID string, req Request) (endpoint.Response, int, error) {
	history, err := d.store.ListMessages(ctx, conversationID, d.historyWindow)
	if err != nil {
		return endpoint.Response{}, 0, err
	}
	protoReq := endpoint.Request{
		History: endpoint.HistoryFromMessages(history),
		Text:    req.Text,
		Context: req.Context,
		Tools:   desc.Tools,
	}

	maxAttempts := desc.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, desc.EffectiveTimeout())
		started := time.Now()
		resp, err := d.client.Invoke(attemptCtx, desc, protoReq)
		cancel()
		logger.LogEndpointCall(desc.AgentID, attempt, time.Since(started), err)
		if err == nil {
			return resp, attempt, nil
		}
		if ctx.Err() != nil {
			return endpoint.Response{}, attempt, core.WrapError(core.CodeCancelled, ctx.Err(),
				fmt.Sprintf("dispatch cancelled during call to agent %q", desc.AgentID))
		}
		if !core.Retryable(err) {
			return endpoint.Response{}, attempt, err
		}
		lastErr = err
		if attempt < maxAttempts {
			delay := d.backoffBase << (attempt - 1)
			if sleepErr := d.sleep(ctx, delay); sleepErr != nil {
				return endpoint.Response{}, attempt, core.WrapError(core.CodeCancelled, sleepErr,
					fmt.Sprintf("dispatch cancelled while backing off from agent %q", desc.AgentID))
			}
		}
	}
	return endpoint.Response{}, maxAttempts, core.WrapError(core.CodeRoutingFailure, lastErr,
		fmt.Sprintf("agent %q unreachable after %d attempts", desc.AgentID, maxAttempts))
}

func (d *Dispatcher) fail(ctx context.Context, res Result, err error) (Result, error) {
	res.State = StateFailed
	res.Err = err
	res.Envelope = core.ErrorEnvelopeFrom(err)
	d.sink.Notify(ctx, notify.Event{
		RequestID:      res.RequestID,
		ConversationID: res.ConversationID,
		State:          string(StateFailed),
		Intent:         res.Intent,
		AgentID:        res.AgentID,
		Code:           core.CodeOf(err),
		Message:        err.Error(),
		Timestamp:      time.Now().UTC(),
	})
	return res, err
}

func (d *Dispatcher) notifyState(ctx context.Context, res Result, state State) {
	d.sink.Notify(ctx, notify.Event{
		RequestID:      res.RequestID,
		ConversationID: res.ConversationID,
		State:          string(state),
		Intent:         res.Intent,
		AgentID:        res.AgentID,
		Timestamp:      time.Now().UTC(),
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
