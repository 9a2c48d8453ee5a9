// Package notify publishes dispatch lifecycle events to interested
// listeners. Delivery is strictly best-effort: a sink failure is logged and
// never affects the outcome of the request that produced the event.
package notify

import (
	"context"
	"time"

	"github.com/intentmesh/intentmesh/core"
	"github.com/intentmesh/intentmesh/logging"
)

// Event describes one dispatch state transition. Completion events carry the
// delivered envelope so sinks can render the reply out of band.
type Event struct {
	RequestID      string         `json:"request_id"`
	ConversationID string         `json:"conversation_id"`
	State          string         `json:"state"`
	Intent         string         `json:"intent,omitempty"`
	AgentID        string         `json:"agent_id,omitempty"`
	Code           core.Code      `json:"code,omitempty"`
	Message        string         `json:"message,omitempty"`
	Envelope       *core.Envelope `json:"envelope,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Sink receives dispatch events. Implementations must not block for long and
// must swallow their own failures.
type Sink interface {
	Notify(ctx context.Context, event Event)
}

// NopSink discards all events.
type NopSink struct{}

// Notify implements Sink.
func (NopSink) Notify(context.Context, Event) {}

// LogSink writes events to the logger. It is the default sink.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a sink that logs each event.
func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewDefaultSlogLogger()
	}
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, event Event) {
	args := []any{
		"request_id", event.RequestID,
		"conversation_id", event.ConversationID,
		"state", event.State,
	}
	if event.Intent != "" {
		args = append(args, "intent", event.Intent)
	}
	if event.AgentID != "" {
		args = append(args, "agent_id", event.AgentID)
	}
	if event.Code != "" {
		args = append(args, "code", string(event.Code), "message", event.Message)
		s.logger.Warn("dispatch event", args...)
		return
	}
	s.logger.Info("dispatch event", args...)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Notify implements Sink.
func (m MultiSink) Notify(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, event)
		}
	}
}
