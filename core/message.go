package core

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies which side of a conversation authored a message.
type Sender string

const (
	// SenderUser marks an inbound end-user message.
	SenderUser Sender = "user"
	// SenderAgent marks a normalized agent reply.
	SenderAgent Sender = "agent"
)

// Conversation is the durable container for an ordered message history.
// It is created on first contact (or explicitly by the caller) and never
// mutated afterwards except implicitly through its message list; deletion is
// an external policy outside the orchestrator.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one append-only entry in a conversation. Ordering is by
// (ConversationID, Timestamp) with Seq breaking ties by insertion order;
// messages are never reordered or edited after append.
//
// Token carries the caller-supplied idempotency token of the request that
// produced the message; the dispatcher uses it to detect re-submission.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Sender         Sender         `json:"sender"`
	ContentType    ContentType    `json:"content_type"`
	Payload        map[string]any `json:"payload"`
	Token          string         `json:"token,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Seq            int64          `json:"seq"`
}

// NewUserMessage builds an inbound text message bound to a conversation.
func NewUserMessage(conversationID, text, token string) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Sender:         SenderUser,
		ContentType:    ContentTypeText,
		Payload:        map[string]any{"text": text},
		Token:          token,
		Timestamp:      time.Now().UTC(),
	}
}

// NewAgentMessage builds a normalized agent reply from a canonical envelope.
func NewAgentMessage(conversationID string, env Envelope, token string) Message {
	return Message{
		ID:             NewID(),
		ConversationID: conversationID,
		Sender:         SenderAgent,
		ContentType:    env.ContentType,
		Payload:        env.Payload,
		Token:          token,
		Timestamp:      time.Now().UTC(),
	}
}

// Envelope reconstructs the canonical envelope a message was committed from.
func (m Message) Envelope() Envelope {
	return Envelope{ContentType: m.ContentType, Payload: m.Payload}
}

// Text returns the plain text payload for text messages.
func (m Message) Text() string {
	s, _ := m.Payload["text"].(string)
	return s
}

// NewID generates a unique identifier for conversations, messages and
// requests.
func NewID() string { return uuid.NewString() }
