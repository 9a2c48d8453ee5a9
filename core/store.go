package core

import "context"

// ConversationStore is the narrow contract to a durable store of
// conversations and their ordered messages. The orchestrator never
// implements a persistence engine itself; any backend satisfying this
// contract is acceptable (relational, document, in-memory for tests).
//
// Contract:
//   - AppendMessages commits the whole batch atomically: a concurrent
//     reader never observes an agent reply without its preceding user
//     message.
//   - ListMessages returns messages most-recent-first.
//   - Operations against a missing conversation fail with
//     CodeNoSuchConversation; infrastructure failures surface as
//     CodeStoreUnavailable.
type ConversationStore interface {
	// CreateConversation allocates a new conversation for the user.
	CreateConversation(ctx context.Context, userID string) (Conversation, error)

	// GetConversation fetches a conversation by id.
	GetConversation(ctx context.Context, id string) (Conversation, error)

	// AppendMessages appends the batch to the conversation in order, as one
	// logical unit. Every message must reference the given conversation.
	AppendMessages(ctx context.Context, conversationID string, msgs ...Message) error

	// ListMessages returns up to limit messages, most recent first.
	// limit <= 0 means no limit.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// FindByToken returns all committed messages carrying the idempotency
	// token, in append order. An empty slice means the token is unseen.
	FindByToken(ctx context.Context, conversationID, token string) ([]Message, error)
}
