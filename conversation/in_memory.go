package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/intentmesh/intentmesh/core"
)

// InMemoryStore is a volatile ConversationStore implementation storing
// conversations in process local maps. It is safe for concurrent access and
// best suited for tests or ephemeral demo servers. Returned messages are
// copies to prevent external mutation of internal state.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]core.Conversation
	messages      map[string][]core.Message
	seq           int64
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]core.Conversation),
		messages:      make(map[string][]core.Message),
	}
}

// CreateConversation implements core.ConversationStore.
func (s *InMemoryStore) CreateConversation(_ context.Context, userID string) (core.Conversation, error) {
	conv := core.Conversation{
		ID:        core.NewID(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()
	return conv, nil
}

// GetConversation implements core.ConversationStore.
func (s *InMemoryStore) GetConversation(_ context.Context, id string) (core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[id]; ok {
		return conv, nil
	}
	return core.Conversation{}, core.NewErrorf(core.CodeNoSuchConversation, "conversation %q does not exist", id)
}

// AppendMessages implements core.ConversationStore. The whole batch becomes
// visible in one critical section, so a concurrent reader never observes a
// partial pair.
func (s *InMemoryStore) AppendMessages(_ context.Context, conversationID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return core.NewErrorf(core.CodeNoSuchConversation, "conversation %q does not exist", conversationID)
	}
	for _, m := range msgs {
		if m.ConversationID != conversationID {
			return core.NewErrorf(core.CodeInvalidArgument,
				"message %q belongs to conversation %q, not %q", m.ID, m.ConversationID, conversationID)
		}
	}

	for _, m := range msgs {
		s.seq++
		m.Seq = s.seq
		s.messages[conversationID] = append(s.messages[conversationID], m)
	}
	return nil
}

// ListMessages implements core.ConversationStore, returning most-recent-first.
func (s *InMemoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, core.NewErrorf(core.CodeNoSuchConversation, "conversation %q does not exist", conversationID)
	}

	history := s.messages[conversationID]
	n := len(history)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]core.Message, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

// FindByToken implements core.ConversationStore, returning matches in append
// order.
func (s *InMemoryStore) FindByToken(_ context.Context, conversationID, token string) ([]core.Message, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Message
	for _, m := range s.messages[conversationID] {
		if m.Token == token {
			out = append(out, m)
		}
	}
	return out, nil
}
