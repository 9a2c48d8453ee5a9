package conversation

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intentmesh/intentmesh/core"
)

// RedisStore is a ConversationStore backed by Redis, for deployments where
// multiple orchestrator instances share one conversation history.
//
// Layout per conversation: a hash holding the conversation record, a counter
// for sequence numbers and a list of JSON-encoded messages. A batch append
// is a single RPUSH with all encoded messages, so readers never observe an
// agent reply without its preceding user message.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configure a RedisStore.
type RedisOptions struct {
	// Prefix namespaces all keys. Defaults to "intentmesh".
	Prefix string
}

// NewRedisStore creates a store on an existing Redis client.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{Prefix: "intentmesh"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, prefix: opts.Prefix}
}

func (s *RedisStore) convKey(id string) string { return s.prefix + ":conv:" + id }
func (s *RedisStore) msgsKey(id string) string { return s.prefix + ":msgs:" + id }
func (s *RedisStore) seqKey(id string) string  { return s.prefix + ":seq:" + id }

// CreateConversation implements core.ConversationStore.
func (s *RedisStore) CreateConversation(ctx context.Context, userID string) (core.Conversation, error) {
	conv := core.Conversation{
		ID:        core.NewID(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	err := s.client.HSet(ctx, s.convKey(conv.ID), map[string]any{
		"user_id":    conv.UserID,
		"created_at": strconv.FormatInt(conv.CreatedAt.UnixNano(), 10),
	}).Err()
	if err != nil {
		return core.Conversation{}, core.WrapError(core.CodeStoreUnavailable, err, "create conversation")
	}
	return conv, nil
}

// GetConversation implements core.ConversationStore.
func (s *RedisStore) GetConversation(ctx context.Context, id string) (core.Conversation, error) {
	fields, err := s.client.HGetAll(ctx, s.convKey(id)).Result()
	if err != nil {
		return core.Conversation{}, core.WrapError(core.CodeStoreUnavailable, err, "get conversation")
	}
	if len(fields) == 0 {
		return core.Conversation{}, core.NewErrorf(core.CodeNoSuchConversation, "conversation %q does not exist", id)
	}
	createdAt, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return core.Conversation{
		ID:        id,
		UserID:    fields["user_id"],
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}

// AppendMessages implements core.ConversationStore.
func (s *RedisStore) AppendMessages(ctx context.Context, conversationID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	for _, m := range msgs {
		if m.ConversationID != conversationID {
			return core.NewErrorf(core.CodeInvalidArgument,
				"message %q belongs to conversation %q, not %q", m.ID, m.ConversationID, conversationID)
		}
	}

	// Reserve a contiguous sequence range, then append the whole batch with
	// one RPUSH so the pair lands atomically.
	end, err := s.client.IncrBy(ctx, s.seqKey(conversationID), int64(len(msgs))).Result()
	if err != nil {
		return core.WrapError(core.CodeStoreUnavailable, err, "reserve message sequence")
	}
	start := end - int64(len(msgs)) + 1

	encoded := make([]any, 0, len(msgs))
	for i, m := range msgs {
		m.Seq = start + int64(i)
		data, err := json.Marshal(m)
		if err != nil {
			return core.WrapError(core.CodeInvalidArgument, err, "encode message")
		}
		encoded = append(encoded, string(data))
	}

	if err := s.client.RPush(ctx, s.msgsKey(conversationID), encoded...).Err(); err != nil {
		return core.WrapError(core.CodeStoreUnavailable, err, "append messages")
	}
	return nil
}

// ListMessages implements core.ConversationStore, returning most-recent-first.
func (s *RedisStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, s.msgsKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "list messages")
	}

	out := make([]core.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m core.Message
		if err := json.Unmarshal([]byte(raw[i]), &m); err != nil {
			return nil, core.WrapError(core.CodeStoreUnavailable, err, "decode message")
		}
		out = append(out, m)
	}
	return out, nil
}

// FindByToken implements core.ConversationStore.
func (s *RedisStore) FindByToken(ctx context.Context, conversationID, token string) ([]core.Message, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.msgsKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "find messages by token")
	}

	var out []core.Message
	for _, item := range raw {
		var m core.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, core.WrapError(core.CodeStoreUnavailable, err, "decode message")
		}
		if m.Token == token {
			out = append(out, m)
		}
	}
	return out, nil
}
