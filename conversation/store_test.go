package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentmesh/intentmesh/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.ConversationStore = (*InMemoryStore)(nil)
	_ core.ConversationStore = (*SQLiteStore)(nil)
	_ core.ConversationStore = (*RedisStore)(nil)
)

// storeFactories lists the backends exercised by the shared contract tests.
// Redis is only included when REDIS_ADDR is set.
func storeFactories(t *testing.T) map[string]func(t *testing.T) core.ConversationStore {
	factories := map[string]func(t *testing.T) core.ConversationStore{
		"in_memory": func(t *testing.T) core.ConversationStore {
			return NewInMemoryStore()
		},
		"sqlite": func(t *testing.T) core.ConversationStore {
			store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"))
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		factories["redis"] = func(t *testing.T) core.ConversationStore {
			client := redis.NewClient(&redis.Options{Addr: addr})
			t.Cleanup(func() { client.Close() })
			return NewRedisStore(client, func(o *RedisOptions) {
				o.Prefix = "intentmesh_test_" + core.NewID()
			})
		}
	}
	return factories
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("create and get", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()

				conv, err := store.CreateConversation(ctx, "user-1")
				require.NoError(t, err)
				assert.NotEmpty(t, conv.ID)
				assert.Equal(t, "user-1", conv.UserID)

				got, err := store.GetConversation(ctx, conv.ID)
				require.NoError(t, err)
				assert.Equal(t, conv.ID, got.ID)
				assert.Equal(t, "user-1", got.UserID)

				_, err = store.GetConversation(ctx, "missing")
				assert.True(t, core.IsCode(err, core.CodeNoSuchConversation))
			})

			t.Run("append requires conversation", func(t *testing.T) {
				store := factory(t)
				err := store.AppendMessages(context.Background(), "missing",
					core.NewUserMessage("missing", "hi", ""))
				assert.True(t, core.IsCode(err, core.CodeNoSuchConversation))
			})

			t.Run("append rejects foreign messages", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				conv, err := store.CreateConversation(ctx, "user-1")
				require.NoError(t, err)

				err = store.AppendMessages(ctx, conv.ID,
					core.NewUserMessage("other-conversation", "hi", ""))
				assert.True(t, core.IsCode(err, core.CodeInvalidArgument))
			})

			t.Run("list most recent first", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				conv, err := store.CreateConversation(ctx, "user-1")
				require.NoError(t, err)

				for _, text := range []string{"first", "second", "third"} {
					require.NoError(t, store.AppendMessages(ctx, conv.ID,
						core.NewUserMessage(conv.ID, text, "")))
				}

				msgs, err := store.ListMessages(ctx, conv.ID, 0)
				require.NoError(t, err)
				require.Len(t, msgs, 3)
				assert.Equal(t, "third", msgs[0].Text())
				assert.Equal(t, "second", msgs[1].Text())
				assert.Equal(t, "first", msgs[2].Text())

				limited, err := store.ListMessages(ctx, conv.ID, 2)
				require.NoError(t, err)
				require.Len(t, limited, 2)
				assert.Equal(t, "third", limited[0].Text())
				assert.Equal(t, "second", limited[1].Text())
			})

			t.Run("pair commit keeps order", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				conv, err := store.CreateConversation(ctx, "user-1")
				require.NoError(t, err)

				user := core.NewUserMessage(conv.ID, "show report", "tok-1")
				reply := core.NewAgentMessage(conv.ID, core.DataEnvelope(map[string]any{"total": 1}), "tok-1")
				require.NoError(t, store.AppendMessages(ctx, conv.ID, user, reply))

				msgs, err := store.ListMessages(ctx, conv.ID, 0)
				require.NoError(t, err)
				require.Len(t, msgs, 2)
				// Most recent first: agent reply, then its user message.
				assert.Equal(t, core.SenderAgent, msgs[0].Sender)
				assert.Equal(t, core.SenderUser, msgs[1].Sender)
				assert.Greater(t, msgs[0].Seq, msgs[1].Seq)
			})

			t.Run("find by token", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				conv, err := store.CreateConversation(ctx, "user-1")
				require.NoError(t, err)

				user := core.NewUserMessage(conv.ID, "show report", "tok-1")
				reply := core.NewAgentMessage(conv.ID, core.TextEnvelope("done"), "tok-1")
				require.NoError(t, store.AppendMessages(ctx, conv.ID, user, reply))
				require.NoError(t, store.AppendMessages(ctx, conv.ID,
					core.NewUserMessage(conv.ID, "unrelated", "tok-2")))

				found, err := store.FindByToken(ctx, conv.ID, "tok-1")
				require.NoError(t, err)
				require.Len(t, found, 2)
				// Append order: user first, agent second.
				assert.Equal(t, core.SenderUser, found[0].Sender)
				assert.Equal(t, core.SenderAgent, found[1].Sender)

				none, err := store.FindByToken(ctx, conv.ID, "unseen")
				require.NoError(t, err)
				assert.Empty(t, none)

				blank, err := store.FindByToken(ctx, conv.ID, "")
				require.NoError(t, err)
				assert.Empty(t, blank)
			})
		})
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversations.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	conv, err := store.CreateConversation(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, store.AppendMessages(ctx, conv.ID,
		core.NewUserMessage(conv.ID, "durable", "")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	msgs, err := reopened.ListMessages(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "durable", msgs[0].Text())
}
