package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/intentmesh/intentmesh/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	sender          TEXT NOT NULL,
	content_type    TEXT NOT NULL,
	payload         TEXT NOT NULL,
	token           TEXT NOT NULL DEFAULT '',
	timestamp       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
	ON messages(conversation_id, timestamp, seq);
CREATE INDEX IF NOT EXISTS idx_messages_token
	ON messages(conversation_id, token);
`

// SQLiteStore is a durable ConversationStore backed by an embedded SQLite
// database. Batch appends run in a single transaction, which provides the
// all-or-nothing pair commit the dispatcher relies on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and bootstraps the
// schema. A single writer connection avoids SQLITE_BUSY contention.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "open sqlite store")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "bootstrap sqlite schema")
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateConversation implements core.ConversationStore.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID string) (core.Conversation, error) {
	conv := core.Conversation{
		ID:        core.NewID(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, created_at) VALUES (?, ?, ?)`,
		conv.ID, conv.UserID, conv.CreatedAt.UnixNano(),
	)
	if err != nil {
		return core.Conversation{}, core.WrapError(core.CodeStoreUnavailable, err, "create conversation")
	}
	return conv, nil
}

// GetConversation implements core.ConversationStore.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (core.Conversation, error) {
	var conv core.Conversation
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.UserID, &createdAt)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return core.Conversation{}, core.NewErrorf(core.CodeNoSuchConversation, "conversation %q does not exist", id)
	}
	if err != nil {
		return core.Conversation{}, core.WrapError(core.CodeStoreUnavailable, err, "get conversation")
	}
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	return conv, nil
}

// AppendMessages implements core.ConversationStore. The batch is committed
// in one transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, conversationID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.CodeStoreUnavailable, err, "begin append transaction")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM conversations WHERE id = ?`, conversationID,
	).Scan(&exists)
	if err != nil {
		return core.WrapError(core.CodeStoreUnavailable, err, "check conversation")
	}
	if exists == 0 {
		return core.NewErrorf(core.CodeNoSuchConversation, "conversation %q does not exist", conversationID)
	}

	for _, m := range msgs {
		if m.ConversationID != conversationID {
			return core.NewErrorf(core.CodeInvalidArgument,
				"message %q belongs to conversation %q, not %q", m.ID, m.ConversationID, conversationID)
		}
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			return core.WrapError(core.CodeInvalidArgument, err, "encode message payload")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, sender, content_type, payload, token, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.ConversationID, string(m.Sender), string(m.ContentType),
			string(payload), m.Token, m.Timestamp.UnixNano(),
		)
		if err != nil {
			return core.WrapError(core.CodeStoreUnavailable, err, "append message")
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.CodeStoreUnavailable, err, "commit append transaction")
	}
	return nil
}

// ListMessages implements core.ConversationStore, returning most-recent-first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	query := `SELECT seq, id, conversation_id, sender, content_type, payload, token, timestamp
		FROM messages WHERE conversation_id = ?
		ORDER BY timestamp DESC, seq DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "list messages")
	}
	defer rows.Close()

	return scanMessages(rows)
}

// FindByToken implements core.ConversationStore, returning matches in append
// order.
func (s *SQLiteStore) FindByToken(ctx context.Context, conversationID, token string) ([]core.Message, error) {
	if token == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, conversation_id, sender, content_type, payload, token, timestamp
		 FROM messages WHERE conversation_id = ? AND token = ?
		 ORDER BY seq ASC`,
		conversationID, token,
	)
	if err != nil {
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "find messages by token")
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]core.Message, error) {
	var out []core.Message
	for rows.Next() {
		var m core.Message
		var payload string
		var sender, contentType string
		var timestamp int64
		if err := rows.Scan(&m.Seq, &m.ID, &m.ConversationID, &sender, &contentType,
			&payload, &m.Token, &timestamp); err != nil {
			return nil, core.WrapError(core.CodeStoreUnavailable, err, "scan message")
		}
		if err := json.Unmarshal([]byte(payload), &m.Payload); err != nil {
			return nil, core.WrapError(core.CodeStoreUnavailable, err, "decode message payload")
		}
		m.Sender = core.Sender(sender)
		m.ContentType = core.ContentType(contentType)
		m.Timestamp = time.Unix(0, timestamp).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.CodeStoreUnavailable, err, "iterate messages")
	}
	return out, nil
}
