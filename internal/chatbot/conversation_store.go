package chatbot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

type conversationRepo struct {
	db *sql.DB
}

// NewConversationStore returns the PostgreSQL-backed conversation state store.
func NewConversationStore(db *sql.DB) ConversationStore {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) SaveState(ctx context.Context, conv *Conversation) error {
	collected, err := json.Marshal(conv.Collected)
	if err != nil {
		return fmt.Errorf("marshal collected fields: %w", err)
	}

	query, args, err := psql.Insert("conversation_states").
		Columns("user_id", "state", "collected", "updated_at").
		Values(conv.UserID, conv.State, collected, time.Now().UTC()).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, collected = EXCLUDED.collected, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *conversationRepo) LoadState(ctx context.Context, userID string) (*Conversation, error) {
	query, args, err := psql.Select("state", "collected").
		From("conversation_states").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	conv := &Conversation{UserID: userID}
	var collected []byte
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&conv.State, &collected)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(collected) > 0 {
		if err := json.Unmarshal(collected, &conv.Collected); err != nil {
			return nil, fmt.Errorf("unmarshal collected fields: %w", err)
		}
	}
	return conv, nil
}

func (r *conversationRepo) DeleteState(ctx context.Context, userID string) error {
	query, args, err := psql.Delete("conversation_states").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

type historyRepo struct {
	db *sql.DB
}

// NewHistoryStore returns the PostgreSQL-backed turn history store.
func NewHistoryStore(db *sql.DB) HistoryStore {
	return &historyRepo{db: db}
}

func (r *historyRepo) Append(ctx context.Context, entry HistoryEntry) error {
	query, args, err := psql.Insert("conversation_history").
		Columns("user_id", "user_message", "bot_reply", "state", "created_at").
		Values(entry.UserID, entry.UserMessage, entry.BotReply, entry.State, time.Now().UTC()).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *historyRepo) ListByUser(ctx context.Context, userID string) ([]HistoryEntry, error) {
	query, args, err := psql.Select("user_id", "user_message", "bot_reply", "state", "created_at").
		From("conversation_history").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.UserID, &e.UserMessage, &e.BotReply, &e.State, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
