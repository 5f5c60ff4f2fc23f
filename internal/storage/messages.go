package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) CreateMessage(ctx context.Context, conversationID int64, role, content string, metadata *string) (Message, error) {
	if role != RoleUser && role != RoleAssistant && role != RoleSystem {
		return Message{}, fmt.Errorf("invalid message role %q", role)
	}
	now := time.Now().UTC()

	q := s.sql.Insert("messages").
		Columns("conversation_id", "role", "content", "metadata", "created_at").
		Values(conversationID, role, content, metadata, now).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Message{}, fmt.Errorf("build create message query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      now,
	}, nil
}

// ListMessages returns every message of the conversation in creation order.
// The id tiebreak keeps same-timestamp rows stable.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	q := s.sql.Select("id", "conversation_id", "role", "content", "metadata", "created_at").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC", "id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		if metadata.Valid {
			m.Metadata = &metadata.String
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *Store) CountMessages(ctx context.Context, conversationID int64) (int64, error) {
	q := s.sql.Select("COUNT(*)").From("messages").Where(sq.Eq{"conversation_id": conversationID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count messages query: %w", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
