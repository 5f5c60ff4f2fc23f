package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const conversationColumns = "id, user_id, title, model, is_favorite, tags, created_at, updated_at"

// ConversationUpdate carries the optional fields of an update; nil means
// "leave unchanged". updated_at is bumped regardless.
type ConversationUpdate struct {
	Title      *string
	Model      *string
	IsFavorite *int
	Tags       *string
}

func (s *Store) CreateConversation(ctx context.Context, userID int64, title, model string) (Conversation, error) {
	if title == "" {
		title = DefaultConversationTitle
	}
	now := time.Now().UTC()

	q := s.sql.Insert("conversations").
		Columns("user_id", "title", "model", "created_at", "updated_at").
		Values(userID, title, model, now, now).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Conversation{}, fmt.Errorf("build create conversation query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return s.GetConversation(ctx, id, userID)
}

// GetConversation resolves a conversation only when it belongs to userID, so
// another user's id surfaces as ErrNotFound rather than leaking existence.
func (s *Store) GetConversation(ctx context.Context, id, userID int64) (Conversation, error) {
	q := s.sql.Select(conversationColumns).
		From("conversations").
		Where(sq.Eq{"id": id, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Conversation{}, fmt.Errorf("build get conversation query: %w", err)
	}

	var c Conversation
	var tags sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&c.ID, &c.UserID, &c.Title, &c.Model, &c.IsFavorite, &tags, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if tags.Valid {
		c.Tags = &tags.String
	}
	return c, nil
}

func (s *Store) ListConversations(ctx context.Context, userID int64, limit uint64) ([]Conversation, error) {
	if limit == 0 {
		limit = 50
	}
	q := s.sql.Select(conversationColumns).
		From("conversations").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC").
		Limit(limit)
	return s.queryConversations(ctx, q, "list conversations")
}

// SearchConversations matches the query against title and tags.
func (s *Store) SearchConversations(ctx context.Context, userID int64, query string) ([]Conversation, error) {
	pattern := "%" + query + "%"
	q := s.sql.Select(conversationColumns).
		From("conversations").
		Where(sq.And{
			sq.Eq{"user_id": userID},
			sq.Or{
				sq.Like{"title": pattern},
				sq.Like{"tags": pattern},
			},
		}).
		OrderBy("updated_at DESC").
		Limit(20)
	return s.queryConversations(ctx, q, "search conversations")
}

func (s *Store) queryConversations(ctx context.Context, q sq.SelectBuilder, label string) ([]Conversation, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", label, err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	out := make([]Conversation, 0)
	for rows.Next() {
		var c Conversation
		var tags sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Model, &c.IsFavorite, &tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		if tags.Valid {
			c.Tags = &tags.String
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateConversation(ctx context.Context, id, userID int64, upd ConversationUpdate) error {
	q := s.sql.Update("conversations").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "user_id": userID})
	if upd.Title != nil {
		q = q.Set("title", *upd.Title)
	}
	if upd.Model != nil {
		q = q.Set("model", *upd.Model)
	}
	if upd.IsFavorite != nil {
		q = q.Set("is_favorite", *upd.IsFavorite)
	}
	if upd.Tags != nil {
		q = q.Set("tags", *upd.Tags)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update conversation query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchConversation bumps updated_at without changing anything else.
func (s *Store) TouchConversation(ctx context.Context, id, userID int64) error {
	return s.UpdateConversation(ctx, id, userID, ConversationUpdate{})
}

// DeleteConversation removes the conversation and its messages and attached
// file records. The deletes run in one transaction so a partial failure
// leaves the conversation intact.
func (s *Store) DeleteConversation(ctx context.Context, id, userID int64) error {
	if _, err := s.GetConversation(ctx, id, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete conversation tx: %w", err)
	}
	defer tx.Rollback()

	for _, del := range []sq.DeleteBuilder{
		s.sql.Delete("messages").Where(sq.Eq{"conversation_id": id}),
		s.sql.Delete("files").Where(sq.Eq{"conversation_id": id}),
		s.sql.Delete("conversations").Where(sq.Eq{"id": id, "user_id": userID}),
	} {
		sqlStr, args, err := del.ToSql()
		if err != nil {
			return fmt.Errorf("build delete conversation query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete conversation tx: %w", err)
	}
	return nil
}
