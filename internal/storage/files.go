package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const fileColumns = "id, user_id, conversation_id, filename, file_key, url, mime_type, size, extracted_text, created_at"

func (s *Store) CreateFile(ctx context.Context, f File) (int64, error) {
	now := time.Now().UTC()
	q := s.sql.Insert("files").
		Columns("user_id", "conversation_id", "filename", "file_key", "url", "mime_type", "size", "extracted_text", "created_at").
		Values(f.UserID, f.ConversationID, f.Filename, f.FileKey, f.URL, f.MimeType, f.Size, f.ExtractedText, now).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build create file query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	return id, nil
}

func (s *Store) ListFilesByUser(ctx context.Context, userID int64) ([]File, error) {
	q := s.sql.Select(fileColumns).
		From("files").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	return s.queryFiles(ctx, q, "list user files")
}

func (s *Store) ListFilesByConversation(ctx context.Context, conversationID int64) ([]File, error) {
	q := s.sql.Select(fileColumns).
		From("files").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC")
	return s.queryFiles(ctx, q, "list conversation files")
}

func (s *Store) queryFiles(ctx context.Context, q sq.SelectBuilder, label string) ([]File, error) {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", label, err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	defer rows.Close()

	out := make([]File, 0)
	for rows.Next() {
		var f File
		var conversationID sql.NullInt64
		var mimeType, extractedText sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(
			&f.ID, &f.UserID, &conversationID, &f.Filename, &f.FileKey, &f.URL, &mimeType, &size, &extractedText, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		if conversationID.Valid {
			f.ConversationID = &conversationID.Int64
		}
		if mimeType.Valid {
			f.MimeType = &mimeType.String
		}
		if size.Valid {
			f.Size = &size.Int64
		}
		if extractedText.Valid {
			f.ExtractedText = &extractedText.String
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file rows: %w", err)
	}
	return out, nil
}
