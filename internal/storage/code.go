package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const codeProjectColumns = "id, user_id, name, description, language, created_at, updated_at"

type CodeProjectUpdate struct {
	Name        *string
	Description *string
	Language    *string
}

func (s *Store) CreateCodeProject(ctx context.Context, userID int64, name, description, language string) (CodeProject, error) {
	if language == "" {
		language = "javascript"
	}
	now := time.Now().UTC()

	q := s.sql.Insert("code_projects").
		Columns("user_id", "name", "description", "language", "created_at", "updated_at").
		Values(userID, name, description, language, now, now).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return CodeProject{}, fmt.Errorf("build create code project query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return CodeProject{}, fmt.Errorf("create code project: %w", err)
	}
	return s.GetCodeProject(ctx, id, userID)
}

func (s *Store) GetCodeProject(ctx context.Context, id, userID int64) (CodeProject, error) {
	q := s.sql.Select(codeProjectColumns).
		From("code_projects").
		Where(sq.Eq{"id": id, "user_id": userID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return CodeProject{}, fmt.Errorf("build get code project query: %w", err)
	}

	var p CodeProject
	var description sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&p.ID, &p.UserID, &p.Name, &description, &p.Language, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CodeProject{}, ErrNotFound
		}
		return CodeProject{}, fmt.Errorf("get code project: %w", err)
	}
	if description.Valid {
		p.Description = &description.String
	}
	return p, nil
}

func (s *Store) ListCodeProjects(ctx context.Context, userID int64) ([]CodeProject, error) {
	q := s.sql.Select(codeProjectColumns).
		From("code_projects").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("updated_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list code projects query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list code projects: %w", err)
	}
	defer rows.Close()

	out := make([]CodeProject, 0)
	for rows.Next() {
		var p CodeProject
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &description, &p.Language, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan code project row: %w", err)
		}
		if description.Valid {
			p.Description = &description.String
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate code project rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateCodeProject(ctx context.Context, id, userID int64, upd CodeProjectUpdate) error {
	q := s.sql.Update("code_projects").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "user_id": userID})
	if upd.Name != nil {
		q = q.Set("name", *upd.Name)
	}
	if upd.Description != nil {
		q = q.Set("description", *upd.Description)
	}
	if upd.Language != nil {
		q = q.Set("language", *upd.Language)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update code project query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update code project: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCodeProject(ctx context.Context, id, userID int64) error {
	if _, err := s.GetCodeProject(ctx, id, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete code project tx: %w", err)
	}
	defer tx.Rollback()

	for _, del := range []sq.DeleteBuilder{
		s.sql.Delete("code_files").Where(sq.Eq{"project_id": id}),
		s.sql.Delete("code_projects").Where(sq.Eq{"id": id, "user_id": userID}),
	} {
		sqlStr, args, err := del.ToSql()
		if err != nil {
			return fmt.Errorf("build delete code project query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("delete code project: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete code project tx: %w", err)
	}
	return nil
}

func (s *Store) CreateCodeFile(ctx context.Context, projectID int64, filename, content, language string) (CodeFile, error) {
	now := time.Now().UTC()
	q := s.sql.Insert("code_files").
		Columns("project_id", "filename", "content", "language", "created_at", "updated_at").
		Values(projectID, filename, content, language, now, now).
		Suffix("RETURNING id")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return CodeFile{}, fmt.Errorf("build create code file query: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return CodeFile{}, fmt.Errorf("create code file: %w", err)
	}
	return CodeFile{
		ID:        id,
		ProjectID: projectID,
		Filename:  filename,
		Content:   content,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Store) ListCodeFiles(ctx context.Context, projectID int64) ([]CodeFile, error) {
	q := s.sql.Select("id", "project_id", "filename", "content", "language", "created_at", "updated_at").
		From("code_files").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list code files query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list code files: %w", err)
	}
	defer rows.Close()

	out := make([]CodeFile, 0)
	for rows.Next() {
		var f CodeFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.Content, &f.Language, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan code file row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate code file rows: %w", err)
	}
	return out, nil
}
