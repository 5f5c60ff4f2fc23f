package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

// UpsertUser creates the user on first sign-in and refreshes profile fields
// plus last_signed_in on every subsequent one. open_id never changes.
func (s *Store) UpsertUser(ctx context.Context, openID string, name, email, loginMethod *string) (User, error) {
	if openID == "" {
		return User{}, fmt.Errorf("open id is empty")
	}
	now := time.Now().UTC()

	q := s.sql.Insert("users").
		Columns("open_id", "name", "email", "login_method", "created_at", "updated_at", "last_signed_in").
		Values(openID, name, email, loginMethod, now, now, now).
		Suffix("ON CONFLICT(open_id) DO UPDATE SET name=COALESCE(excluded.name, users.name), email=COALESCE(excluded.email, users.email), login_method=COALESCE(excluded.login_method, users.login_method), updated_at=excluded.updated_at, last_signed_in=excluded.last_signed_in")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build upsert user query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}

	return s.GetUserByOpenID(ctx, openID)
}

func (s *Store) GetUserByOpenID(ctx context.Context, openID string) (User, error) {
	return s.getUser(ctx, sq.Eq{"open_id": openID})
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

func (s *Store) getUser(ctx context.Context, where sq.Sqlizer) (User, error) {
	q := s.sql.Select("id", "open_id", "name", "email", "login_method", "role", "created_at", "updated_at", "last_signed_in").
		From("users").
		Where(where)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build get user query: %w", err)
	}

	var u User
	var name, email, loginMethod sql.NullString
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&u.ID,
		&u.OpenID,
		&name,
		&email,
		&loginMethod,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastSignedIn,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if name.Valid {
		u.Name = &name.String
	}
	if email.Valid {
		u.Email = &email.String
	}
	if loginMethod.Valid {
		u.LoginMethod = &loginMethod.String
	}
	return u, nil
}
