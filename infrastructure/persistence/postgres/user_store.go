package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ping/domain/user"
	"ping/pkg/auth"
	apperrors "ping/pkg/errors"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, avatar, roles, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.Username, u.PasswordHash, u.Avatar, strings.Join(auth.RoleNames(u.Roles), ","), u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("username already taken")
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByUsername fetches an account by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, avatar, roles, created_at
		 FROM users WHERE username = $1`,
		username,
	)
	return scanUser(row)
}

// ListUsers returns all accounts sorted by username.
func (s *Store) ListUsers(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password_hash, avatar, roles, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, error) {
	u := &user.User{}
	var roles string
	err := row.Scan(&u.Username, &u.PasswordHash, &u.Avatar, &roles, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Roles = auth.ParseRoles(strings.Split(roles, ","))
	return u, nil
}
