package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ping/domain/friendship"
	apperrors "ping/pkg/errors"
)

// CreateEdge inserts a pending friendship request. The unique index on the
// unordered username pair turns a concurrent duplicate into a Conflict.
func (s *Store) CreateEdge(ctx context.Context, e *friendship.Edge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO friendships (id, sender, receiver, state, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Sender, e.Receiver, string(e.State), e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflict("friendship already exists")
		}
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

// EdgeByID fetches an edge by id.
func (s *Store) EdgeByID(ctx context.Context, id string) (*friendship.Edge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sender, receiver, state, created_at
		 FROM friendships WHERE id = $1`,
		id,
	)
	return scanEdge(row)
}

// UpdateEdge persists an edge's state.
func (s *Store) UpdateEdge(ctx context.Context, e *friendship.Edge) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE friendships SET state = $2 WHERE id = $1`,
		e.ID, string(e.State),
	)
	if err != nil {
		return fmt.Errorf("update friendship: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("friendship not found")
	}
	return nil
}

// DeleteEdge removes an edge. Rejection collapses to deletion, so this is
// both the rejection path and the unfriend path.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM friendships WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("friendship not found")
	}
	return nil
}

// AcceptedEdgesOf returns the accepted edges touching a user, queried
// symmetrically over both endpoints.
func (s *Store) AcceptedEdgesOf(ctx context.Context, username string) ([]*friendship.Edge, error) {
	return s.queryEdges(ctx,
		`SELECT id, sender, receiver, state, created_at
		 FROM friendships
		 WHERE state = $1 AND (sender = $2 OR receiver = $2)
		 ORDER BY created_at`,
		string(friendship.StateAccepted), username,
	)
}

// PendingEdgesFor returns requests awaiting the user's response.
func (s *Store) PendingEdgesFor(ctx context.Context, username string) ([]*friendship.Edge, error) {
	return s.queryEdges(ctx,
		`SELECT id, sender, receiver, state, created_at
		 FROM friendships
		 WHERE state = $1 AND receiver = $2
		 ORDER BY created_at`,
		string(friendship.StatePending), username,
	)
}

// EdgeBetween returns the edge between two users regardless of direction.
func (s *Store) EdgeBetween(ctx context.Context, a, b string) (*friendship.Edge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sender, receiver, state, created_at
		 FROM friendships
		 WHERE LEAST(sender, receiver) = LEAST($1, $2)
		   AND GREATEST(sender, receiver) = GREATEST($1, $2)`,
		a, b,
	)
	return scanEdge(row)
}

// SuggestionsFor returns usernames with no edge to the user, up to limit.
func (s *Store) SuggestionsFor(ctx context.Context, username string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.username
		 FROM users u
		 WHERE u.username <> $1
		   AND NOT EXISTS (
		       SELECT 1 FROM friendships f
		       WHERE (f.sender = u.username AND f.receiver = $1)
		          OR (f.receiver = u.username AND f.sender = $1)
		   )
		 ORDER BY u.username
		 LIMIT $2`,
		username, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]*friendship.Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var out []*friendship.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEdge(row rowScanner) (*friendship.Edge, error) {
	e := &friendship.Edge{}
	var state string
	err := row.Scan(&e.ID, &e.Sender, &e.Receiver, &state, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("friendship not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan friendship: %w", err)
	}
	e.State = friendship.State(state)
	return e, nil
}
