package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ping/domain/post"
	apperrors "ping/pkg/errors"
)

const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == foreignKeyViolation
	}
	return false
}

// CreatePost inserts a post.
func (s *Store) CreatePost(ctx context.Context, p *post.Post) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, owner, media_type, media_url, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Owner, p.MediaType, p.MediaURL, p.Description, p.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NewNotFound("user not found")
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// PostByID fetches a post by id.
func (s *Store) PostByID(ctx context.Context, id string) (*post.Post, error) {
	p := &post.Post{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, media_type, media_url, description, created_at
		 FROM posts WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Owner, &p.MediaType, &p.MediaURL, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("post not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return p, nil
}

// CreateComment inserts a comment.
func (s *Store) CreateComment(ctx context.Context, c *post.Comment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, sender, text, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.Sender, c.Text, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NewNotFound("post not found")
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}
