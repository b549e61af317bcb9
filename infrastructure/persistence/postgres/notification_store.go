package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ping/domain/notification"
	apperrors "ping/pkg/errors"
)

// CreateNotification persists a new unread notification. A missing owner
// surfaces as NotFound via the foreign key, so a fan-out item whose
// recipient no longer exists is skipped by the engine.
func (s *Store) CreateNotification(ctx context.Context, owner, text string) (*notification.Notification, error) {
	n, err := notification.New(owner, text)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, owner, text, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.Owner, n.Text, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.NewNotFound("user not found")
		}
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// NotificationByID fetches a notification by id.
func (s *Store) NotificationByID(ctx context.Context, id string) (*notification.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, text, is_read, created_at
		 FROM notifications WHERE id = $1`,
		id,
	)
	return scanNotification(row)
}

// NotificationsOf returns all notifications owned by a user.
func (s *Store) NotificationsOf(ctx context.Context, owner string) ([]*notification.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT id, owner, text, is_read, created_at
		 FROM notifications WHERE owner = $1 ORDER BY created_at`,
		owner,
	)
}

// UnreadNotificationsOf returns the unread notifications owned by a user.
func (s *Store) UnreadNotificationsOf(ctx context.Context, owner string) ([]*notification.Notification, error) {
	return s.queryNotifications(ctx,
		`SELECT id, owner, text, is_read, created_at
		 FROM notifications WHERE owner = $1 AND is_read = FALSE ORDER BY created_at`,
		owner,
	)
}

// MarkNotificationRead flips a notification to read and returns it.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*notification.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1
		 RETURNING id, owner, text, is_read, created_at`,
		id,
	)
	return scanNotification(row)
}

// DeleteNotification removes a notification.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperrors.NewNotFound("notification not found")
	}
	return nil
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]*notification.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	n := &notification.Notification{}
	err := row.Scan(&n.ID, &n.Owner, &n.Text, &n.IsRead, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("notification not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return n, nil
}
