package notification

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification is a durable per-recipient record created by the fanout
// engine. Lifecycle: created unread, optionally marked read, deleted by
// explicit user action. There is no automatic expiry.
type Notification struct {
	ID        string
	Owner     string
	Text      string
	IsRead    bool
	CreatedAt time.Time
}

// New creates an unread notification owned by the given user.
func New(owner, text string) (*Notification, error) {
	if owner == "" {
		return nil, errors.New("owner required")
	}
	return &Notification{
		ID:        uuid.New().String(),
		Owner:     owner,
		Text:      text,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MarkRead flips the notification to read. Idempotent.
func (n *Notification) MarkRead() {
	n.IsRead = true
}
