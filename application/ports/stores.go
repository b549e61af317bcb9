// Package ports declares the narrow interfaces the core consumes. The
// collaborators behind them (relational stores, the event bus, the live
// push channel) are external; the core issues single-entity reads and
// writes and relies on each store's own transaction boundary.
package ports

import (
	"context"

	"ping/domain/friendship"
	"ping/domain/notification"
	"ping/domain/post"
	"ping/domain/user"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error
	UserByUsername(ctx context.Context, username string) (*user.User, error)
	ListUsers(ctx context.Context) ([]*user.User, error)
}

// FriendshipStore exposes the social graph: friendship edges and their
// state. It enforces at most one edge per unordered pair of users.
type FriendshipStore interface {
	CreateEdge(ctx context.Context, e *friendship.Edge) error
	EdgeByID(ctx context.Context, id string) (*friendship.Edge, error)
	UpdateEdge(ctx context.Context, e *friendship.Edge) error
	DeleteEdge(ctx context.Context, id string) error
	AcceptedEdgesOf(ctx context.Context, username string) ([]*friendship.Edge, error)
	PendingEdgesFor(ctx context.Context, username string) ([]*friendship.Edge, error)
	EdgeBetween(ctx context.Context, a, b string) (*friendship.Edge, error)
	SuggestionsFor(ctx context.Context, username string, limit int) ([]string, error)
}

// NotificationStore persists per-recipient notification records.
type NotificationStore interface {
	CreateNotification(ctx context.Context, owner, text string) (*notification.Notification, error)
	NotificationByID(ctx context.Context, id string) (*notification.Notification, error)
	NotificationsOf(ctx context.Context, owner string) ([]*notification.Notification, error)
	UnreadNotificationsOf(ctx context.Context, owner string) ([]*notification.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (*notification.Notification, error)
	DeleteNotification(ctx context.Context, id string) error
}

// PostStore persists posts and comments, enough to resolve comment
// recipients.
type PostStore interface {
	CreatePost(ctx context.Context, p *post.Post) error
	PostByID(ctx context.Context, id string) (*post.Post, error)
	CreateComment(ctx context.Context, c *post.Comment) error
}

// Publisher hands an event envelope to the durable event bus. Once the bus
// accepts the message, durability is the bus's responsibility.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Pusher delivers a payload to a live destination. If nobody is connected
// the payload is dropped silently; the notification record is the durable
// fallback.
type Pusher interface {
	Send(destination string, payload any)
}
