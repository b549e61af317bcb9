// Package fanout expands event envelopes into per-recipient notifications
// and pushes them to any live connections. Consumption is at-least-once and
// the engine performs no dedup: redelivering an envelope creates the
// notifications again. That is the accepted semantics of this pipeline, not
// an oversight; envelopes carry an event id should a dedup key ever be
// wanted.
package fanout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ping/application/ports"
	"ping/domain/events"
	"ping/pkg/observability"
)

// Notification push types, mirrored by the client.
const (
	TypePost          = "POST"
	TypeFriendRequest = "FRIEND_REQUEST"
	TypeComment       = "COMMENT"
)

// NotifyPayload is the push payload delivered to a recipient's live channel.
type NotifyPayload struct {
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	Text           string `json:"text"`
	NotificationID string `json:"notificationId"`
	IsRead         bool   `json:"isRead"`
	Type           string `json:"type"`
}

// Engine creates notification records and pushes them out. Failures are
// scoped to a single fan-out item: one unresolvable recipient is logged and
// skipped while the rest of the set is still processed.
type Engine struct {
	friends       ports.FriendshipStore
	notifications ports.NotificationStore
	pusher        ports.Pusher
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// NewEngine creates a fanout engine.
func NewEngine(
	friends ports.FriendshipStore,
	notifications ports.NotificationStore,
	pusher ports.Pusher,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Engine {
	return &Engine{
		friends:       friends,
		notifications: notifications,
		pusher:        pusher,
		logger:        logger,
		metrics:       metrics,
	}
}

// HandlePostAdded expands a post event over the sender's accepted edges:
// one notification per edge, the recipient being whichever endpoint is not
// the sender. The sender never receives a notification for their own post.
func (e *Engine) HandlePostAdded(ctx context.Context, event events.PostAdded) error {
	edges, err := e.friends.AcceptedEdgesOf(ctx, event.Sender)
	if err != nil {
		return fmt.Errorf("resolve accepted edges of %s: %w", event.Sender, err)
	}

	for _, edge := range edges {
		recipient, err := edge.OtherParty(event.Sender)
		if err != nil {
			e.logger.Warn("Skipping edge without the sender as endpoint",
				zap.String("edgeID", edge.ID),
				zap.String("sender", event.Sender),
				zap.Error(err),
			)
			continue
		}
		e.notifyOne(ctx, recipient, "New post arrived from:"+event.Sender, event.Sender, event.SenderAvatar, TypePost)
	}
	return nil
}

// HandleFriendRequest notifies the single receiver of a friend request.
func (e *Engine) HandleFriendRequest(ctx context.Context, event events.FriendRequestCreated) error {
	e.notifyOne(ctx, event.Receiver, "New friend request from: "+event.Sender, event.Sender, event.SenderAvatar, TypeFriendRequest)
	return nil
}

// HandleCommentAdded notifies the post owner of a new comment.
func (e *Engine) HandleCommentAdded(ctx context.Context, event events.CommentAdded) error {
	e.notifyOne(ctx, event.Receiver, "New comment arrived from:"+event.Sender, event.Sender, event.SenderAvatar, TypeComment)
	return nil
}

// notifyOne persists one notification and pushes it to the recipient's
// channel. A store failure skips only this item.
func (e *Engine) notifyOne(ctx context.Context, recipient, text, sender, senderAvatar, notifyType string) {
	created, err := e.notifications.CreateNotification(ctx, recipient, text)
	if err != nil {
		e.logger.Warn("Failed to create notification, skipping recipient",
			zap.String("recipient", recipient),
			zap.String("type", notifyType),
			zap.Error(err),
		)
		return
	}
	e.metrics.NotificationsCreated.WithLabelValues(notifyType).Inc()

	destination := "/topic/notifications/" + recipient
	e.pusher.Send(destination, NotifyPayload{
		Username:       sender,
		ProfilePicture: senderAvatar,
		Text:           created.Text,
		NotificationID: created.ID,
		IsRead:         created.IsRead,
		Type:           notifyType,
	})

	e.logger.Info("Notification fanned out",
		zap.String("destination", destination),
		zap.String("type", notifyType),
		zap.String("notificationID", created.ID),
	)
}
