package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics, one per event type. A single consumer group id is shared across
// all three.
const (
	TopicPostAdded     = "post-add-event"
	TopicFriendRequest = "friend-request-event"
	TopicCommentAdded  = "comment-event"
)

// Topics lists every topic the pipeline consumes.
func Topics() []string {
	return []string{TopicPostAdded, TopicFriendRequest, TopicCommentAdded}
}

// Base carries the fields common to every envelope. Envelopes are immutable
// once published. EventID exists so a dedup key could be built from it; the
// pipeline deliberately does not use it for suppression (delivery is
// at-least-once and duplicates may double-notify).
type Base struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// GetEventID returns the envelope's unique id.
func (b Base) GetEventID() string { return b.EventID }

// GetOccurredAt returns the publish timestamp.
func (b Base) GetOccurredAt() time.Time { return b.OccurredAt }

func newBase() Base {
	return Base{
		EventID:    uuid.New().String(),
		OccurredAt: time.Now().UTC(),
	}
}

// PostAdded is published when a user creates a post. Resolving its recipient
// set requires a graph expansion over the sender's accepted edges.
type PostAdded struct {
	Base
	Sender       string `json:"sender"`
	SenderAvatar string `json:"sender_picture"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	Description  string `json:"description"`
}

// NewPostAdded creates a PostAdded envelope.
func NewPostAdded(sender, senderAvatar, mediaType, mediaURL, description string) PostAdded {
	return PostAdded{
		Base:         newBase(),
		Sender:       sender,
		SenderAvatar: senderAvatar,
		MediaType:    mediaType,
		MediaURL:     mediaURL,
		Description:  description,
	}
}

// FriendRequestCreated is published when a friendship request is persisted.
// The envelope is self-contained: the single recipient is the receiver.
type FriendRequestCreated struct {
	Base
	FriendshipID   string `json:"friendship_id"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	SenderAvatar   string `json:"sender_picture"`
	ReceiverAvatar string `json:"receiver_picture"`
}

// NewFriendRequestCreated creates a FriendRequestCreated envelope.
func NewFriendRequestCreated(friendshipID, sender, receiver, senderAvatar, receiverAvatar string) FriendRequestCreated {
	return FriendRequestCreated{
		Base:           newBase(),
		FriendshipID:   friendshipID,
		Sender:         sender,
		Receiver:       receiver,
		SenderAvatar:   senderAvatar,
		ReceiverAvatar: receiverAvatar,
	}
}

// CommentAdded is published when a comment lands on a post. The single
// recipient is the post owner, resolved before publish.
type CommentAdded struct {
	Base
	CommentID      string `json:"comment_id"`
	Sender         string `json:"sender"`
	SenderAvatar   string `json:"sender_picture"`
	Receiver       string `json:"receiver"`
	ReceiverAvatar string `json:"receiver_picture"`
	Text           string `json:"text"`
}

// NewCommentAdded creates a CommentAdded envelope.
func NewCommentAdded(commentID, sender, senderAvatar, receiver, receiverAvatar, text string) CommentAdded {
	return CommentAdded{
		Base:           newBase(),
		CommentID:      commentID,
		Sender:         sender,
		SenderAvatar:   senderAvatar,
		Receiver:       receiver,
		ReceiverAvatar: receiverAvatar,
		Text:           text,
	}
}
