package post

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Post is the minimal post record the pipeline needs: enough to publish a
// PostAdded envelope and to resolve a comment's recipient (the post owner).
// Media storage itself is handled elsewhere; only the URL passes through.
type Post struct {
	ID          string
	Owner       string
	MediaType   string
	MediaURL    string
	Description string
	CreatedAt   time.Time
}

// New creates a post owned by the given user.
func New(owner, mediaType, mediaURL, description string) (*Post, error) {
	if owner == "" {
		return nil, errors.New("owner required")
	}
	return &Post{
		ID:          uuid.New().String(),
		Owner:       owner,
		MediaType:   mediaType,
		MediaURL:    mediaURL,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Comment is a comment on a post.
type Comment struct {
	ID        string
	PostID    string
	Sender    string
	Text      string
	CreatedAt time.Time
}

// NewComment creates a comment by sender on the given post.
func NewComment(postID, sender, text string) (*Comment, error) {
	if postID == "" || sender == "" {
		return nil, errors.New("post id and sender required")
	}
	if text == "" {
		return nil, errors.New("comment text required")
	}
	return &Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}, nil
}
