package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ping/application/ports"
	"ping/application/services"
	"ping/domain/events"
	"ping/domain/post"
	"ping/pkg/auth"
	apperrors "ping/pkg/errors"
)

// PostsHandler serves post and comment creation. Both persist the record
// first and then publish the envelope; the comment path resolves its single
// recipient (the post owner) before publishing, so the consumer never needs
// a post lookup.
type PostsHandler struct {
	users    ports.UserStore
	posts    ports.PostStore
	producer *services.EventProducer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPostsHandler creates a posts handler.
func NewPostsHandler(users ports.UserStore, posts ports.PostStore, producer *services.EventProducer, logger *zap.Logger) *PostsHandler {
	return &PostsHandler{
		users:    users,
		posts:    posts,
		producer: producer,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreatePostBody is the payload for creating a post.
type CreatePostBody struct {
	MediaType   string `json:"mediaType" validate:"omitempty,oneof=IMAGE VIDEO"`
	MediaURL    string `json:"mediaUrl" validate:"omitempty,url"`
	Description string `json:"description" validate:"max=2048"`
}

// CreateCommentBody is the payload for commenting on a post.
type CreateCommentBody struct {
	Text string `json:"text" validate:"required,max=1024"`
}

// Create persists a post and publishes a PostAdded envelope carrying the
// sender's avatar, so fan-out needs no user lookup.
func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}

	var req CreatePostBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, apperrors.NewValidation("invalid post payload"))
		return
	}

	sender, err := h.users.UserByUsername(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}

	p, err := post.New(sender.Username, req.MediaType, req.MediaURL, req.Description)
	if err != nil {
		respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	if err := h.posts.CreatePost(r.Context(), p); err != nil {
		respondError(w, err)
		return
	}

	h.producer.PostAdded(r.Context(), events.NewPostAdded(
		sender.Username, sender.Avatar, p.MediaType, p.MediaURL, p.Description,
	))

	h.logger.Info("Post created",
		zap.String("owner", sender.Username),
		zap.String("post_id", p.ID),
	)
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":          p.ID,
		"owner":       p.Owner,
		"mediaType":   p.MediaType,
		"mediaUrl":    p.MediaURL,
		"description": p.Description,
	})
}

// Comment persists a comment and publishes a CommentAdded envelope addressed
// to the post owner. Commenting on your own post still publishes and still
// notifies the owner.
func (h *PostsHandler) Comment(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}

	var req CreateCommentBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, apperrors.NewValidation("comment text required"))
		return
	}

	target, err := h.posts.PostByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	sender, err := h.users.UserByUsername(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	owner, err := h.users.UserByUsername(r.Context(), target.Owner)
	if err != nil {
		respondError(w, err)
		return
	}

	c, err := post.NewComment(target.ID, sender.Username, req.Text)
	if err != nil {
		respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	if err := h.posts.CreateComment(r.Context(), c); err != nil {
		respondError(w, err)
		return
	}

	h.producer.CommentAdded(r.Context(), events.NewCommentAdded(
		c.ID, sender.Username, sender.Avatar, owner.Username, owner.Avatar, c.Text,
	))

	h.logger.Info("Comment created",
		zap.String("sender", sender.Username),
		zap.String("post_id", target.ID),
	)
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":     c.ID,
		"postId": c.PostID,
		"sender": c.Sender,
		"text":   c.Text,
	})
}
