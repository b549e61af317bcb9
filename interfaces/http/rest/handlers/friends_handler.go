package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ping/application/ports"
	"ping/application/services"
	"ping/domain/events"
	"ping/domain/friendship"
	"ping/pkg/auth"
	apperrors "ping/pkg/errors"
)

// FriendsHandler serves the social graph: sending and answering friend
// requests, listing edges and suggesting new connections. Sending a request
// persists the edge and then publishes a FriendRequestCreated envelope; the
// notification itself is created downstream by the fan-out pipeline.
type FriendsHandler struct {
	users    ports.UserStore
	friends  ports.FriendshipStore
	producer *services.EventProducer
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFriendsHandler creates a friends handler.
func NewFriendsHandler(users ports.UserStore, friends ports.FriendshipStore, producer *services.EventProducer, logger *zap.Logger) *FriendsHandler {
	return &FriendsHandler{
		users:    users,
		friends:  friends,
		producer: producer,
		validate: validator.New(),
		logger:   logger,
	}
}

// SendRequestBody is the payload for creating a friend request.
type SendRequestBody struct {
	Receiver string `json:"receiver" validate:"required"`
}

// RespondRequestBody is the payload for answering a pending request.
type RespondRequestBody struct {
	Accept bool `json:"accept"`
}

// EdgeResponse is the wire shape of a friendship edge.
type EdgeResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	State     string `json:"state"`
	CreatedAt string `json:"createdAt"`
}

func toEdgeResponse(e *friendship.Edge) EdgeResponse {
	return EdgeResponse{
		ID:        e.ID,
		Sender:    e.Sender,
		Receiver:  e.Receiver,
		State:     string(e.State),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// SendRequest creates a pending edge from the caller to the receiver and
// publishes the corresponding envelope.
func (h *FriendsHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}

	var req SendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, apperrors.NewValidation("receiver required"))
		return
	}

	sender, err := h.users.UserByUsername(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	receiver, err := h.users.UserByUsername(r.Context(), req.Receiver)
	if err != nil {
		respondError(w, err)
		return
	}

	edge, err := friendship.NewEdge(sender.Username, receiver.Username)
	if err != nil {
		respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	if err := h.friends.CreateEdge(r.Context(), edge); err != nil {
		respondError(w, err)
		return
	}

	h.producer.FriendRequestCreated(r.Context(), events.NewFriendRequestCreated(
		edge.ID, sender.Username, receiver.Username, sender.Avatar, receiver.Avatar,
	))

	h.logger.Info("Friend request sent",
		zap.String("sender", sender.Username),
		zap.String("receiver", receiver.Username),
	)
	respondJSON(w, http.StatusCreated, toEdgeResponse(edge))
}

// Respond answers a pending request. Accepting transitions the edge;
// declining deletes it, leaving the pair free to try again later.
func (h *FriendsHandler) Respond(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}

	var req RespondRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidation("invalid request body"))
		return
	}

	edge, err := h.friends.EdgeByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}

	if !req.Accept {
		if edge.Receiver != identity.Username {
			respondError(w, apperrors.NewForbidden("only the receiver can respond"))
			return
		}
		if edge.State != friendship.StatePending {
			respondError(w, apperrors.NewConflict("friendship is not pending"))
			return
		}
		if err := h.friends.DeleteEdge(r.Context(), edge.ID); err != nil {
			respondError(w, err)
			return
		}
		h.logger.Info("Friend request declined",
			zap.String("receiver", identity.Username),
			zap.String("sender", edge.Sender),
		)
		respondJSON(w, http.StatusNoContent, nil)
		return
	}

	if err := edge.Accept(identity.Username); err != nil {
		switch {
		case errors.Is(err, friendship.ErrReceiverOnly):
			respondError(w, apperrors.NewForbidden("only the receiver can respond"))
		case errors.Is(err, friendship.ErrNotPending):
			respondError(w, apperrors.NewConflict("friendship is not pending"))
		default:
			respondError(w, apperrors.NewInternal("could not accept request").WithCause(err))
		}
		return
	}
	if err := h.friends.UpdateEdge(r.Context(), edge); err != nil {
		respondError(w, err)
		return
	}

	h.logger.Info("Friend request accepted",
		zap.String("receiver", identity.Username),
		zap.String("sender", edge.Sender),
	)
	respondJSON(w, http.StatusOK, toEdgeResponse(edge))
}

// List returns the caller's accepted edges.
func (h *FriendsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	edges, err := h.friends.AcceptedEdgesOf(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]EdgeResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, toEdgeResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

// Pending returns requests waiting for the caller's answer.
func (h *FriendsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	edges, err := h.friends.PendingEdgesFor(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]EdgeResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, toEdgeResponse(e))
	}
	respondJSON(w, http.StatusOK, out)
}

// Suggestions returns usernames the caller has no edge with.
func (h *FriendsHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	names, err := h.friends.SuggestionsFor(r.Context(), identity.Username, 20)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

// Unfriend deletes an accepted edge the caller participates in.
func (h *FriendsHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	edge, err := h.friends.EdgeByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	if _, err := edge.OtherParty(identity.Username); err != nil {
		respondError(w, apperrors.NewForbidden("not a participant of this friendship"))
		return
	}
	if err := h.friends.DeleteEdge(r.Context(), edge.ID); err != nil {
		respondError(w, err)
		return
	}
	h.logger.Info("Friendship removed",
		zap.String("username", identity.Username),
		zap.String("edge_id", edge.ID),
	)
	respondJSON(w, http.StatusNoContent, nil)
}
