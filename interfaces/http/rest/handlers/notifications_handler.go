package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ping/application/ports"
	"ping/domain/notification"
	"ping/pkg/auth"
	apperrors "ping/pkg/errors"
)

// NotificationsHandler serves the durable notification inbox. Records are
// owner-scoped: every read and mutation checks the caller owns the record
// before touching it.
type NotificationsHandler struct {
	notifications ports.NotificationStore
	logger        *zap.Logger
}

// NewNotificationsHandler creates a notifications handler.
func NewNotificationsHandler(notifications ports.NotificationStore, logger *zap.Logger) *NotificationsHandler {
	return &NotificationsHandler{
		notifications: notifications,
		logger:        logger,
	}
}

// NotificationResponse is the wire shape of a notification record.
type NotificationResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsRead    bool   `json:"isRead"`
	CreatedAt string `json:"createdAt"`
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Text:      n.Text,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

// List returns all of the caller's notifications, oldest first.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	records, err := h.notifications.NotificationsOf(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]NotificationResponse, 0, len(records))
	for _, n := range records {
		out = append(out, toNotificationResponse(n))
	}
	respondJSON(w, http.StatusOK, out)
}

// Unread returns only the caller's unread notifications.
func (h *NotificationsHandler) Unread(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	records, err := h.notifications.UnreadNotificationsOf(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]NotificationResponse, 0, len(records))
	for _, n := range records {
		out = append(out, toNotificationResponse(n))
	}
	respondJSON(w, http.StatusOK, out)
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	record, err := h.owned(r, identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	updated, err := h.notifications.MarkNotificationRead(r.Context(), record.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toNotificationResponse(updated))
}

// Delete removes one of the caller's notifications.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	record, err := h.owned(r, identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.notifications.DeleteNotification(r.Context(), record.ID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// owned fetches the notification from the URL and verifies ownership. A
// record owned by someone else reads as not found, not forbidden, so ids
// cannot be probed.
func (h *NotificationsHandler) owned(r *http.Request, username string) (*notification.Notification, error) {
	record, err := h.notifications.NotificationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if record.Owner != username {
		return nil, apperrors.NewNotFound("notification not found")
	}
	return record, nil
}
