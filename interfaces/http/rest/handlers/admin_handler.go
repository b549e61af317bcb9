package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"ping/application/ports"
	"ping/pkg/auth"
)

// AdminHandler serves administrative reads. Routes using it are mounted
// behind RequireRole(RoleAdmin).
type AdminHandler struct {
	users  ports.UserStore
	logger *zap.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(users ports.UserStore, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger}
}

// ListUsers returns every account with its roles.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(accounts))
	for _, u := range accounts {
		out = append(out, map[string]any{
			"username": u.Username,
			"avatar":   u.Avatar,
			"roles":    auth.RoleNames(u.Roles),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
