package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "ping/pkg/errors"
)

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError maps an error to its HTTP status with a generic JSON body.
// Internal causes never reach the response.
func respondError(w http.ResponseWriter, err error) {
	message := "Internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	respondJSON(w, apperrors.HTTPStatus(err), map[string]any{
		"error":   true,
		"message": message,
	})
}
