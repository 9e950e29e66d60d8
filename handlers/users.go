package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/library/backend/service"
)

type UsersHandler struct {
	Library *service.LibraryService
	Log     *slog.Logger
}

// Profile returns any user's profile by id; the caller only needs a valid access token.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r, chi.URLParam(r, "id"), "user")
	if !ok {
		return
	}
	profile, err := h.Library.Profile(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.Log, err, "Failed to retrieve user profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
