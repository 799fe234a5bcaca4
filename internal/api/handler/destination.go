package handler

import (
	"log/slog"
	"net/http"

	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/api/response"
	"github.com/wanderpass/portal/internal/destination"
)

// DestinationHandler serves the public destinations showcase.
type DestinationHandler struct {
	repo destination.Repository
}

// NewDestinationHandler creates a new DestinationHandler.
func NewDestinationHandler(repo destination.Repository) *DestinationHandler {
	return &DestinationHandler{repo: repo}
}

// List handles GET /destinations.
func (h *DestinationHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	items, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list destinations", "error", err)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load destinations", requestID)
		return
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}
