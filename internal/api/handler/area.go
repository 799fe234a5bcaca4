package handler

import (
	"net/http"

	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/api/response"
	"github.com/wanderpass/portal/internal/auth"
)

type areaData struct {
	Area    string        `json:"area"`
	Title   string        `json:"title"`
	User    *userResponse `json:"user"`
	Role    *string       `json:"role"`
	Actions []string      `json:"actions"`
}

// AreaHandler renders the protected areas behind the route guard.
type AreaHandler struct{}

// NewAreaHandler creates a new AreaHandler.
func NewAreaHandler() *AreaHandler {
	return &AreaHandler{}
}

// Dashboard handles GET /dashboard.
func (h *AreaHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "dashboard", "Your dashboard", []string{"browse-destinations", "start-application"})
}

// Applications handles GET /applications.
func (h *AreaHandler) Applications(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "applications", "Your visa applications", []string{"start-application", "track-application"})
}

// Admin handles GET /admin.
func (h *AreaHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "admin", "Administration", []string{"review-applications", "manage-destinations", "manage-users"})
}

func (h *AreaHandler) render(w http.ResponseWriter, r *http.Request, area, title string, actions []string) {
	requestID := middleware.GetRequestID(r.Context())

	snap, ok := middleware.GetSnapshot(r.Context())
	if !ok || snap.User == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Protected area rendered without a session", requestID)
		return
	}

	data := areaData{
		Area:    area,
		Title:   title,
		User:    &userResponse{ID: snap.User.ID, Email: snap.User.Email, FullName: snap.User.FullName},
		Actions: actions,
	}
	if snap.Role != auth.RoleNone {
		role := string(snap.Role)
		data.Role = &role
	}

	response.Success(w, http.StatusOK, data, requestID)
}
