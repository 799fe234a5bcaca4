package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wanderpass/portal/internal/auth"
)

// Meta holds metadata for every API response.
type Meta struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

// ListMeta extends Meta with the item count.
type ListMeta struct {
	Meta
	Total int `json:"total"`
}

// Error represents a structured API error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope is the standard API response wrapper.
type Envelope struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
	Meta  Meta   `json:"meta"`
}

// ListEnvelope is the response wrapper for list endpoints.
type ListEnvelope struct {
	Data  any      `json:"data"`
	Error *Error   `json:"error"`
	Meta  ListMeta `json:"meta"`
}

// Navigation tells the browser where to go next and what to show on arrival.
// RedirectTo is empty when the user should stay on the current page.
type Navigation struct {
	RedirectTo string        `json:"redirectTo"`
	Notices    []auth.Notice `json:"notices"`
}

// NewMeta creates a Meta with a new UUID and current timestamp.
// If requestID is provided, it uses that instead of generating a new one.
func NewMeta(requestID string) Meta {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return Meta{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// JSON writes a JSON response with the given status code and value.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Success writes a successful JSON response.
func Success(w http.ResponseWriter, status int, data any, requestID string) {
	JSON(w, status, Envelope{Data: data, Meta: NewMeta(requestID)})
}

// SuccessList writes a successful list JSON response.
func SuccessList(w http.ResponseWriter, status int, data any, total int, requestID string) {
	JSON(w, status, ListEnvelope{
		Data: data,
		Meta: ListMeta{Meta: NewMeta(requestID), Total: total},
	})
}

// Err writes an error JSON response.
func Err(w http.ResponseWriter, status int, code string, message string, requestID string) {
	ErrWithDetails(w, status, code, message, nil, requestID)
}

// ErrWithDetails writes an error JSON response with additional details.
func ErrWithDetails(w http.ResponseWriter, status int, code string, message string, details any, requestID string) {
	JSON(w, status, Envelope{
		Error: &Error{Code: code, Message: message, Details: details},
		Meta:  NewMeta(requestID),
	})
}

// Navigate writes an account operation's result. A nil apiErr means success.
func Navigate(w http.ResponseWriter, status int, nav Navigation, apiErr *Error, requestID string) {
	if nav.Notices == nil {
		nav.Notices = []auth.Notice{}
	}
	JSON(w, status, Envelope{Data: nav, Error: apiErr, Meta: NewMeta(requestID)})
}

// Redirect writes a 303 to location carrying the notice to show there.
func Redirect(w http.ResponseWriter, location string, notice *auth.Notice, requestID string) {
	nav := Navigation{RedirectTo: location}
	if notice != nil {
		nav.Notices = []auth.Notice{*notice}
	}
	w.Header().Set("Location", location)
	Navigate(w, http.StatusSeeOther, nav, nil, requestID)
}

// Unavailable writes a 503 asking the client to retry after retryAfter.
func Unavailable(w http.ResponseWriter, retryAfter time.Duration, code, message, requestID string) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	Err(w, http.StatusServiceUnavailable, code, message, requestID)
}
