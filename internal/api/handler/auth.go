package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanderpass/portal/internal/account"
	"github.com/wanderpass/portal/internal/api/middleware"
	"github.com/wanderpass/portal/internal/api/response"
	"github.com/wanderpass/portal/internal/api/validation"
	"github.com/wanderpass/portal/internal/auth"
	"github.com/wanderpass/portal/internal/session"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Loading       bool          `json:"loading"`
	User          *userResponse `json:"user"`
	Role          *string       `json:"role"`
	ExpiresAt     *string       `json:"expiresAt"`
}

func toSessionResponse(s auth.Snapshot) sessionResponse {
	out := sessionResponse{
		Authenticated: s.Authenticated(),
		Loading:       s.Loading,
	}
	if s.User != nil {
		out.User = &userResponse{ID: s.User.ID, Email: s.User.Email, FullName: s.User.FullName}
	}
	if s.Role != auth.RoleNone {
		role := string(s.Role)
		out.Role = &role
	}
	if s.Session != nil && !s.Session.ExpiresAt.IsZero() {
		exp := s.Session.ExpiresAt.UTC().Format(time.RFC3339)
		out.ExpiresAt = &exp
	}
	return out
}

// outcomeRecorder collects what the facade shows and where it navigates during one
// request.
type outcomeRecorder struct {
	notices  []auth.Notice
	redirect string
}

func (o *outcomeRecorder) Notify(n auth.Notice) { o.notices = append(o.notices, n) }
func (o *outcomeRecorder) GoTo(path string)     { o.redirect = path }

// AuthHandler serves sign-in, sign-up, sign-out and the session state of the
// calling browser.
type AuthHandler struct {
	roles       account.RoleLookup
	loadTimeout time.Duration
}

// NewAuthHandler creates a new AuthHandler. GET /auth/session waits up to
// loadTimeout for a fresh session store to finish loading.
func NewAuthHandler(roles account.RoleLookup, loadTimeout time.Duration) *AuthHandler {
	return &AuthHandler{roles: roles, loadTimeout: loadTimeout}
}

// SignIn handles POST /auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req signInRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	if errs := validation.ValidateSignInRequest(validation.SignInRequest{Email: req.Email, Password: req.Password}); len(errs) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, requestID)
		return
	}

	renewal, rec := h.beginRenewal(w, r, requestID)
	if renewal == nil {
		return
	}
	outcome := h.facade(renewal.Entry, rec).SignIn(r.Context(), req.Email, req.Password)
	if outcome.OK() {
		renewal.Commit(w)
	} else {
		renewal.Discard()
	}
	writeOutcome(w, outcome, rec, requestID)
}

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req signUpRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}
	errs := validation.ValidateSignUpRequest(validation.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if len(errs) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, requestID)
		return
	}

	// Backends without email confirmation sign the new account in right away.
	renewal, rec := h.beginRenewal(w, r, requestID)
	if renewal == nil {
		return
	}
	outcome := h.facade(renewal.Entry, rec).SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if outcome.OK() && renewal.Entry.Store.Snapshot().Authenticated() {
		renewal.Commit(w)
	} else {
		renewal.Discard()
	}
	writeOutcome(w, outcome, rec, requestID)
}

// SignOut handles POST /auth/signout.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	entry, rec := h.begin(w, r, requestID)
	if entry == nil {
		return
	}
	outcome := h.facade(entry, rec).SignOut(r.Context())
	writeOutcome(w, outcome, rec, requestID)
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	entry := middleware.GetSession(r.Context())
	if entry == nil {
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Session unavailable", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.loadTimeout)
	entry.Store.WaitSettled(ctx)
	cancel()

	response.Success(w, http.StatusOK, toSessionResponse(entry.Store.Snapshot()), requestID)
}

func (h *AuthHandler) begin(w http.ResponseWriter, r *http.Request, requestID string) (*session.Entry, *outcomeRecorder) {
	entry := middleware.GetSession(r.Context())
	if entry == nil {
		slog.Error("auth handler used without session middleware", "path", r.URL.Path)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Session unavailable", requestID)
		return nil, nil
	}
	return entry, &outcomeRecorder{}
}

func (h *AuthHandler) beginRenewal(w http.ResponseWriter, r *http.Request, requestID string) (*middleware.Renewal, *outcomeRecorder) {
	renewal := middleware.BeginRenewal(r.Context())
	if renewal == nil {
		slog.Error("auth handler used without session middleware", "path", r.URL.Path)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Session unavailable", requestID)
		return nil, nil
	}
	return renewal, &outcomeRecorder{}
}

func (h *AuthHandler) facade(entry *session.Entry, rec *outcomeRecorder) *account.Facade {
	return account.NewFacade(entry.Client, entry.Client, h.roles, rec, rec)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func writeOutcome(w http.ResponseWriter, outcome account.Outcome, rec *outcomeRecorder, requestID string) {
	nav := response.Navigation{RedirectTo: rec.redirect, Notices: rec.notices}
	if outcome.OK() {
		response.Navigate(w, http.StatusOK, nav, nil, requestID)
		return
	}

	status, code := statusForKind(outcome.Kind)
	message := "Request failed"
	if len(rec.notices) > 0 {
		message = rec.notices[len(rec.notices)-1].Description
	}
	response.Navigate(w, status, nav, &response.Error{Code: code, Message: message}, requestID)
}

func statusForKind(kind auth.ErrorKind) (int, string) {
	switch kind {
	case auth.KindInvalidCredentials:
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case auth.KindEmailNotConfirmed:
		return http.StatusForbidden, "EMAIL_NOT_CONFIRMED"
	case auth.KindUserExists:
		return http.StatusConflict, "USER_EXISTS"
	case auth.KindSessionTerminationFailed:
		return http.StatusBadGateway, "SESSION_TERMINATION_FAILED"
	case auth.KindRoleLookupFailed:
		return http.StatusBadGateway, "ROLE_LOOKUP_FAILED"
	}
	return http.StatusBadGateway, "BACKEND_ERROR"
}
