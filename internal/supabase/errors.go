package supabase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wanderpass/portal/internal/auth"
)

// apiError covers both the GoTrue and PostgREST error bodies.
type apiError struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	ErrorName        string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.ErrorName} {
		if s != "" {
			return s
		}
	}
	return ""
}

// classify turns a non-2xx response into an auth.Error. This is the only place
// backend messages are inspected.
func classify(op string, status int, body []byte) *auth.Error {
	// Proxies and gateways answer with HTML or nothing; those fall back to the
	// status text.
	var ae apiError
	if err := json.Unmarshal(body, &ae); err != nil {
		slog.Debug("supabase error body is not JSON", "op", op, "status", status, "error", err)
	}

	message := ae.text()
	if message == "" {
		message = http.StatusText(status)
	}

	return auth.NewError(kindFor(ae.ErrorCode, message), op, message, fmt.Errorf("supabase responded with status %d", status))
}

func kindFor(code, message string) auth.ErrorKind {
	switch code {
	case "invalid_credentials":
		return auth.KindInvalidCredentials
	case "email_not_confirmed":
		return auth.KindEmailNotConfirmed
	case "user_already_exists", "email_exists":
		return auth.KindUserExists
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "invalid login credentials"):
		return auth.KindInvalidCredentials
	case strings.Contains(lower, "email not confirmed"):
		return auth.KindEmailNotConfirmed
	case strings.Contains(lower, "already registered"):
		return auth.KindUserExists
	}
	return auth.KindGeneric
}
