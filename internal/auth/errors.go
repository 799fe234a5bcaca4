package auth

import (
	"errors"
	"fmt"
)

// ErrProfileNotFound is returned when no profile row exists for a user.
var ErrProfileNotFound = errors.New("profile not found")

// ErrNoSession is returned when an operation needs a session and none is held.
var ErrNoSession = errors.New("no active session")

// ErrSessionChanged is returned when the session was replaced or dropped while a
// refresh was in flight. The refreshed tokens are discarded.
var ErrSessionChanged = errors.New("session changed during refresh")

// ErrorKind classifies failures coming back from the managed backend.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindGeneric
	KindInvalidCredentials
	KindEmailNotConfirmed
	KindUserExists
	KindRoleLookupFailed
	KindSessionTerminationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindGeneric:
		return "generic"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindEmailNotConfirmed:
		return "email_not_confirmed"
	case KindUserExists:
		return "user_exists"
	case KindRoleLookupFailed:
		return "role_lookup_failed"
	case KindSessionTerminationFailed:
		return "session_termination_failed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified backend failure. Adapters build it once; callers switch on Kind.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

// NewError builds an Error for op with the given kind and user-facing message.
func NewError(kind ErrorKind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Unclassified non-nil errors are KindGeneric.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindGeneric
}

// MessageOf returns the user-facing message carried by err, falling back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
