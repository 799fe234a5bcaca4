package validation

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	minPasswordLength = 6
	maxPasswordLength = 72
	maxNameLength     = 255
)

// SignInRequest mirrors the fields needed for sign-in validation.
type SignInRequest struct {
	Email    string
	Password string
}

// ValidateSignInRequest validates the fields of a sign-in request. Password
// strength is not checked here; the backend decides whether credentials match.
func ValidateSignInRequest(req SignInRequest) []FieldError {
	var errs []FieldError
	errs = appendEmailErrors(errs, req.Email)
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// SignUpRequest mirrors the fields needed for sign-up validation.
type SignUpRequest struct {
	Email    string
	Password string
	FullName string
}

// ValidateSignUpRequest validates the fields of a sign-up request.
func ValidateSignUpRequest(req SignUpRequest) []FieldError {
	var errs []FieldError
	errs = appendEmailErrors(errs, req.Email)

	switch {
	case req.Password == "":
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	case len(req.Password) < minPasswordLength:
		errs = append(errs, FieldError{Field: "password", Message: "password must be at least 6 characters"})
	case len(req.Password) > maxPasswordLength:
		errs = append(errs, FieldError{Field: "password", Message: "password must be at most 72 bytes"})
	}

	name := strings.TrimSpace(req.FullName)
	if name == "" {
		errs = append(errs, FieldError{Field: "fullName", Message: "fullName is required"})
	} else if len(name) > maxNameLength {
		errs = append(errs, FieldError{Field: "fullName", Message: "fullName must be at most 255 characters"})
	}

	return errs
}

func appendEmailErrors(errs []FieldError, email string) []FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	if !emailRegex.MatchString(email) {
		return append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}
	return errs
}
