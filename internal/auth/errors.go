package auth

import "errors"

var (
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("weak password")
	ErrNotFound           = errors.New("identity not found")
	ErrWrongPassword      = errors.New("wrong password")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingName        = errors.New("name is required")
	ErrNoRole             = errors.New("account has no profile")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnsupported        = errors.New("not supported by identity provider")
)

// Message maps an identity error to the text shown to people.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return "This email is already registered."
	case errors.Is(err, ErrInvalidEmail):
		return "Invalid email address."
	case errors.Is(err, ErrWeakPassword):
		return "Password should be at least 6 characters."
	case errors.Is(err, ErrNotFound):
		return "No account found with this email."
	case errors.Is(err, ErrWrongPassword):
		return "Incorrect password."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrMissingName):
		return "Please fill in all required fields."
	case errors.Is(err, ErrNoRole):
		return "No profile found for this account."
	}
	return "An error occurred. Please try again."
}

// Kind is a short label for metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrMissingName):
		return "missing_name"
	case errors.Is(err, ErrNoRole):
		return "no_role"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	}
	return "other"
}
