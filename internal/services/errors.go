package services

import (
	"errors"

	"github.com/expense-tracker/apiserver/types"
)

// Registration failures. Each is a *types.ValidationError so callers can
// report them as bad input while still matching them with errors.Is.
var (
	ErrMissingFields    = types.NewValidationError("", "All fields are required")
	ErrInvalidEmail     = types.NewValidationError("email", "Invalid email format")
	ErrPasswordTooShort = types.NewValidationError("password", "Password must be at least 6 characters long")
	ErrPasswordTooLong  = types.NewValidationError("password", "Password must be at most 72 bytes long")
	ErrInvalidRole      = types.NewValidationError("role", "Role must be one of: user, admin, superadmin")
	ErrEmailTaken       = types.NewValidationError("email", "Email already registered")
	ErrUsernameTaken    = types.NewValidationError("username", "Username already taken")
)

var (
	// ErrUserNotFound is returned by Login when no account has the email.
	ErrUserNotFound = errors.New("user not registered")
	// ErrInvalidCredentials is returned by Login when the password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoExpenseIDs is returned by BulkDelete for an empty id list.
	ErrNoExpenseIDs = types.NewValidationError("ids", "Please provide an array of expense IDs")
)
