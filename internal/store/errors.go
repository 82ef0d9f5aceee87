package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

var (
	// ErrDuplicateEmail is returned when an insert collides with an existing email.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrDuplicateUsername is returned when an insert collides with an existing username.
	ErrDuplicateUsername = errors.New("duplicate username")
)

const uniqueViolation = "23505"

func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
