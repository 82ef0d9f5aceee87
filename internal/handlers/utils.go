package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/expense-tracker/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Message: message})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Success: true, Message: message})
}

// writeValidationError reports err as 400 when it is a validation failure and
// returns false otherwise.
func writeValidationError(w http.ResponseWriter, err error) bool {
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Success: false,
		Message: verr.Error(),
		Errors:  verr.Fields,
	})
	return true
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// parsePagination reads page and limit. Missing, non-numeric or non-positive
// values fall back to the defaults and limit is capped.
func parsePagination(r *http.Request) (page, limit int) {
	page = positiveInt(r.URL.Query().Get("page"), defaultPage)
	limit = positiveInt(r.URL.Query().Get("limit"), defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func positiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Errors  []types.FieldError `json:"errors"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
