package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/expense-tracker/apiserver/internal/auth"
	"github.com/expense-tracker/apiserver/internal/store"
	"github.com/expense-tracker/apiserver/types"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TokenParser verifies a session token and returns its user id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// UserLookup resolves the user a token belongs to.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (types.User, error)
}

// RequireAuth verifies the session token from the cookie or bearer header and
// attaches the token's user to the request context.
func RequireAuth(tokens TokenParser, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Access denied. Token is missing.")
				return
			}

			userID, err := tokens.Parse(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Token invalid or expired")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusNotFound, "User associated with token not found")
					return
				}
				log.Error().Err(err).Str("user_id", userID).Msg("load token user")
				writeError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireRole lets a request through only when the authenticated user has
// exactly the given role.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized access. User not authenticated.")
				return
			}
			if user.Role != role {
				writeError(w, http.StatusForbidden, "Permission denied for this resource.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one access log line per request to logger.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				event := logger.Info()
				if status >= http.StatusInternalServerError {
					event = logger.Error()
				}
				event.
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
