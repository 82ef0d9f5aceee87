package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/expense-tracker/apiserver/internal/services"
	"github.com/expense-tracker/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SessionCookies writes and clears the session cookie.
type SessionCookies interface {
	SetCookie(w http.ResponseWriter, token string, expiresAt time.Time)
	ClearCookie(w http.ResponseWriter)
}

// AuthHandler provides account and session endpoints.
type AuthHandler struct {
	userService *services.UserService
	cookies     SessionCookies
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, cookies SessionCookies) *AuthHandler {
	return &AuthHandler{userService: userService, cookies: cookies}
}

// AuthRouter registers account routes on the given router.
func AuthRouter(
	r chi.Router,
	userService *services.UserService,
	cookies SessionCookies,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAuthHandler(userService, cookies)

	r.Post("/signup", handler.Signup)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(authMiddleware).Get("/me", handler.Me)
	r.With(authMiddleware, RequireRole(types.RoleAdmin)).Get("/users", handler.ListUsers)
}

// Signup registers a new account with the user role.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := h.userService.Register(r.Context(), req); err != nil {
		if writeValidationError(w, err) {
			return
		}
		log.Error().Err(err).Msg("register user")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeMessage(w, http.StatusCreated, "User registered successfully")
}

// Login verifies credentials, sets the session cookie and returns the token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.userService.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not registered")
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusNotFound, "Invalid credentials")
		return
	case err != nil:
		if writeValidationError(w, err) {
			return
		}
		log.Error().Err(err).Msg("login")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	h.cookies.SetCookie(w, session.Token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		User:    LoginUser{User: session.User},
		Token:   session.Token,
	})
}

// Logout clears the session cookie. Tokens are not revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearCookie(w)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized access. User not authenticated.")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Success: true, User: user})
}

func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	users, pagination, err := h.userService.List(r.Context(), page, limit)
	if err != nil {
		log.Error().Err(err).Msg("list users")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, UserListResponse{Success: true, Users: users, Pagination: pagination})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginUser is the user as returned by login, with the password blanked.
type LoginUser struct {
	types.User
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool      `json:"success"`
	User    LoginUser `json:"user"`
	Token   string    `json:"token"`
}

type UserResponse struct {
	Success bool       `json:"success"`
	User    types.User `json:"user"`
}

type UserListResponse struct {
	Success    bool             `json:"success"`
	Users      []types.User     `json:"users"`
	Pagination types.Pagination `json:"pagination"`
}
