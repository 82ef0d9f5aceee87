package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/expense-tracker/apiserver/internal/store"
	"github.com/expense-tracker/apiserver/types"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) (bool, error)
}

// TokenIssuer issues session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the result of a successful login.
type Session struct {
	User      types.User
	Token     string
	ExpiresAt time.Time
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
}

func NewUserService(repo UserRepository, hasher PasswordHasher, tokens TokenIssuer) *UserService {
	return &UserService{repo: repo, hasher: hasher, tokens: tokens}
}

// Register creates an account with the default user role.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	return s.CreateAccount(ctx, in, types.RoleUser)
}

// CreateAccount validates the input, checks email then username uniqueness,
// hashes the password and stores the account with the given role.
func (s *UserService) CreateAccount(ctx context.Context, in RegisterInput, role types.Role) (types.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	password := in.Password

	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return types.User{}, ErrMissingFields
	}
	if !emailPattern.MatchString(email) {
		return types.User{}, ErrInvalidEmail
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return types.User{}, ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return types.User{}, ErrPasswordTooLong
	}
	if !role.Valid() {
		return types.User{}, ErrInvalidRole
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check username: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: hashed,
	})
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return types.User{}, ErrEmailTaken
	case errors.Is(err, store.ErrDuplicateUsername):
		return types.User{}, ErrUsernameTaken
	case err != nil:
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login checks the credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return Session{}, ErrMissingFields
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUserNotFound
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of accounts.
func (s *UserService) List(ctx context.Context, page, limit int) ([]types.User, types.Pagination, error) {
	page, limit = normalizePage(page, limit)
	users, total, err := s.repo.List(ctx, pageOffset(page, limit), limit)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return users, types.NewPagination(page, limit, total), nil
}
