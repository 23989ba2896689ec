package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/model"
	"github.com/tallyapp/tally/internal/repository"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// UserStore is the persistence the account service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// TokenIssuer signs session tokens for a user.
type TokenIssuer interface {
	Issue(user *model.User) (string, time.Time, error)
}

// AuthService handles registration, login and identity lookup.
type AuthService struct {
	users  UserStore
	tokens TokenIssuer
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginInput defines input for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is a user with a freshly issued token.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	var errs fieldErrors

	email := NormalizeEmail(input.Email)
	if email == "" {
		errs.add("email", "is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs.add("email", "must be a valid email address")
	}

	if utf8.RuneCountInString(input.Password) < MinPasswordLength {
		errs.add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errs.add("name", "is required")
	}

	if err := errs.err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user_registered", "user_id", user.ID)

	return s.issue(user)
}

// Login checks credentials and signs a token. Unknown email and wrong
// password are reported identically.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.BurnVerify(input.Password)
			s.logger.Info("login_failed", "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login_failed", "reason", "bad_password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("user_logged_in", "user_id", user.ID)

	return s.issue(user)
}

// CurrentUser returns the account behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
