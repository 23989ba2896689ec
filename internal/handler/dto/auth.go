package dto

import (
	"time"

	"github.com/tallyapp/tally/internal/model"
	"github.com/tallyapp/tally/internal/service"
)

// RegisterRequest represents the request body for creating an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToUserResponse converts a User model. The password hash never leaves.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message   string       `json:"message"`
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// ToAuthResponse converts a service auth result.
func ToAuthResponse(message string, result *service.AuthResult) AuthResponse {
	return AuthResponse{
		Message:   message,
		User:      ToUserResponse(result.User),
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC(),
	}
}

// MeResponse is returned by the current-user endpoint.
type MeResponse struct {
	User UserResponse `json:"user"`
}
