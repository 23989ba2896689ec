// Package model defines domain entities for the application.
package model

import "time"

// User is an account that owns expenses.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never serialize
	CreatedAt    time.Time `json:"createdAt"`
}

// AuthContext holds the identity resolved from a bearer token.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID string
	Email  string
}
