package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tallyapp/tally/internal/model"
)

// User repository errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const (
	userColumns = `id, email, name, password_hash, created_at`

	insertUserSQL = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5)`
)

// CreateUser stores a new account. Emails are unique.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	_, err := r.pool.Exec(ctx, insertUserSQL,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return ErrEmailExists
	default:
		return fmt.Errorf("insert user: %w", err)
	}
}

// GetUserByID loads an account by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUserBy(ctx, "id", id)
}

// GetUserByEmail loads an account by its normalized email. The lookup is
// exact.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUserBy(ctx, "email", email)
}

// getUserBy selects on a fixed, trusted column name.
func (r *Repository) getUserBy(ctx context.Context, column, value string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	var u model.User
	err := r.pool.QueryRow(ctx, query, value).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return &u, nil
}
