package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/repository"
)

const testSecret = "test-secret-that-is-at-least-32-bytes!"

func newAuthFixture(t *testing.T) (*AuthService, *repository.MemoryStore, *auth.TokenIssuer) {
	t.Helper()
	store := repository.NewMemoryStore()
	issuer := auth.NewTokenIssuer(testSecret, "tally-test", time.Hour)
	return NewAuthService(store, issuer, discardLogger()), store, issuer
}

func TestRegister(t *testing.T) {
	t.Parallel()

	svc, store, issuer := newAuthFixture(t)

	result, err := svc.Register(context.Background(), RegisterInput{
		Email:    "  Alice@Example.com ",
		Password: "hunter22",
		Name:     " Alice ",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if result.User.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", result.User.Email)
	}
	if result.User.Name != "Alice" {
		t.Errorf("Name = %q, want trimmed", result.User.Name)
	}
	if result.User.PasswordHash == "hunter22" || result.User.PasswordHash == "" {
		t.Error("password should be hashed")
	}

	claims, err := issuer.Parse(result.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Errorf("token user = %q, want %q", claims.UserID, result.User.ID)
	}

	if _, err := store.GetUserByEmail(context.Background(), "alice@example.com"); err != nil {
		t.Errorf("user not stored: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     RegisterInput
		wantField string
	}{
		{"missing email", RegisterInput{Password: "secret1", Name: "A"}, "email"},
		{"invalid email", RegisterInput{Email: "not-an-email", Password: "secret1", Name: "A"}, "email"},
		{"display name form", RegisterInput{Email: "A <a@example.com>", Password: "secret1", Name: "A"}, "email"},
		{"short password", RegisterInput{Email: "a@example.com", Password: "12345", Name: "A"}, "password"},
		{"blank name", RegisterInput{Email: "a@example.com", Password: "secret1", Name: "   "}, "name"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := newAuthFixture(t)
			_, err := svc.Register(context.Background(), tt.input)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if !hasField(verr, tt.wantField) {
				t.Errorf("fields = %+v, want %s", verr.Fields, tt.wantField)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "secret1", Name: "Bob"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Email: "BOB@example.com", Password: "secret2", Name: "Bobby"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Email: "carol@example.com", Password: "correct-horse", Name: "Carol"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := svc.Login(ctx, LoginInput{Email: "Carol@Example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.User.ID != registered.User.ID {
		t.Errorf("logged in as %q, want %q", result.User.ID, registered.User.ID)
	}
	if result.Token == "" || result.ExpiresAt.IsZero() {
		t.Error("Login should issue a token")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "dave@example.com", Password: "right-pass", Name: "Dave"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name  string
		input LoginInput
	}{
		{"wrong password", LoginInput{Email: "dave@example.com", Password: "wrong-pass"}},
		{"unknown email", LoginInput{Email: "nobody@example.com", Password: "right-pass"}},
		{"empty", LoginInput{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.input)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	svc, store, _ := newAuthFixture(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Email: "erin@example.com", Password: "secret1", Name: "Erin"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user, err := svc.CurrentUser(ctx, registered.User.ID)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.Email != "erin@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	store.DeleteUser(registered.User.ID)
	if _, err := svc.CurrentUser(ctx, registered.User.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound after delete, got %v", err)
	}
	if _, err := svc.CurrentUser(ctx, ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for empty id, got %v", err)
	}
}
