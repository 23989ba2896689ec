package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/repository"
	"github.com/tallyapp/tally/internal/service"
)

type output struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Created   bool      `json:"created"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "Secret used to sign tokens")
		email       = flag.String("email", "", "User email")
		password    = flag.String("password", "", "User password (min 6 characters)")
		name        = flag.String("name", "Tally User", "Display name")
		ttl         = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" || *jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL and JWT_SECRET are required")
		os.Exit(1)
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "-email and -password are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	svc := service.NewAuthService(
		repo,
		auth.NewTokenIssuer(*jwtSecret, "tally", *ttl),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	// Existing accounts get a fresh token when the password matches.
	created := true
	result, err := svc.Register(ctx, service.RegisterInput{Email: *email, Password: *password, Name: *name})
	if errors.Is(err, service.ErrEmailExists) {
		created = false
		result, err = svc.Login(ctx, service.LoginInput{Email: *email, Password: *password})
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "create user:", err)
		os.Exit(1)
	}

	out := output{
		UserID:    result.User.ID,
		Email:     result.User.Email,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Created:   created,
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Printf("user_id=%s\nemail=%s\ncreated=%t\ntoken=%s\nexpires_at=%s\n",
		out.UserID, out.Email, out.Created, out.Token, out.ExpiresAt.Format(time.RFC3339))
}
