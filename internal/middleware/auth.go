package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/cache"
	"github.com/tallyapp/tally/internal/metrics"
	"github.com/tallyapp/tally/internal/model"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// IdentityCache remembers verified token identities.
type IdentityCache interface {
	GetIdentity(ctx context.Context, fingerprint string) (*model.AuthContext, error)
	SetIdentity(ctx context.Context, fingerprint string, identity *model.AuthContext, tokenExpiresAt time.Time) error
}

// UserLookup confirms a token's user still exists.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  TokenParser
	Users   UserLookup
	Cache   IdentityCache // optional
	Metrics metrics.Recorder
}

// Auth returns a middleware that authenticates expense and account requests.
// It verifies the bearer JWT, confirms the user still exists, and injects
// the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fail := func(reason string, err error) {
				attrs := []any{
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				if err != nil {
					attrs = append(attrs, slog.String("error", err.Error()))
				}
				cfg.Logger.Warn("authentication_failed", attrs...)
				cfg.Metrics.IncAuthFailure()
				writeAuthError(w)
			}

			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				fail("missing_token", nil)
				return
			}

			claims, err := cfg.Tokens.Parse(token)
			if err != nil {
				fail("invalid_token", err)
				return
			}

			fingerprint := auth.QuickHash(token)

			if cfg.Cache != nil {
				if authCtx, err := cfg.Cache.GetIdentity(r.Context(), fingerprint); err == nil {
					cfg.Logger.Debug("authentication_successful",
						slog.String("user_id", authCtx.UserID),
						slog.Bool("cache_hit", true),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					annotateUser(r.Context(), authCtx.UserID)
					next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
					return
				} else if !errors.Is(err, cache.ErrCacheMiss) {
					cfg.Logger.Warn("identity_cache_read_failed", slog.String("error", err.Error()))
				}
			}

			user, err := cfg.Users.GetUserByID(r.Context(), claims.UserID)
			if err != nil {
				fail("unknown_user", err)
				return
			}

			authCtx := &model.AuthContext{UserID: user.ID, Email: user.Email}

			if cfg.Cache != nil {
				var expiresAt time.Time
				if claims.ExpiresAt != nil {
					expiresAt = claims.ExpiresAt.Time
				}
				if err := cfg.Cache.SetIdentity(r.Context(), fingerprint, authCtx, expiresAt); err != nil {
					cfg.Logger.Warn("identity_cache_write_failed", slog.String("error", err.Error()))
				}
			}

			cfg.Logger.Debug("authentication_successful",
				slog.String("user_id", authCtx.UserID),
				slog.Bool("cache_hit", false),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			annotateUser(r.Context(), authCtx.UserID)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tally"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"invalid or missing token","code":"UNAUTHORIZED"}` + "\n"))
}
