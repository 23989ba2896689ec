package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tallyapp/tally/internal/auth"
	"github.com/tallyapp/tally/internal/handler/dto"
	"github.com/tallyapp/tally/internal/middleware"
	"github.com/tallyapp/tally/internal/repository"
	"github.com/tallyapp/tally/internal/service"
)

const testSecret = "handler-test-secret-at-least-32-bytes"

// testAPI wires real services over an in-memory store behind a chi router
// shaped like the production one.
type testAPI struct {
	router *chi.Mux
	store  *repository.MemoryStore
	auth   *service.AuthService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := discardLogger()
	store := repository.NewMemoryStore()
	issuer := auth.NewTokenIssuer(testSecret, "tally-test", time.Hour)
	authSvc := service.NewAuthService(store, issuer, logger)
	expenseSvc := service.NewExpenseService(store, nil, nil, nil, logger)

	h := New()
	authHandler := NewAuthHandler(authSvc, logger)
	expenseHandler := NewExpenseHandler(expenseSvc, logger)
	requireAuth := middleware.Auth(middleware.AuthConfig{Logger: logger, Tokens: issuer, Users: store})

	r := chi.NewRouter()
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.With(requireAuth).Get("/auth/me", authHandler.Me)

		r.Route("/expenses", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", expenseHandler.Create)
			r.Get("/", expenseHandler.List)
			r.Get("/summary", expenseHandler.Summary)
			r.Get("/{id}", expenseHandler.Get)
			r.Put("/{id}", expenseHandler.Update)
			r.Patch("/{id}", expenseHandler.Update)
			r.Delete("/{id}", expenseHandler.Delete)
		})
	})

	return &testAPI{router: r, store: store, auth: authSvc}
}

// register creates a user and returns its ID and bearer token.
func (a *testAPI) register(t *testing.T, email string) (string, string) {
	t.Helper()
	result, err := a.auth.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Password: "secret-pass",
		Name:     "Test User",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return result.User.ID, result.Token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (a *testAPI) createExpense(t *testing.T, token string, body map[string]any) dto.ExpenseResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/expenses", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[dto.ExpenseEnvelope](t, rec).Expense
}
