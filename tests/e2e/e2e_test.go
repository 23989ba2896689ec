//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tallyapp/tally/internal/repository"
)

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type expenseResponse struct {
	ID       string  `json:"id"`
	Owner    string  `json:"owner"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Date     string  `json:"date"`
	Note     string  `json:"note"`
}

type expenseEnvelope struct {
	Message string          `json:"message"`
	Expense expenseResponse `json:"expense"`
}

type expenseList struct {
	Expenses   []expenseResponse `json:"expenses"`
	Pagination struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
}

func baseURL() string {
	return strings.TrimRight(envOrDefault("API_BASE_URL", "http://localhost:8080"), "/")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano())
}

func register(t *testing.T, prefix string) authResponse {
	t.Helper()

	var out authResponse
	status := doJSON(t, http.MethodPost, baseURL()+"/api/v1/auth/register", "", map[string]string{
		"email":    uniqueEmail(prefix),
		"password": "e2e-password",
		"name":     prefix,
	}, &out)
	if status != http.StatusCreated || out.Token == "" {
		t.Fatalf("register %s: status %d", prefix, status)
	}
	return out
}

func createExpense(t *testing.T, token string, body map[string]any) expenseResponse {
	t.Helper()

	var out expenseEnvelope
	status := doJSON(t, http.MethodPost, baseURL()+"/api/v1/expenses", token, body, &out)
	if status != http.StatusCreated {
		t.Fatalf("create expense: status %d", status)
	}
	return out.Expense
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}

// TestE2EExpenseLifecycle records, reads, edits and deletes an expense.
func TestE2EExpenseLifecycle(t *testing.T) {
	alice := register(t, "alice")

	created := createExpense(t, alice.Token, map[string]any{
		"amount":   12.5,
		"category": "Food",
		"date":     "2024-05-10",
		"note":     "lunch",
	})
	if created.Owner != alice.User.ID {
		t.Fatalf("owner = %q, want %q", created.Owner, alice.User.ID)
	}

	expenseURL := baseURL() + "/api/v1/expenses/" + created.ID

	var patched expenseEnvelope
	if status := doJSON(t, http.MethodPatch, expenseURL, alice.Token, map[string]any{"amount": 15}, &patched); status != http.StatusOK {
		t.Fatalf("patch: status %d", status)
	}
	if patched.Expense.Amount != 15 || patched.Expense.Category != "Food" || patched.Expense.Note != "lunch" {
		t.Errorf("patch changed more than the amount: %+v", patched.Expense)
	}

	var fetched expenseEnvelope
	if status := doJSON(t, http.MethodGet, expenseURL, alice.Token, nil, &fetched); status != http.StatusOK {
		t.Fatalf("get: status %d", status)
	}
	if fetched.Expense.Amount != 15 {
		t.Errorf("amount after reload = %v, want 15", fetched.Expense.Amount)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		assertStored(t, dbURL, created.ID, alice.User.ID)
	}

	if status := doJSON(t, http.MethodDelete, expenseURL, alice.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	if status := doJSON(t, http.MethodGet, expenseURL, alice.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", status)
	}
}

// assertStored checks the row directly in PostgreSQL.
func assertStored(t *testing.T, dbURL, id, ownerID string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	stored, err := repo.GetExpense(ctx, id, ownerID)
	if err != nil {
		t.Fatalf("expense not in database: %v", err)
	}
	if stored.OwnerID != ownerID {
		t.Errorf("stored owner = %q, want %q", stored.OwnerID, ownerID)
	}
}

// TestE2ETenantIsolation checks that one user can never see or touch
// another user's expenses.
func TestE2ETenantIsolation(t *testing.T) {
	alice := register(t, "iso-alice")
	bob := register(t, "iso-bob")

	aliceExpense := createExpense(t, alice.Token, map[string]any{"amount": 30, "category": "Shopping"})
	createExpense(t, bob.Token, map[string]any{"amount": 7, "category": "Transport"})

	var bobList expenseList
	if status := doJSON(t, http.MethodGet, baseURL()+"/api/v1/expenses?limit=100", bob.Token, nil, &bobList); status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	for _, e := range bobList.Expenses {
		if e.Owner != bob.User.ID {
			t.Errorf("bob sees expense owned by %q", e.Owner)
		}
	}

	expenseURL := baseURL() + "/api/v1/expenses/" + aliceExpense.ID
	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		var body any
		if method == http.MethodPatch {
			body = map[string]any{"amount": 0}
		}
		if status := doJSON(t, method, expenseURL, bob.Token, body, nil); status != http.StatusNotFound {
			t.Errorf("%s on foreign expense: status %d, want 404", method, status)
		}
	}

	var still expenseEnvelope
	if status := doJSON(t, http.MethodGet, expenseURL, alice.Token, nil, &still); status != http.StatusOK || still.Expense.Amount != 30 {
		t.Errorf("alice's expense changed: status %d amount %v", status, still.Expense.Amount)
	}
}

// TestE2ESummaryMatchesList checks the summary totals against the full list.
func TestE2ESummaryMatchesList(t *testing.T) {
	user := register(t, "summary")

	createExpense(t, user.Token, map[string]any{"amount": 10, "category": "Food"})
	createExpense(t, user.Token, map[string]any{"amount": 50, "category": "Food"})
	createExpense(t, user.Token, map[string]any{"amount": "25.25", "category": "Utilities"})

	var summary map[string]float64
	if status := doJSON(t, http.MethodGet, baseURL()+"/api/v1/expenses/summary", user.Token, nil, &summary); status != http.StatusOK {
		t.Fatalf("summary: status %d", status)
	}

	want := map[string]float64{"Food": 60, "Utilities": 25.25}
	if len(summary) != len(want) {
		t.Errorf("summary = %v, want %v", summary, want)
	}
	for category, total := range want {
		if summary[category] != total {
			t.Errorf("%s = %v, want %v", category, summary[category], total)
		}
	}

	// A write must not be hidden by a cached summary.
	createExpense(t, user.Token, map[string]any{"amount": 5, "category": "Food"})
	if status := doJSON(t, http.MethodGet, baseURL()+"/api/v1/expenses/summary", user.Token, nil, &summary); status != http.StatusOK {
		t.Fatalf("summary: status %d", status)
	}
	if summary["Food"] != 65 {
		t.Errorf("Food after new expense = %v, want 65", summary["Food"])
	}
}

// TestE2EPagination walks every page and checks nothing repeats.
func TestE2EPagination(t *testing.T) {
	user := register(t, "pages")

	for day := 1; day <= 7; day++ {
		createExpense(t, user.Token, map[string]any{"amount": day, "date": fmt.Sprintf("2024-02-%02d", day)})
	}

	seen := make(map[string]bool)
	var last string
	for page := 1; page <= 3; page++ {
		var list expenseList
		url := fmt.Sprintf("%s/api/v1/expenses?page=%d&limit=3", baseURL(), page)
		if status := doJSON(t, http.MethodGet, url, user.Token, nil, &list); status != http.StatusOK {
			t.Fatalf("page %d: status %d", page, status)
		}
		if list.Pagination.Total != 7 || list.Pagination.TotalPages != 3 {
			t.Errorf("page %d pagination = %+v", page, list.Pagination)
		}
		for _, e := range list.Expenses {
			if seen[e.ID] {
				t.Errorf("expense %s repeated", e.ID)
			}
			seen[e.ID] = true
			if last != "" && e.Date > last {
				t.Errorf("dates out of order: %s after %s", e.Date, last)
			}
			last = e.Date
		}
	}
	if len(seen) != 7 {
		t.Errorf("saw %d expenses across pages, want 7", len(seen))
	}
}

// TestE2ENoSecretsInResponses validates that credentials are never echoed.
func TestE2ENoSecretsInResponses(t *testing.T) {
	user := register(t, "secrets")
	client := &http.Client{Timeout: 10 * time.Second}

	fakeToken := "eyJhbGciOiJIUzI1NiJ9.fake." + strings.Repeat("x", 32)
	for _, token := range []string{fakeToken, user.Token} {
		req, err := http.NewRequest(http.MethodGet, baseURL()+"/api/v1/auth/me", nil)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if strings.Contains(string(body), token) {
			t.Error("SECURITY: response echoed the bearer token")
		}
		if strings.Contains(strings.ToLower(string(body)), "password") {
			t.Error("SECURITY: response mentions the password")
		}
	}
}

// TestE2EAuthRateLimiting hammers login until the per-IP limit applies.
// It runs last because it exhausts the bucket for this client.
func TestE2EAuthRateLimiting(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}
	payload := []byte(`{"email":"nobody@example.com","password":"wrong-pass"}`)

	var limited *http.Response
	for i := 0; i < 50; i++ {
		resp, err := client.Post(baseURL()+"/api/v1/auth/login", "application/json", bytes.NewReader(payload))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = resp
			break
		}
		resp.Body.Close()
	}

	if limited == nil {
		t.Skip("auth rate limiting appears disabled")
	}
	defer limited.Body.Close()

	if limited.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429 response")
	}

	var errResp map[string]any
	if err := json.NewDecoder(limited.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode 429 response: %v", err)
	}
	if errResp["code"] != "RATE_LIMITED" {
		t.Errorf("code = %v, want RATE_LIMITED", errResp["code"])
	}
}
