//go:build integration

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tallyapp/tally/internal/model"
	"github.com/tallyapp/tally/internal/testutil"
)

func TestIntegrationSummaryCache_SetGetInvalidate(t *testing.T) {
	ctx, c := newTestCache(t)
	summaries := NewSummaryCache(c, time.Minute)

	_, gen, err := summaries.GetSummary(ctx, "owner-1")
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	if gen != 0 {
		t.Fatalf("generation = %d, want 0 before any mutation", gen)
	}

	totals := model.CategoryTotals{model.CategoryFood: decimal.RequireFromString("12.34")}
	if err := summaries.SetSummary(ctx, "owner-1", gen, totals); err != nil {
		t.Fatalf("SetSummary failed: %v", err)
	}

	cached, _, err := summaries.GetSummary(ctx, "owner-1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if !cached[model.CategoryFood].Equal(totals[model.CategoryFood]) {
		t.Errorf("cached Food = %s, want 12.34", cached[model.CategoryFood])
	}

	if _, _, err := summaries.GetSummary(ctx, "owner-2"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("other owner should miss, got %v", err)
	}

	if err := summaries.InvalidateSummary(ctx, "owner-1"); err != nil {
		t.Fatalf("InvalidateSummary failed: %v", err)
	}
	_, newGen, err := summaries.GetSummary(ctx, "owner-1")
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after invalidate, got %v", err)
	}
	if newGen != gen+1 {
		t.Errorf("generation = %d, want %d", newGen, gen+1)
	}
}

func TestIntegrationSummaryCache_LateWriteIsIgnored(t *testing.T) {
	ctx, c := newTestCache(t)
	summaries := NewSummaryCache(c, time.Minute)

	// A reader observes the generation, then a mutation invalidates before
	// the reader stores its totals.
	_, readGen, _ := summaries.GetSummary(ctx, "owner-1")
	if err := summaries.InvalidateSummary(ctx, "owner-1"); err != nil {
		t.Fatalf("InvalidateSummary failed: %v", err)
	}
	stale := model.CategoryTotals{model.CategoryFood: decimal.NewFromInt(10)}
	if err := summaries.SetSummary(ctx, "owner-1", readGen, stale); err != nil {
		t.Fatalf("SetSummary failed: %v", err)
	}

	if _, _, err := summaries.GetSummary(ctx, "owner-1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("stale totals were served, err = %v", err)
	}
}

func TestIntegrationIdentityCache_RespectsTokenExpiry(t *testing.T) {
	ctx, c := newTestCache(t)
	identities := NewIdentityCache(c, time.Minute)

	identity := &model.AuthContext{UserID: "u1", Email: "u1@example.com"}
	if err := identities.SetIdentity(ctx, "fp-live", identity, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}
	got, err := identities.GetIdentity(ctx, "fp-live")
	if err != nil {
		t.Fatalf("GetIdentity failed: %v", err)
	}
	if got.UserID != "u1" || got.Email != "u1@example.com" {
		t.Errorf("identity = %+v", got)
	}

	if err := identities.SetIdentity(ctx, "fp-expired", identity, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}
	if _, err := identities.GetIdentity(ctx, "fp-expired"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired token should not be cached, got %v", err)
	}

	if err := identities.DeleteIdentity(ctx, "fp-live"); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	if _, err := identities.GetIdentity(ctx, "fp-live"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected miss after delete, got %v", err)
	}
}

func TestIntegrationRateLimit_UserBucket(t *testing.T) {
	ctx, c := newTestCache(t)

	for i := 0; i < 3; i++ {
		res, err := c.CheckUserRateLimit(ctx, "u1", 60, 3)
		if err != nil {
			t.Fatalf("CheckUserRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckUserRateLimit(ctx, "u1", 60, 3)
	if err != nil {
		t.Fatalf("CheckUserRateLimit failed: %v", err)
	}
	if res.Allowed {
		t.Error("fourth request should be limited")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %s, want > 0", res.RetryAfter)
	}

	other, err := c.CheckUserRateLimit(ctx, "u2", 60, 3)
	if err != nil {
		t.Fatalf("CheckUserRateLimit failed: %v", err)
	}
	if !other.Allowed {
		t.Error("buckets must be per user")
	}
}

func newTestCache(t *testing.T) (context.Context, *Cache) {
	t.Helper()

	ctx := context.Background()
	c, err := New(ctx, testutil.RequireEnv(t, "REDIS_URL"))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
	return ctx, c
}
