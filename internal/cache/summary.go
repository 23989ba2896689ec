package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/tallyapp/tally/internal/model"
)

const (
	summaryKeyPrefix    = "summary:"
	summaryGenKeyPrefix = "summary_gen:"

	// DefaultSummaryTTL bounds staleness if an invalidation is lost.
	DefaultSummaryTTL = 10 * time.Minute

	// summaryGenTTL must outlive every entry written under a generation,
	// otherwise an expired counter could revive an old entry.
	summaryGenTTL = 24 * time.Hour
)

// SummaryCache stores per-owner category totals. Entries are keyed by a
// per-owner generation that every mutation bumps, so a read that computed
// its totals before a mutation can only write to a generation nobody reads.
type SummaryCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewSummaryCache creates a SummaryCache. A non-positive ttl uses
// DefaultSummaryTTL.
func NewSummaryCache(c *Cache, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	if ttl > summaryGenTTL {
		ttl = summaryGenTTL
	}
	return &SummaryCache{cache: c, ttl: ttl}
}

// GetSummary returns the owner's current generation and the totals cached
// under it. On a miss the generation is still returned with ErrCacheMiss;
// callers pass it to SetSummary after computing fresh totals.
func (s *SummaryCache) GetSummary(ctx context.Context, ownerID string) (model.CategoryTotals, int64, error) {
	gen, err := s.generation(ctx, ownerID)
	if err != nil {
		return nil, 0, err
	}

	data, err := s.cache.getBytes(ctx, summaryKey(ownerID, gen))
	if err != nil {
		return nil, gen, err
	}

	totals, err := decodeTotals(data)
	if err != nil {
		// Corrupted entry - treat as miss
		return nil, gen, ErrCacheMiss
	}
	return totals, gen, nil
}

// SetSummary caches totals for owner under generation gen.
func (s *SummaryCache) SetSummary(ctx context.Context, ownerID string, gen int64, totals model.CategoryTotals) error {
	data, err := encodeTotals(totals)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	if err := s.cache.client.Set(ctx, summaryKey(ownerID, gen), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}

// InvalidateSummary bumps the owner's generation. Entries under older
// generations are never read again and expire on their own.
func (s *SummaryCache) InvalidateSummary(ctx context.Context, ownerID string) error {
	key := summaryGenKey(ownerID)
	pipe := s.cache.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, summaryGenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate summary: %w", err)
	}
	return nil
}

func (s *SummaryCache) generation(ctx context.Context, ownerID string) (int64, error) {
	gen, err := s.cache.client.Get(ctx, summaryGenKey(ownerID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read summary generation: %w", err)
	}
	return gen, nil
}

func summaryKey(ownerID string, gen int64) string {
	return summaryKeyPrefix + ownerID + ":" + strconv.FormatInt(gen, 10)
}

func summaryGenKey(ownerID string) string {
	return summaryGenKeyPrefix + ownerID
}

// encodeTotals stores amounts as decimal strings so no precision is lost.
func encodeTotals(totals model.CategoryTotals) ([]byte, error) {
	raw := make(map[string]string, len(totals))
	for category, amount := range totals {
		raw[string(category)] = amount.String()
	}
	return json.Marshal(raw)
}

func decodeTotals(data []byte) (model.CategoryTotals, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	totals := make(model.CategoryTotals, len(raw))
	for category, amount := range raw {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category, err)
		}
		totals[model.Category(category)] = d
	}
	return totals, nil
}
