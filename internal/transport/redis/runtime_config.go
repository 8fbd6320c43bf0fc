package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RuntimeConfig is the Redis-backed per-engine runtime configuration read by
// long-running engines and written by operator tools:
//
//   - algotrader:{engine_id}:watchlist     (set of symbols)
//   - algotrader:{engine_id}:poll_seconds  (string float)
type RuntimeConfig struct {
	rdb *redis.Client
}

// NewRuntimeConfig creates a RuntimeConfig backed by the given Client.
func NewRuntimeConfig(c *Client) *RuntimeConfig {
	return &RuntimeConfig{rdb: c.Underlying()}
}

// GetWatchlist returns the current watchlist, uppercased, sorted, bounded.
func (r *RuntimeConfig) GetWatchlist(ctx context.Context, engineID string, limit int) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, key(engineID, "watchlist")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get watchlist: %w", err)
	}

	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if s := strings.ToUpper(strings.TrimSpace(m)); s != "" {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetWatchlist replaces the watchlist with the given symbols.
func (r *RuntimeConfig) SetWatchlist(ctx context.Context, engineID string, symbols []string) error {
	k := key(engineID, "watchlist")
	if err := r.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis: clear watchlist: %w", err)
	}

	members := make([]any, 0, len(symbols))
	for _, s := range symbols {
		if v := strings.ToUpper(strings.TrimSpace(s)); v != "" {
			members = append(members, v)
		}
	}
	if len(members) == 0 {
		return nil
	}
	if err := r.rdb.SAdd(ctx, k, members...).Err(); err != nil {
		return fmt.Errorf("redis: set watchlist: %w", err)
	}
	return nil
}

// GetPollSeconds returns the polling interval, or def when unset or invalid.
func (r *RuntimeConfig) GetPollSeconds(ctx context.Context, engineID string, def float64) (float64, error) {
	raw, err := r.rdb.Get(ctx, key(engineID, "poll_seconds")).Result()
	if err != nil {
		if err == redis.Nil {
			return def, nil
		}
		return def, fmt.Errorf("redis: get poll seconds: %w", err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return def, nil
	}
	return v, nil
}

// SetPollSeconds sets the polling interval; it must be positive.
func (r *RuntimeConfig) SetPollSeconds(ctx context.Context, engineID string, seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("redis: poll seconds must be > 0, got %v", seconds)
	}
	if err := r.rdb.Set(ctx, key(engineID, "poll_seconds"), strconv.FormatFloat(seconds, 'f', -1, 64), 0).Err(); err != nil {
		return fmt.Errorf("redis: set poll seconds: %w", err)
	}
	return nil
}
