package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// EngineRegistry registers active engine ids and publishes a TTL'd status
// blob per engine, supporting discovery of a handful of concurrent engines
// sharing one Redis instance.
type EngineRegistry struct {
	rdb *redis.Client
}

// NewEngineRegistry creates an EngineRegistry backed by the given Client.
func NewEngineRegistry(c *Client) *EngineRegistry {
	return &EngineRegistry{rdb: c.Underlying()}
}

// Register marks engineID as active and writes an initial heartbeat.
func (r *EngineRegistry) Register(ctx context.Context, engineID string, status map[string]any, ttl time.Duration) error {
	if err := r.rdb.SAdd(ctx, key("engines"), engineID).Err(); err != nil {
		return fmt.Errorf("redis: register engine: %w", err)
	}
	return r.Heartbeat(ctx, engineID, status, ttl)
}

// Heartbeat updates the engine's status blob with a TTL. Stale engines
// disappear from status lookups when their heartbeat lapses.
func (r *EngineRegistry) Heartbeat(ctx context.Context, engineID string, status map[string]any, ttl time.Duration) error {
	payload := make(map[string]any, len(status)+2)
	for k, v := range status {
		payload[k] = v
	}
	payload["engine_id"] = engineID
	payload["ts"] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("redis: marshal heartbeat: %w", err)
	}
	if err := r.rdb.Set(ctx, key(engineID, "status"), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: heartbeat: %w", err)
	}
	return nil
}

// ListEngines returns the registered engine ids (may include stale ids).
func (r *EngineRegistry) ListEngines(ctx context.Context) ([]string, error) {
	members, err := r.rdb.SMembers(ctx, key("engines")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list engines: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// GetStatus returns the last heartbeat status for an engine, or nil when the
// heartbeat has expired.
func (r *EngineRegistry) GetStatus(ctx context.Context, engineID string) (map[string]any, error) {
	raw, err := r.rdb.Get(ctx, key(engineID, "status")).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get status: %w", err)
	}
	var status map[string]any
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("redis: unmarshal status: %w", err)
	}
	return status, nil
}
