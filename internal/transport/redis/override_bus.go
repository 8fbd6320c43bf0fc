package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfold/algotrader/internal/domain"
)

// streamMaxLen is the approximate maximum stream length, enforced via
// XADD MAXLEN ~.
const streamMaxLen int64 = 10_000

// OverrideBus carries operator override commands and decision records over
// Redis Streams, one set of streams per engine id:
//
//   - algotrader:{engine_id}:events:override  (operator CLI writes; engine consumes)
//   - algotrader:{engine_id}:events:decision  (engine publishes for observers)
//
// Overrides are consumed through a consumer group and acknowledged on
// delivery: at-least-once is acceptable because every override command is
// idempotent, while unbounded redelivery across engine restarts is not.
type OverrideBus struct {
	rdb      *redis.Client
	engineID string
	group    string
	consumer string
}

// NewOverrideBus creates the bus for the given engine id and ensures the
// override stream's consumer group exists.
func NewOverrideBus(ctx context.Context, c *Client, engineID string) (*OverrideBus, error) {
	host, _ := os.Hostname()
	bus := &OverrideBus{
		rdb:      c.Underlying(),
		engineID: engineID,
		group:    fmt.Sprintf("algotrader:%s", engineID),
		consumer: fmt.Sprintf("%s:%d", host, os.Getpid()),
	}

	err := bus.rdb.XGroupCreateMkStream(ctx, bus.overrideStream(), bus.group, "0-0").Err()
	if err != nil && !isBusyGroup(err) {
		return nil, fmt.Errorf("redis: create consumer group: %w", err)
	}
	return bus, nil
}

func (b *OverrideBus) overrideStream() string {
	return key(b.engineID, "events:override")
}

func (b *OverrideBus) decisionStream() string {
	return key(b.engineID, "events:decision")
}

// isBusyGroup matches the BUSYGROUP error returned when the consumer group
// already exists.
func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// PublishOverride appends an operator command to the override stream.
func (b *OverrideBus) PublishOverride(ctx context.Context, event domain.OverrideEvent) error {
	args, err := json.Marshal(event.Args)
	if err != nil {
		return fmt.Errorf("redis: marshal override args: %w", err)
	}
	add := &redis.XAddArgs{
		Stream: b.overrideStream(),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"ts":      event.TS.UTC().Format(time.RFC3339Nano),
			"command": event.Command,
			"args":    string(args),
		},
	}
	if err := b.rdb.XAdd(ctx, add).Err(); err != nil {
		return fmt.Errorf("redis: publish override: %w", err)
	}
	return nil
}

// PublishDecision appends a decision summary to the decision stream for
// external observers (dashboards, tailers). The journal remains the durable
// record.
func (b *OverrideBus) PublishDecision(ctx context.Context, event domain.DecisionEvent) error {
	intents := make([]map[string]string, 0, len(event.OrderIntents))
	for _, i := range event.OrderIntents {
		intents = append(intents, map[string]string{
			"symbol": i.Symbol,
			"side":   string(i.Side),
			"qty":    i.Qty.String(),
			"reason": i.Reason,
		})
	}
	payload, err := json.Marshal(intents)
	if err != nil {
		return fmt.Errorf("redis: marshal decision intents: %w", err)
	}
	add := &redis.XAddArgs{
		Stream: b.decisionStream(),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"ts":            event.TS.UTC().Format(time.RFC3339Nano),
			"order_intents": string(payload),
		},
	}
	if err := b.rdb.XAdd(ctx, add).Err(); err != nil {
		return fmt.Errorf("redis: publish decision: %w", err)
	}
	return nil
}

// PollOverrides reads up to maxItems pending override commands through the
// consumer group, acknowledging each message immediately on delivery.
// Returns an empty slice when nothing is pending.
func (b *OverrideBus) PollOverrides(ctx context.Context, maxItems int) ([]domain.OverrideEvent, error) {
	resp, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.group,
		Consumer: b.consumer,
		Streams:  []string{b.overrideStream(), ">"},
		Count:    int64(maxItems),
		Block:    -1, // non-blocking
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read overrides: %w", err)
	}

	var events []domain.OverrideEvent
	for _, stream := range resp {
		for _, msg := range stream.Messages {
			events = append(events, parseOverrideMessage(msg))
			// Ack on delivery; operator commands must not replay
			// indefinitely on engine restart.
			if err := b.rdb.XAck(ctx, b.overrideStream(), b.group, msg.ID).Err(); err != nil {
				return events, fmt.Errorf("redis: ack override %s: %w", msg.ID, err)
			}
		}
	}
	return events, nil
}

func parseOverrideMessage(msg redis.XMessage) domain.OverrideEvent {
	event := domain.OverrideEvent{TS: time.Now().UTC(), Args: map[string]string{}}

	if raw, ok := msg.Values["ts"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			event.TS = ts
		}
	}
	if cmd, ok := msg.Values["command"].(string); ok {
		event.Command = cmd
	}
	if raw, ok := msg.Values["args"].(string); ok {
		var args map[string]string
		if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
			event.Args = args
		}
	}
	return event
}
