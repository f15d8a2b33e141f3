package counter

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const webhookOutcomesKey = "billing:counters:webhooks"

// Webhook delivery outcomes.
const (
	OutcomeAccepted      = "accepted"
	OutcomeInvalidSign   = "invalid_signature"
	OutcomeUnparseable   = "unparseable"
	OutcomeUnconfigured  = "unconfigured"
	OutcomeMissingOrder  = "missing_order_id"
	OutcomeUnknownOrder  = "unknown_order"
	OutcomePersistFailed = "persist_failed"
)

// WebhookCounters counts webhook outcomes in a Redis hash. A nil receiver or
// client turns every call into a no-op.
type WebhookCounters struct {
	rdb *redis.Client
}

// NewWebhookCounters creates counters backed by rdb.
func NewWebhookCounters(rdb *redis.Client) *WebhookCounters {
	return &WebhookCounters{rdb: rdb}
}

// Add increments the counter of outcome by one.
func (c *WebhookCounters) Add(ctx context.Context, outcome string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.HIncrBy(ctx, webhookOutcomesKey, outcome, 1).Err()
}

// Snapshot returns the current value of every outcome counter.
func (c *WebhookCounters) Snapshot(ctx context.Context) (map[string]int64, error) {
	if c == nil || c.rdb == nil {
		return map[string]int64{}, nil
	}
	data, err := c.rdb.HGetAll(ctx, webhookOutcomesKey).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(data), nil
}

func parseCounts(data map[string]string) map[string]int64 {
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out
}
