// Package loopguard provides a cross-instance alternative to the engine's
// in-memory per-cycle loop guard (§5 "Loop guard"), for clustered
// deployments where more than one engine instance shares a thing manager
// and must still agree on single-writer semantics per rule per cycle.
package loopguard

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthctl/ruleengine/internal/ruleengine/domain"
	"github.com/redis/go-redis/v9"
)

// RedisGuard marks a rule as "already dispatching this cycle" with a short
// TTL key, keyed per rule id so concurrent engine instances agree on which
// of them won the race to dispatch a given rule.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &RedisGuard{client: client, prefix: "ruleengine:loopguard:", ttl: ttl}
}

func (g *RedisGuard) key(id domain.RuleId) string {
	return fmt.Sprintf("%s%s", g.prefix, id.String())
}

// TryMark reports whether id was not already guarded, atomically marking it
// guarded for the guard's TTL as a side effect (SETNX semantics).
func (g *RedisGuard) TryMark(ctx context.Context, id domain.RuleId) (bool, error) {
	return g.client.SetNX(ctx, g.key(id), 1, g.ttl).Result()
}

// Clear removes the guard for id, used when a dispatch cycle ends cleanly
// rather than waiting out the TTL.
func (g *RedisGuard) Clear(ctx context.Context, id domain.RuleId) error {
	return g.client.Del(ctx, g.key(id)).Err()
}
