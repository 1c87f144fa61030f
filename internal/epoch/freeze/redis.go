package freeze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "dividend:maintenance"
	// defaultSafetyTTL releases a freeze left behind by a crashed orchestrator.
	defaultSafetyTTL = 30 * time.Minute
)

// RedisGuard shares the flag between replicas. The frozen key holds the
// status document; the generation key is a monotonically increasing counter.
type RedisGuard struct {
	client    redis.UniversalClient
	frozenKey string
	genKey    string
	safetyTTL time.Duration
	now       func() time.Time
}

type RedisOption func(*RedisGuard)

func WithKeyPrefix(prefix string) RedisOption {
	return func(g *RedisGuard) {
		g.frozenKey = prefix + ":frozen"
		g.genKey = prefix + ":generation"
	}
}

func WithSafetyTTL(ttl time.Duration) RedisOption {
	return func(g *RedisGuard) {
		g.safetyTTL = ttl
	}
}

func NewRedisGuard(client redis.UniversalClient, opts ...RedisOption) *RedisGuard {
	g := &RedisGuard{
		client:    client,
		frozenKey: defaultKeyPrefix + ":frozen",
		genKey:    defaultKeyPrefix + ":generation",
		safetyTTL: defaultSafetyTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *RedisGuard) Freeze(ctx context.Context, epoch int64) error {
	doc, err := json.Marshal(Status{Frozen: true, Epoch: epoch, Since: g.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal freeze status: %w", err)
	}
	ok, err := g.client.SetNX(ctx, g.frozenKey, doc, g.safetyTTL).Result()
	if err != nil {
		return fmt.Errorf("set freeze flag: %w", err)
	}
	if !ok {
		return errAlreadyHeld
	}
	if err := g.client.Incr(ctx, g.genKey).Err(); err != nil {
		return fmt.Errorf("advance freeze generation: %w", err)
	}
	return nil
}

func (g *RedisGuard) Unfreeze(ctx context.Context) error {
	if err := g.client.Del(ctx, g.frozenKey).Err(); err != nil {
		return fmt.Errorf("clear freeze flag: %w", err)
	}
	return nil
}

func (g *RedisGuard) Acquire(ctx context.Context) (WriteToken, error) {
	status, err := g.Status(ctx)
	if err != nil {
		return WriteToken{}, err
	}
	if status.Frozen {
		return WriteToken{}, errFrozen
	}
	return issue(status.Generation), nil
}

func (g *RedisGuard) Validate(ctx context.Context, token WriteToken) error {
	status, err := g.Status(ctx)
	if err != nil {
		return err
	}
	return checkToken(status, token)
}

func (g *RedisGuard) Status(ctx context.Context) (Status, error) {
	vals, err := g.client.MGet(ctx, g.frozenKey, g.genKey).Result()
	if err != nil {
		return Status{}, fmt.Errorf("read freeze state: %w", err)
	}

	var status Status
	if raw, ok := vals[0].(string); ok {
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			return Status{}, fmt.Errorf("decode freeze status: %w", err)
		}
		status.Frozen = true
	}
	if raw, ok := vals[1].(string); ok {
		gen, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Status{}, errors.New("corrupt freeze generation")
		}
		status.Generation = gen
	}
	return status, nil
}
