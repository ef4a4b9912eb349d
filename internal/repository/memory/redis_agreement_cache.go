package memory

import (
	"context"
	"encoding/json"
	"time"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisAgreementCache shares agreement snapshots between replicas. A failed
// read is a miss.
type RedisAgreementCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ contract.AgreementCache = (*RedisAgreementCache)(nil)

func NewRedisAgreementCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisAgreementCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisAgreementCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisAgreementCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

func (c *RedisAgreementCache) Save(ctx context.Context, agreement *entity.RecurringAgreement) {
	if agreement == nil {
		return
	}
	raw, err := json.Marshal(agreement)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(agreement.Id), raw, c.ttl).Err()
}

func (c *RedisAgreementCache) Get(ctx context.Context, id uuid.UUID) (*entity.RecurringAgreement, bool) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var agreement entity.RecurringAgreement
	if err := json.Unmarshal(raw, &agreement); err != nil {
		return nil, false
	}
	return &agreement, true
}

func (c *RedisAgreementCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(id)).Err()
}
