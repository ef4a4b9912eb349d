package memory

import (
	"context"
	"time"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// AgreementCache is a process-local snapshot cache. It is only consistent
// while a single replica serves the API.
type AgreementCache struct {
	cache *cache.Cache
}

var _ contract.AgreementCache = (*AgreementCache)(nil)

func NewAgreementCache(ttl time.Duration) *AgreementCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AgreementCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *AgreementCache) Save(_ context.Context, agreement *entity.RecurringAgreement) {
	if agreement == nil {
		return
	}
	snapshot := *agreement
	c.cache.Set(agreement.Id.String(), &snapshot, cache.DefaultExpiration)
}

// Get returns a copy so callers cannot mutate the cached snapshot.
func (c *AgreementCache) Get(_ context.Context, id uuid.UUID) (*entity.RecurringAgreement, bool) {
	if x, found := c.cache.Get(id.String()); found {
		snapshot := *x.(*entity.RecurringAgreement)
		return &snapshot, true
	}
	return nil, false
}

func (c *AgreementCache) Invalidate(_ context.Context, id uuid.UUID) error {
	c.cache.Delete(id.String())
	return nil
}
