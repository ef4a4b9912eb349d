package bootstrap

import (
	"testing"
	"time"

	"rent360-scheduling-be/internal/repository/memory"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNewAgreementCache(t *testing.T) {
	assert.IsType(t, &memory.AgreementCache{}, newAgreementCache(nil, time.Minute))

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })
	assert.IsType(t, &memory.RedisAgreementCache{}, newAgreementCache(rdb, time.Minute))
}
