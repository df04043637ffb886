package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/topics"
)

// setIfNotOlder grava o snapshot apenas se o as_of recebido não for menor que o atual.
// KEYS[1] = hash do snapshot, KEYS[2] = índice (evento, tipo) -> set de market_ids
// ARGV = as_of, payload, market_id, ttl_ms
var setIfNotOlder = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'as_of')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'as_of', ARGV[1], 'payload', ARGV[2])
redis.call('SADD', KEYS[2], ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// RedisCache encapsula a escrita do snapshot corrente de preços no Redis
// Client: cliente Redis
// TTL: tempo de expiração dos registros (0 = sem expiração)
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// SetCurrent armazena o snapshot de forma atômica e monotônica.
// Retorna false quando já existe um snapshot mais novo (entrega fora de ordem).
func (r *RedisCache) SetCurrent(ctx context.Context, s betting.PriceSnapshot) (bool, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return false, err
	}
	keys := []string{
		topics.SnapshotKey(s.MarketID),
		topics.MarketIndexKey(s.EventID, string(s.MarketType)),
	}
	applied, err := setIfNotOlder.Run(ctx, r.Client, keys,
		strconv.FormatInt(s.AsOf, 10), b, s.MarketID, r.TTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return applied == 1, nil
}
