package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/topics"
)

// ErrNoSnapshot indica que o mercado ainda não tem preço no cache
var ErrNoSnapshot = errors.New("no snapshot")

// Cache lê os snapshots gravados pelo odds-processor
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// Get retorna o snapshot corrente por market_id
func (c *Cache) Get(ctx context.Context, marketID string) (betting.PriceSnapshot, error) {
	var s betting.PriceSnapshot
	b, err := c.R.HGet(ctx, topics.SnapshotKey(marketID), "payload").Bytes()
	if err == redis.Nil {
		return s, ErrNoSnapshot
	}
	if err != nil {
		return s, err
	}
	return s, json.Unmarshal(b, &s)
}

// ListByKey devolve o snapshot de cada mercado indexado em (evento, tipo de mercado),
// ordenado por market_id. Membros cujo snapshot expirou são ignorados.
// Usado pelo hub como fonte de cold start.
func (c *Cache) ListByKey(ctx context.Context, key betting.MarketKey) ([]betting.PriceSnapshot, error) {
	ids, err := c.R.SMembers(ctx, topics.MarketIndexKey(key.EventID, string(key.MarketType))).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]betting.PriceSnapshot, 0, len(ids))
	for _, id := range ids {
		s, err := c.Get(ctx, id)
		if errors.Is(err, ErrNoSnapshot) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, ErrNoSnapshot
	}
	return out, nil
}
