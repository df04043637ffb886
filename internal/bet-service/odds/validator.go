package odds

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/topics"
)

// ErrNoPrice indica mercado sem snapshot no cache
var ErrNoPrice = errors.New("no live price")

type Validator struct {
	Rdb *redis.Client
}

func NewValidator(r *redis.Client) *Validator { return &Validator{Rdb: r} }

// Current lê o snapshot gravado pelo odds-processor em "price:snapshot:{marketID}"
func (v *Validator) Current(ctx context.Context, marketID string) (betting.PriceSnapshot, error) {
	var s betting.PriceSnapshot
	b, err := v.Rdb.HGet(ctx, topics.SnapshotKey(marketID), "payload").Bytes()
	if errors.Is(err, redis.Nil) {
		return s, ErrNoPrice
	}
	if err != nil {
		return s, err
	}
	return s, json.Unmarshal(b, &s)
}
