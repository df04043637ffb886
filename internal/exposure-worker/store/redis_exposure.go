package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sportsbook-core/pkg/contracts/events"
	"github.com/radieske/sportsbook-core/pkg/contracts/topics"
)

// applyOnce soma os incrementos no hash de exposição uma única vez por aposta e tipo de evento.
// KEYS[1] = hash de exposição, KEYS[2] = set de eventos já aplicados
// ARGV = membro, ttl_ms, (campo, incremento)...
var applyOnce = redis.NewScript(`
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
  return 0
end
for i = 3, #ARGV, 2 do
  redis.call('HINCRBY', KEYS[1], ARGV[i], ARGV[i+1])
end
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
  redis.call('PEXPIRE', KEYS[2], ttl)
end
return 1
`)

// Campos do hash exposure:{market_id}
const (
	FieldOpenBets        = "open_bets"
	FieldOpenLockedCents = "open_locked_cents"
	FieldSettledBets     = "settled_bets"
	FieldPayoutCents     = "payout_cents"
)

// Exposure é a visão agregada de um mercado
type Exposure struct {
	MarketID        string           `json:"marketId"`
	OpenBets        int64            `json:"open_bets"`
	OpenLockedCents int64            `json:"open_locked_cents"`
	SettledBets     int64            `json:"settled_bets"`
	PayoutCents     int64            `json:"payout_cents"`
	Placed          map[string]int64 `json:"placed,omitempty"` // "{selection}:{BACK|LAY}" -> valor bloqueado acumulado
}

// RedisExposure mantém a exposição aberta por mercado no Redis
type RedisExposure struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisExposure(c *redis.Client, ttl time.Duration) *RedisExposure {
	return &RedisExposure{Client: c, TTL: ttl}
}

func seenKey(marketID string) string { return topics.ExposureKey(marketID) + ":seen" }

func placedField(selectionID, betType string) string { return "placed:" + selectionID + ":" + betType }

// ApplyPlaced registra uma aposta aberta; devolve false para evento repetido
func (r *RedisExposure) ApplyPlaced(ctx context.Context, e events.BetPlaced) (bool, error) {
	return r.apply(ctx, e.MarketID, "placed:"+e.BetID,
		FieldOpenBets, 1,
		FieldOpenLockedCents, e.LockedCents,
		placedField(e.SelectionID, e.BetType), e.LockedCents,
	)
}

// ApplySettled remove a aposta da exposição aberta e acumula o pagamento
func (r *RedisExposure) ApplySettled(ctx context.Context, e events.BetSettled) (bool, error) {
	return r.apply(ctx, e.MarketID, "settled:"+e.BetID,
		FieldOpenBets, -1,
		FieldOpenLockedCents, -e.LockedCents,
		FieldSettledBets, 1,
		FieldPayoutCents, e.PayoutCents,
	)
}

func (r *RedisExposure) apply(ctx context.Context, marketID, member string, pairs ...any) (bool, error) {
	args := append([]any{member, r.TTL.Milliseconds()}, pairs...)
	n, err := applyOnce.Run(ctx, r.Client, []string{topics.ExposureKey(marketID), seenKey(marketID)}, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get lê o hash de exposição do mercado
func (r *RedisExposure) Get(ctx context.Context, marketID string) (Exposure, error) {
	raw, err := r.Client.HGetAll(ctx, topics.ExposureKey(marketID)).Result()
	if err != nil {
		return Exposure{}, err
	}
	out := Exposure{MarketID: marketID}
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		switch k {
		case FieldOpenBets:
			out.OpenBets = n
		case FieldOpenLockedCents:
			out.OpenLockedCents = n
		case FieldSettledBets:
			out.SettledBets = n
		case FieldPayoutCents:
			out.PayoutCents = n
		default:
			if out.Placed == nil {
				out.Placed = make(map[string]int64)
			}
			out.Placed[k[len("placed:"):]] = n
		}
	}
	return out, nil
}
