package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// StartRedisSubscriber abre a única assinatura Redis Pub/Sub do processo
// e repassa cada snapshot para o Hub
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				var snap betting.PriceSnapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil || snap.MarketID == "" {
					log.Warn("ws subscriber: invalid snapshot payload", zap.Error(err))
					continue
				}
				hub.Publish(snap)
			}
		}
	}()
}
