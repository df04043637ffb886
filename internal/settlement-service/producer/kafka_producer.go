package producer

import (
	"context"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/sportsbook-core/internal/shared/kafka"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// KafkaPublisher emite bet_settled e market_settled, ambos com chave market_id
type KafkaPublisher struct {
	Bets    *kafka.Writer
	Markets *kafka.Writer
}

func NewKafkaPublisher(bets, markets *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Bets: bets, Markets: markets}
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	return skafka.WriteJSON(ctx, p.Bets, e.MarketID, e)
}

func (p *KafkaPublisher) PublishMarketSettled(ctx context.Context, e events.MarketSettled) error {
	return skafka.WriteJSON(ctx, p.Markets, e.MarketID, e)
}
