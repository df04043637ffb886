package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/sportsbook-core/internal/shared/kafka"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// MessageWriter é o subconjunto do kafka.Writer usado pelo publisher
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher envia snapshots normalizados para o tópico de preços
type KafkaPublisher struct {
	writer MessageWriter
	log    *zap.Logger
	source string
	now    func() time.Time
}

func NewKafkaPublisher(w MessageWriter, source string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log, source: source, now: time.Now}
}

// Publish envolve o snapshot num PriceUpdate; a chave é o MarketID para manter a ordem por mercado
func (p *KafkaPublisher) Publish(ctx context.Context, s betting.PriceSnapshot) error {
	value, err := skafka.Marshal(events.PriceUpdate{
		Snapshot:    s,
		Source:      p.source,
		PublishedAt: p.now(),
	})
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(s.MarketID), Value: value}); err != nil {
		p.log.Error("failed to publish price update", zap.String("market_id", s.MarketID), zap.Error(err))
		return err
	}

	p.log.Debug("published price update",
		zap.String("market_id", s.MarketID),
		zap.Int64("as_of", s.AsOf),
		zap.Bool("stale", s.Stale))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
