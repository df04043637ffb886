package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestPublishKeysByMarket(t *testing.T) {
	w := &memWriter{}
	p := NewKafkaPublisher(w, "supplier-ws", zap.NewNop())
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return at }

	snap := betting.PriceSnapshot{MarketID: "m-1", EventID: "e-1", MarketType: betting.MarketMatchOdds, AsOf: 42, Stale: true}
	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("msgs=%d want=1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "m-1" {
		t.Fatalf("key=%s want=m-1", w.msgs[0].Key)
	}

	var got events.PriceUpdate
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != "supplier-ws" || !got.PublishedAt.Equal(at) {
		t.Fatalf("envelope=%+v", got)
	}
	if got.Snapshot.AsOf != 42 || !got.Snapshot.Stale {
		t.Fatalf("snapshot=%+v", got.Snapshot)
	}
}

func TestPublishReturnsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisher(&memWriter{err: boom}, "supplier-ws", zap.NewNop())
	if err := p.Publish(context.Background(), betting.PriceSnapshot{MarketID: "m-1"}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want=%v", err, boom)
	}
}
