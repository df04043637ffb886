package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/exposure-worker/store"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

type memWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type flakyStore struct {
	failures int
	calls    int
}

func (f *flakyStore) ApplyPlaced(context.Context, events.BetPlaced) (bool, error) {
	f.calls++
	if f.calls <= f.failures {
		return false, errors.New("redis down")
	}
	return true, nil
}

func (f *flakyStore) ApplySettled(context.Context, events.BetSettled) (bool, error) {
	return true, nil
}

func TestWorkerAppliesAndDeduplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	exp := store.NewRedisExposure(rdb, time.Hour)

	var applied, dup int
	w := &Worker{Log: zap.NewNop(), Kind: KindPlaced, Store: exp,
		OnApplied: func(Kind) { applied++ }, OnDuplicate: func(Kind) { dup++ }}
	msg := kafka.Message{Value: []byte(`{"bet_id":"b1","market_id":"M1","selection_id":"S","bet_type":"BACK","locked_cents":100}`)}
	w.Handle(context.Background(), msg)
	w.Handle(context.Background(), msg)

	if applied != 1 || dup != 1 {
		t.Fatalf("applied=%d dup=%d want=1/1", applied, dup)
	}
	got, _ := exp.Get(context.Background(), "M1")
	if got.OpenLockedCents != 100 {
		t.Fatalf("open locked=%d want=100", got.OpenLockedCents)
	}
}

func TestWorkerSendsInvalidToDLQ(t *testing.T) {
	dlq := &memWriter{}
	w := &Worker{Log: zap.NewNop(), Kind: KindSettled, Store: &flakyStore{}, DLQ: dlq}
	w.Handle(context.Background(), kafka.Message{Key: []byte("M1"), Value: []byte(`not json`)})
	w.Handle(context.Background(), kafka.Message{Value: []byte(`{"bet_id":""}`)})
	if len(dlq.msgs) != 2 || string(dlq.msgs[0].Key) != "M1" {
		t.Fatalf("dlq=%d msgs", len(dlq.msgs))
	}
}

func TestWorkerRetriesStoreFailures(t *testing.T) {
	dlq := &memWriter{}
	fs := &flakyStore{failures: 2}
	w := &Worker{Log: zap.NewNop(), Kind: KindPlaced, Store: fs, DLQ: dlq, Retries: 2, RetryWait: time.Millisecond}
	w.Handle(context.Background(), kafka.Message{Value: []byte(`{"bet_id":"b1","market_id":"M1"}`)})
	if fs.calls != 3 || len(dlq.msgs) != 0 {
		t.Fatalf("calls=%d dlq=%d want=3/0", fs.calls, len(dlq.msgs))
	}

	fs = &flakyStore{failures: 5}
	w.Store = fs
	w.Handle(context.Background(), kafka.Message{Value: []byte(`{"bet_id":"b2","market_id":"M1"}`)})
	if len(dlq.msgs) != 1 {
		t.Fatalf("dlq=%d want=1 after exhausted retries", len(dlq.msgs))
	}
}
