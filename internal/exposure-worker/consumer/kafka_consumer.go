package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

var errInvalidEvent = errors.New("invalid event")

// MessageReader é o subconjunto do kafka.Reader usado pelo worker
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter recebe as mensagens que não puderam ser decodificadas (DLQ)
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type ExposureStore interface {
	ApplyPlaced(ctx context.Context, e events.BetPlaced) (bool, error)
	ApplySettled(ctx context.Context, e events.BetSettled) (bool, error)
}

// Kind identifica o tópico consumido
type Kind string

const (
	KindPlaced  Kind = "bet_placed"
	KindSettled Kind = "bet_settled"
)

// Worker aplica eventos de aposta na exposição por mercado.
// Mensagens inválidas vão para a DLQ; falhas do Redis são tentadas de novo.
type Worker struct {
	Log    *zap.Logger
	Kind   Kind
	Reader MessageReader
	Store  ExposureStore
	DLQ    MessageWriter

	Retries   int
	RetryWait time.Duration

	OnApplied   func(Kind)
	OnDuplicate func(Kind)
	OnDLQ       func(Kind)
	OnError     func(Kind, string)
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read failed", zap.String("kind", string(w.Kind)), zap.Error(err))
			w.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		w.Handle(ctx, m)
	}
}

// Handle processa uma mensagem
func (w *Worker) Handle(ctx context.Context, m kafka.Message) {
	var err error
	for attempt := 0; attempt <= w.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.RetryWait * time.Duration(attempt))
		}
		var applied bool
		applied, err = w.apply(ctx, m.Value)
		if errors.Is(err, errInvalidEvent) {
			w.Log.Warn("invalid event sent to dlq", zap.String("kind", string(w.Kind)), zap.Error(err))
			w.toDLQ(ctx, m)
			return
		}
		if err == nil {
			if applied {
				if w.OnApplied != nil {
					w.OnApplied(w.Kind)
				}
			} else if w.OnDuplicate != nil {
				w.OnDuplicate(w.Kind)
			}
			return
		}
	}
	w.Log.Error("exposure update failed", zap.String("kind", string(w.Kind)), zap.Error(err))
	w.fail("store")
	w.toDLQ(ctx, m)
}

func (w *Worker) apply(ctx context.Context, value []byte) (bool, error) {
	switch w.Kind {
	case KindPlaced:
		var e events.BetPlaced
		if err := json.Unmarshal(value, &e); err != nil || e.BetID == "" || e.MarketID == "" {
			return false, errors.Join(errInvalidEvent, err)
		}
		return w.Store.ApplyPlaced(ctx, e)
	case KindSettled:
		var e events.BetSettled
		if err := json.Unmarshal(value, &e); err != nil || e.BetID == "" || e.MarketID == "" {
			return false, errors.Join(errInvalidEvent, err)
		}
		return w.Store.ApplySettled(ctx, e)
	}
	return false, errInvalidEvent
}

func (w *Worker) toDLQ(ctx context.Context, m kafka.Message) {
	if w.OnDLQ != nil {
		w.OnDLQ(w.Kind)
	}
	if w.DLQ == nil {
		return
	}
	if err := w.DLQ.WriteMessages(ctx, kafka.Message{Key: m.Key, Value: m.Value, Time: time.Now()}); err != nil {
		w.Log.Error("dlq write failed", zap.String("kind", string(w.Kind)), zap.Error(err))
	}
}

func (w *Worker) fail(stage string) {
	if w.OnError != nil {
		w.OnError(w.Kind, stage)
	}
}
