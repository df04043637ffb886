package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// MessageReader é o subconjunto do kafka.Reader usado pelo processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// SnapshotCache grava o snapshot corrente; retorna false se já havia um mais novo
type SnapshotCache interface {
	SetCurrent(ctx context.Context, s betting.PriceSnapshot) (bool, error)
}

// Repo persiste mercado, snapshot corrente e histórico
type Repo interface {
	UpsertMarket(ctx context.Context, s betting.PriceSnapshot) error
	UpsertCurrent(ctx context.Context, s betting.PriceSnapshot) error
	InsertHistory(ctx context.Context, s betting.PriceSnapshot) error
}

// Processor consome snapshots de preço do Kafka, faz cache e persiste no banco
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	Repo   Repo
	Cache  SnapshotCache

	OnConsumed     func()                      // métricas (counter++)
	OnCached       func()                      // métricas
	OnOutOfOrder   func()                      // snapshot descartado por as_of antigo
	OnPersist      func()                      // métricas
	OnError        func(string)                // métricas por fase
	OnAfterPersist func(betting.PriceSnapshot) // broadcast para o hub
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		p.Handle(ctx, m.Value)
	}
}

// Handle processa uma mensagem: cache monotônico, persistência e broadcast
func (p *Processor) Handle(ctx context.Context, value []byte) {
	if p.OnConsumed != nil {
		p.OnConsumed() // callback de métrica: mensagem consumida
	}

	var ev events.PriceUpdate
	if err := json.Unmarshal(value, &ev); err != nil || ev.Snapshot.MarketID == "" {
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return
	}
	snap := ev.Snapshot

	// O cache é a referência de ordem: snapshot mais antigo que o aplicado é descartado
	applied, err := p.Cache.SetCurrent(ctx, snap)
	if err != nil {
		p.Log.Warn("redis set failed", zap.Error(err), zap.String("market_id", snap.MarketID))
		p.fail("cache")
		// não bloqueia persistência se falhar o cache; o banco também protege o as_of
	} else if !applied {
		p.Log.Debug("out of order snapshot dropped",
			zap.String("market_id", snap.MarketID), zap.Int64("as_of", snap.AsOf))
		if p.OnOutOfOrder != nil {
			p.OnOutOfOrder()
		}
		return
	} else if p.OnCached != nil {
		p.OnCached() // callback de métrica: cache atualizado
	}

	if err := p.Repo.UpsertMarket(ctx, snap); err != nil {
		p.Log.Warn("db upsert market failed", zap.Error(err))
		p.fail("db_market")
		return
	}
	if err := p.Repo.UpsertCurrent(ctx, snap); err != nil {
		p.Log.Warn("db upsert failed", zap.Error(err))
		p.fail("db_upsert")
		return
	}
	if err := p.Repo.InsertHistory(ctx, snap); err != nil {
		p.Log.Warn("db insert history failed", zap.Error(err))
		p.fail("db_history")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist() // callback de métrica: persistência concluída
	}
	if p.OnAfterPersist != nil {
		p.OnAfterPersist(snap)
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
