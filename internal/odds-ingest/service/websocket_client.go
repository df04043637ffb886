package service

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// Publisher recebe snapshots normalizados (Kafka em produção)
type Publisher interface {
	Publish(ctx context.Context, s betting.PriceSnapshot) error
}

// WSClient consome o feed do fornecedor, normaliza e publica os snapshots.
// Ao perder a conexão publica o último snapshot de cada mercado marcado como stale.
type WSClient struct {
	URL        string
	Log        *zap.Logger
	Publisher  Publisher
	Normalizer *Normalizer
	Backoff    time.Duration // espera antes de reconectar (default 3s)

	OnReceived func()
	OnRejected func(reason string)
	OnStale    func(n int)
}

// Start inicia o loop de conexão e escuta, reconectando até o ctx ser cancelado
func (c *WSClient) Start(ctx context.Context) {
	if c.Normalizer == nil {
		c.Normalizer = NewNormalizer()
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	for {
		err := c.connectAndListen(ctx)
		if ctx.Err() != nil {
			c.Log.Info("context canceled, stopping WS client")
			return
		}
		if err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
		}
		c.markStale(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to supplier WS", zap.String("url", c.URL))

	// ReadMessage não observa ctx; fecha a conexão no cancelamento
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		c.handle(ctx, message)
	}
}

func (c *WSClient) handle(ctx context.Context, message []byte) {
	if c.OnReceived != nil {
		c.OnReceived()
	}
	snap, err := c.Normalizer.Normalize(message)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrOutOfOrder) {
			reason = "out_of_order"
		}
		if c.OnRejected != nil {
			c.OnRejected(reason)
		}
		c.Log.Warn("provider message rejected", zap.String("reason", reason), zap.Error(err))
		return
	}
	if err := c.Publisher.Publish(ctx, snap); err != nil {
		c.Log.Error("failed to publish price snapshot", zap.String("market_id", snap.MarketID), zap.Error(err))
	}
}

// markStale publica o marcador de stale para cada mercado conhecido
func (c *WSClient) markStale(ctx context.Context) {
	markers := c.Normalizer.StaleMarkers()
	if len(markers) == 0 {
		return
	}
	pubCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	for _, m := range markers {
		if err := c.Publisher.Publish(pubCtx, m); err != nil {
			c.Log.Error("failed to publish stale marker", zap.String("market_id", m.MarketID), zap.Error(err))
		}
	}
	if c.OnStale != nil {
		c.OnStale(len(markers))
	}
	c.Log.Warn("upstream feed lost, markets marked stale", zap.Int("markets", len(markers)))
}
