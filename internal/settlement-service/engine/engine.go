package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// Store é a persistência usada na liquidação. Cada SettleBet é atômico e
// protegido pelo status PENDING da aposta.
type Store interface {
	GetMarket(ctx context.Context, marketID string) (betting.Market, error)
	// BeginSettlement fecha o mercado (se aberto) e fixa resultado e modo
	BeginSettlement(ctx context.Context, marketID, resultCode string, mode betting.SettlementMode) (betting.Market, bool, error)
	ListPendingBets(ctx context.Context, marketID string) ([]betting.Bet, error)
	ListBets(ctx context.Context, marketID string) ([]betting.Bet, error)
	SettleBet(ctx context.Context, betID string, status betting.BetStatus, creditCents int64) (betting.Bet, bool, error)
	CompleteSettlement(ctx context.Context, sum betting.SettlementSummary) error
	GetSummary(ctx context.Context, marketID string) (betting.SettlementSummary, error)
	ListMarketsWithPendingBets(ctx context.Context) ([]betting.Market, error)
}

// ResultProvider consulta o resultado declarado pelo fornecedor
type ResultProvider interface {
	Result(ctx context.Context, eventID, marketID string) (declared bool, resultCode string, err error)
}

type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishMarketSettled(ctx context.Context, e events.MarketSettled) error
}

type Hooks struct {
	OnBetSettled    func(status betting.BetStatus, creditCents int64)
	OnMarketSettled func(sum betting.SettlementSummary, took time.Duration)
	OnFailure       func(stage string)
}

type Engine struct {
	store    Store
	provider ResultProvider
	pub      Publisher
	log      *zap.Logger
	workers  int
	hooks    Hooks
}

func New(store Store, provider ResultProvider, pub Publisher, log *zap.Logger, workers int, hooks Hooks) *Engine {
	if workers <= 0 {
		workers = 8
	}
	return &Engine{store: store, provider: provider, pub: pub, log: log, workers: workers, hooks: hooks}
}

// settledSummary é o no-op de um mercado já SETTLED; um pedido com outro resultado só gera aviso
func (e *Engine) settledSummary(ctx context.Context, m betting.Market, resultCode string, mode betting.SettlementMode) (betting.SettlementSummary, error) {
	if m.ResultCode != resultCode || m.SettlementMode != mode {
		e.log.Warn("settle request ignored: market already settled",
			zap.String("market_id", m.ID),
			zap.String("settled_result", m.ResultCode),
			zap.String("settled_mode", string(m.SettlementMode)),
			zap.String("requested_result", resultCode),
			zap.String("requested_mode", string(mode)))
	}
	return e.store.GetSummary(ctx, m.ID)
}

// Settle liquida todas as apostas pendentes do mercado com o resultado informado.
// Repetir a chamada é seguro: apostas já liquidadas são ignoradas e um mercado
// SETTLED devolve o resumo gravado, qualquer que seja o resultado pedido.
// Enquanto o mercado está CLOSED, um (resultado, modo) diferente do fixado é ErrResultConflict.
func (e *Engine) Settle(ctx context.Context, marketID, resultCode string, mode betting.SettlementMode) (betting.SettlementSummary, error) {
	start := time.Now()
	if marketID == "" {
		return betting.SettlementSummary{}, fmt.Errorf("%w: marketId required", ErrInvalidRequest)
	}
	if _, err := betting.ParseSettlementMode(string(mode)); err != nil {
		return betting.SettlementSummary{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if resultCode == "" && mode != betting.ModeVoid {
		return betting.SettlementSummary{}, fmt.Errorf("%w: resultCode required for mode %s", ErrInvalidRequest, mode)
	}

	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return betting.SettlementSummary{}, fmt.Errorf("get market %s: %w", marketID, err)
	}
	if m.Status == betting.MarketSettled {
		return e.settledSummary(ctx, m, resultCode, mode)
	}

	m, forced, err := e.store.BeginSettlement(ctx, marketID, resultCode, mode)
	if err != nil {
		e.fail("begin")
		return betting.SettlementSummary{}, fmt.Errorf("begin settlement %s: %w", marketID, err)
	}
	if forced {
		e.log.Warn("market force-closed for settlement", zap.String("market_id", marketID))
	}
	if m.Status == betting.MarketSettled {
		return e.settledSummary(ctx, m, resultCode, mode)
	}

	pending, err := e.store.ListPendingBets(ctx, marketID)
	if err != nil {
		e.fail("list")
		return betting.SettlementSummary{}, fmt.Errorf("list pending bets: %w", err)
	}
	if failed, firstErr := e.settleBets(ctx, pending, resultCode, mode); failed > 0 {
		e.fail("bet")
		return betting.SettlementSummary{}, fmt.Errorf("%w: %d of %d bets failed: %v", ErrIncomplete, failed, len(pending), firstErr)
	}

	all, err := e.store.ListBets(ctx, marketID)
	if err != nil {
		e.fail("list")
		return betting.SettlementSummary{}, fmt.Errorf("list bets: %w", err)
	}
	sum := betting.SettlementSummary{MarketID: marketID, ResultCode: resultCode, Mode: mode}
	for _, b := range all {
		sum.Tally(b)
	}
	if err := e.store.CompleteSettlement(ctx, sum); err != nil {
		e.fail("complete")
		return betting.SettlementSummary{}, fmt.Errorf("complete settlement %s: %w", marketID, err)
	}

	e.publishMarket(ctx, sum)
	if e.hooks.OnMarketSettled != nil {
		e.hooks.OnMarketSettled(sum, time.Since(start))
	}
	e.log.Info("market settled",
		zap.String("market_id", marketID),
		zap.String("result_code", resultCode),
		zap.String("mode", string(mode)),
		zap.Int("total_bets", sum.TotalBets),
		zap.Int64("total_payout_cents", sum.TotalPayoutCents),
		zap.Duration("took", time.Since(start)))
	return sum, nil
}

// settleBets resolve as apostas em paralelo com no máximo e.workers simultâneas.
// Uma falha não interrompe as demais; o mercado fica CLOSED e pode ser retomado.
func (e *Engine) settleBets(ctx context.Context, bets []betting.Bet, resultCode string, mode betting.SettlementMode) (int, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failed   int
		firstErr error
	)
	g.SetLimit(e.workers)
	for _, b := range bets {
		b := b
		g.Go(func() error {
			out := Resolve(b, resultCode, mode)
			settled, applied, err := e.store.SettleBet(ctx, b.ID, out.Status, out.CreditCents)
			if err != nil {
				mu.Lock()
				failed++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				e.log.Error("settle bet failed", zap.String("bet_id", b.ID), zap.Error(err))
				return nil
			}
			if !applied {
				return nil
			}
			if e.hooks.OnBetSettled != nil {
				e.hooks.OnBetSettled(settled.Status, settled.PayoutCents)
			}
			e.publishBet(ctx, settled)
			return nil
		})
	}
	_ = g.Wait()
	return failed, firstErr
}

// BatchItem é um mercado a liquidar num lote
type BatchItem struct {
	MarketID   string                 `json:"marketId"`
	ResultCode string                 `json:"resultCode"`
	Mode       betting.SettlementMode `json:"settlementMode"`
}

type BatchResult struct {
	MarketID string
	Summary  betting.SettlementSummary
	Err      error
}

// BatchSettle liquida cada mercado de forma independente; a falha de um não afeta os outros
func (e *Engine) BatchSettle(ctx context.Context, items []BatchItem) []BatchResult {
	out := make([]BatchResult, 0, len(items))
	for _, it := range items {
		mode := it.Mode
		if mode == "" {
			mode = betting.ModeNormal
		}
		sum, err := e.Settle(ctx, it.MarketID, it.ResultCode, mode)
		out = append(out, BatchResult{MarketID: it.MarketID, Summary: sum, Err: err})
	}
	return out
}

// SweepSummary resume uma varredura de auto-liquidação
type SweepSummary struct {
	Markets     int               `json:"markets"`
	Settled     int               `json:"settled"`
	Undeclared  int               `json:"undeclared"`
	Failed      int               `json:"failed"`
	BetsSettled int               `json:"bets_settled"`
	PayoutCents int64             `json:"payout_cents"`
	Errors      map[string]string `json:"errors,omitempty"`
}

// AutoSettle procura mercados com apostas PENDING e liquida os que têm resultado declarado.
// Mercados sem resultado ou com falha no fornecedor ficam pendentes para a próxima varredura.
// Um mercado com liquidação já iniciada é retomado com o resultado fixado.
func (e *Engine) AutoSettle(ctx context.Context) (SweepSummary, error) {
	markets, err := e.store.ListMarketsWithPendingBets(ctx)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("list markets with pending bets: %w", err)
	}

	sweep := SweepSummary{Markets: len(markets)}
	for _, m := range markets {
		if ctx.Err() != nil {
			return sweep, ctx.Err()
		}
		resultCode, mode := m.ResultCode, m.SettlementMode
		if mode == "" {
			if e.provider == nil {
				sweep.Undeclared++
				continue
			}
			declared, code, err := e.provider.Result(ctx, m.EventID, m.ID)
			if err != nil {
				sweep.fail(m.ID, err)
				e.fail("provider")
				e.log.Warn("result lookup failed", zap.String("market_id", m.ID), zap.Error(err))
				continue
			}
			if !declared {
				sweep.Undeclared++
				continue
			}
			resultCode, mode = code, betting.ModeNormal
		}

		sum, err := e.Settle(ctx, m.ID, resultCode, mode)
		if err != nil {
			sweep.fail(m.ID, err)
			continue
		}
		sweep.Settled++
		sweep.BetsSettled += sum.TotalBets
		sweep.PayoutCents += sum.TotalPayoutCents
	}

	e.log.Info("auto-settle sweep finished",
		zap.Int("markets", sweep.Markets),
		zap.Int("settled", sweep.Settled),
		zap.Int("undeclared", sweep.Undeclared),
		zap.Int("failed", sweep.Failed))
	return sweep, nil
}

func (s *SweepSummary) fail(marketID string, err error) {
	s.Failed++
	if s.Errors == nil {
		s.Errors = make(map[string]string)
	}
	s.Errors[marketID] = err.Error()
}

// Pending lista as apostas ainda pendentes do mercado
func (e *Engine) Pending(ctx context.Context, marketID string) ([]betting.Bet, error) {
	if _, err := e.store.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return e.store.ListPendingBets(ctx, marketID)
}

// Market devolve o mercado e, se já liquidado, o resumo
func (e *Engine) Market(ctx context.Context, marketID string) (betting.Market, *betting.SettlementSummary, error) {
	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return m, nil, err
	}
	if m.Status != betting.MarketSettled {
		return m, nil, nil
	}
	sum, err := e.store.GetSummary(ctx, marketID)
	if errors.Is(err, betting.ErrMarketNotFound) {
		return m, nil, nil
	}
	if err != nil {
		return m, nil, err
	}
	return m, &sum, nil
}

func (e *Engine) publishBet(ctx context.Context, b betting.Bet) {
	if e.pub == nil {
		return
	}
	err := e.pub.PublishBetSettled(ctx, events.BetSettled{
		BetID:       b.ID,
		UserID:      b.UserID,
		MarketID:    b.MarketID,
		Status:      string(b.Status),
		LockedCents: b.LockedCents,
		PayoutCents: b.PayoutCents,
		Ts:          time.Now().UTC(),
	})
	if err != nil {
		e.log.Warn("publish bet_settled failed", zap.String("bet_id", b.ID), zap.Error(err))
	}
}

func (e *Engine) publishMarket(ctx context.Context, s betting.SettlementSummary) {
	if e.pub == nil {
		return
	}
	err := e.pub.PublishMarketSettled(ctx, events.MarketSettled{
		MarketID:         s.MarketID,
		ResultCode:       s.ResultCode,
		Mode:             string(s.Mode),
		TotalBets:        s.TotalBets,
		TotalPayoutCents: s.TotalPayoutCents,
		Ts:               time.Now().UTC(),
	})
	if err != nil {
		e.log.Warn("publish market_settled failed", zap.String("market_id", s.MarketID), zap.Error(err))
	}
}

func (e *Engine) fail(stage string) {
	if e.hooks.OnFailure != nil {
		e.hooks.OnFailure(stage)
	}
}
