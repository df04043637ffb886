package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
	"github.com/radieske/sportsbook-core/pkg/contracts/events"
)

// Store é a persistência autoritativa de mercados, carteiras e apostas
type Store interface {
	GetMarket(ctx context.Context, marketID string) (betting.Market, error)
	GetWallet(ctx context.Context, userID string) (betting.Wallet, error)
	// PlaceBet trava a carteira, confere mercado ACTIVE e saldo, debita e grava a aposta
	// e a transação "bet" atomicamente
	PlaceBet(ctx context.Context, b betting.Bet) (betting.Wallet, error)
	GetBet(ctx context.Context, betID string) (betting.Bet, error)
}

// PriceReader devolve o snapshot corrente do mercado
type PriceReader interface {
	Current(ctx context.Context, marketID string) (betting.PriceSnapshot, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

type Hooks struct {
	OnPlaced   func(b betting.Bet)
	OnRejected func(reason string)
}

type Request struct {
	UserID      string
	MarketID    string
	SelectionID string
	Type        betting.BetType
	Odds        decimal.Decimal
	StakeCents  int64
}

type Result struct {
	Bet    betting.Bet
	Wallet betting.Wallet
}

type Service struct {
	store     Store
	prices    PriceReader
	pub       Publisher
	log       *zap.Logger
	tolerance decimal.Decimal
	hooks     Hooks

	Now   func() time.Time
	NewID func() string
}

func NewService(store Store, prices PriceReader, pub Publisher, log *zap.Logger, tolerance decimal.Decimal, hooks Hooks) *Service {
	return &Service{
		store:     store,
		prices:    prices,
		pub:       pub,
		log:       log,
		tolerance: tolerance,
		hooks:     hooks,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

// Place valida a aposta contra o preço vivo e debita a carteira.
// As verificações param no primeiro erro; nada é gravado antes do Store.PlaceBet.
func (s *Service) Place(ctx context.Context, req Request) (Result, error) {
	res, err := s.place(ctx, req)
	if err != nil {
		if s.hooks.OnRejected != nil {
			s.hooks.OnRejected(Reason(err))
		}
		return Result{}, err
	}
	if s.hooks.OnPlaced != nil {
		s.hooks.OnPlaced(res.Bet)
	}
	return res, nil
}

func (s *Service) place(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	m, err := s.store.GetMarket(ctx, req.MarketID)
	if err != nil {
		return Result{}, fmt.Errorf("get market %s: %w", req.MarketID, err)
	}
	if !m.Status.AcceptsBets() {
		return Result{}, fmt.Errorf("%w: market %s is %s", ErrMarketSuspended, m.ID, m.Status)
	}

	snap, err := s.prices.Current(ctx, req.MarketID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: no live price for %s: %v", ErrMarketSuspended, m.ID, err)
	}
	if snap.Stale || !snap.MarketStatus.AcceptsBets() {
		return Result{}, fmt.Errorf("%w: feed stale or market %s", ErrMarketSuspended, snap.MarketStatus)
	}
	sel, ok := snap.Selection(req.SelectionID)
	if !ok || sel.Status != betting.SelectionActive {
		return Result{}, fmt.Errorf("%w: selection %s not available", ErrMarketSuspended, req.SelectionID)
	}

	if req.StakeCents < m.MinStakeCents || req.StakeCents > m.MaxStakeCents {
		return Result{}, fmt.Errorf("%w: %d not in [%d,%d]", ErrStakeOutOfRange, req.StakeCents, m.MinStakeCents, m.MaxStakeCents)
	}

	current := sel.BackPrice
	if req.Type == betting.Lay {
		current = sel.LayPrice
	}
	if current.IsZero() {
		return Result{}, fmt.Errorf("%w: no %s price for %s", ErrMarketSuspended, req.Type, sel.ID)
	}
	if !betting.OddsWithin(req.Odds, current, s.tolerance) {
		return Result{}, &PriceChangedError{Requested: req.Odds, Current: current}
	}

	// dentro da tolerância a aposta é aceita na odd corrente
	required := betting.RequiredFunds(req.Type, req.StakeCents, current)
	w, err := s.store.GetWallet(ctx, req.UserID)
	if errors.Is(err, betting.ErrWalletNotFound) {
		return Result{}, fmt.Errorf("%w: no wallet for %s", ErrInsufficientFunds, req.UserID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("get wallet: %w", err)
	}
	if w.BalanceCents < required {
		return Result{}, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, required, w.BalanceCents)
	}

	bet := betting.Bet{
		ID:                   s.NewID(),
		UserID:               req.UserID,
		MarketID:             m.ID,
		EventID:              m.EventID,
		SelectionID:          sel.ID,
		Type:                 req.Type,
		Odds:                 current,
		StakeCents:           req.StakeCents,
		LockedCents:          required,
		PotentialPayoutCents: betting.PotentialPayout(req.Type, req.StakeCents, current),
		Status:               betting.BetPending,
		PlacedAt:             s.Now().UTC(),
	}
	after, err := s.store.PlaceBet(ctx, bet)
	if err != nil {
		if errors.Is(err, betting.ErrMarketNotActive) {
			return Result{}, fmt.Errorf("%w: market %s closed during placement", ErrMarketSuspended, m.ID)
		}
		return Result{}, fmt.Errorf("place bet: %w", err)
	}

	s.publish(ctx, bet)
	s.log.Info("bet placed",
		zap.String("bet_id", bet.ID),
		zap.String("user_id", bet.UserID),
		zap.String("market_id", bet.MarketID),
		zap.String("type", string(bet.Type)),
		zap.Int64("locked_cents", bet.LockedCents))
	return Result{Bet: bet, Wallet: after}, nil
}

// publish não desfaz a aposta em caso de falha; o evento é só informativo
func (s *Service) publish(ctx context.Context, b betting.Bet) {
	if s.pub == nil {
		return
	}
	err := s.pub.PublishBetPlaced(ctx, events.BetPlaced{
		BetID:       b.ID,
		UserID:      b.UserID,
		EventID:     b.EventID,
		MarketID:    b.MarketID,
		SelectionID: b.SelectionID,
		BetType:     string(b.Type),
		StakeCents:  b.StakeCents,
		LockedCents: b.LockedCents,
		Odds:        b.Odds,
	})
	if err != nil {
		s.log.Warn("publish bet_placed failed", zap.String("bet_id", b.ID), zap.Error(err))
	}
}

// Get devolve a aposta pelo ID
func (s *Service) Get(ctx context.Context, betID string) (betting.Bet, error) {
	return s.store.GetBet(ctx, betID)
}

func validate(req Request) error {
	if req.UserID == "" || req.MarketID == "" || req.SelectionID == "" {
		return fmt.Errorf("%w: userId, marketId and selectionId are required", ErrInvalidRequest)
	}
	if _, err := betting.ParseBetType(string(req.Type)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.StakeCents <= 0 {
		return fmt.Errorf("%w: stake must be positive", ErrInvalidRequest)
	}
	if req.Odds.LessThan(betting.MinOdds) {
		return fmt.Errorf("%w: odds below %s", ErrInvalidRequest, betting.MinOdds)
	}
	return nil
}
