// Package memstore guarda mercados, apostas, carteiras e ledger em memória.
// Implementa os mesmos contratos dos repositórios Postgres e é usado nos testes
// e na execução local sem banco.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

type Store struct {
	mu        sync.Mutex
	markets   map[string]betting.Market
	bets      map[string]betting.Bet
	betOrder  []string
	wallets   map[string]betting.Wallet
	txs       []betting.Transaction
	summaries map[string]betting.SettlementSummary

	// lock por carteira; canal de capacidade 1 permite espera com timeout
	locks       map[string]chan struct{}
	lockTimeout time.Duration

	Now func() time.Time
}

func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &Store{
		markets:     make(map[string]betting.Market),
		bets:        make(map[string]betting.Bet),
		wallets:     make(map[string]betting.Wallet),
		summaries:   make(map[string]betting.SettlementSummary),
		locks:       make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
		Now:         time.Now,
	}
}

// AcquireWallet serializa operações sobre a carteira do usuário.
// Devolve betting.ErrBusy se o lock não vier dentro do timeout.
func (s *Store) AcquireWallet(ctx context.Context, userID string) (func(), error) {
	s.mu.Lock()
	ch, ok := s.locks[userID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[userID] = ch
	}
	s.mu.Unlock()

	t := time.NewTimer(s.lockTimeout)
	defer t.Stop()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-t.C:
		return nil, betting.ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ---- mercados ----

// PutMarket cria ou substitui o mercado (seed e testes)
func (s *Store) PutMarket(m betting.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = s.Now()
	}
	s.markets[m.ID] = m
}

// SetMarketStatus aplica uma transição de status válida
func (s *Store) SetMarketStatus(_ context.Context, marketID string, st betting.MarketStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return betting.ErrMarketNotFound
	}
	if !betting.CanTransition(m.Status, st) {
		return betting.ErrMarketNotActive
	}
	m.Status = st
	m.UpdatedAt = s.Now()
	s.markets[marketID] = m
	return nil
}

func (s *Store) GetMarket(_ context.Context, marketID string) (betting.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return betting.Market{}, betting.ErrMarketNotFound
	}
	return m, nil
}

// ---- carteiras ----

func (s *Store) GetWallet(_ context.Context, userID string) (betting.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return betting.Wallet{}, betting.ErrWalletNotFound
	}
	return w, nil
}

func (s *Store) GetOrCreateWallet(_ context.Context, userID string) (betting.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		w = betting.Wallet{UserID: userID}
		s.wallets[userID] = w
	}
	return w, nil
}

func (s *Store) Deposit(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error) {
	return s.move(ctx, userID, betting.TxDeposit, amountCents)
}

func (s *Store) Withdraw(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error) {
	return s.move(ctx, userID, betting.TxWithdraw, amountCents)
}

func (s *Store) move(ctx context.Context, userID string, typ betting.TransactionType, amount int64) (betting.Wallet, betting.Transaction, error) {
	if amount <= 0 {
		return betting.Wallet{}, betting.Transaction{}, betting.ErrInvalidAmount
	}
	release, err := s.AcquireWallet(ctx, userID)
	if err != nil {
		return betting.Wallet{}, betting.Transaction{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		if typ == betting.TxWithdraw {
			return betting.Wallet{}, betting.Transaction{}, betting.ErrInsufficientFunds
		}
		w = betting.Wallet{UserID: userID}
	}

	signed := amount
	switch typ {
	case betting.TxDeposit:
		w.BalanceCents += amount
		w.TotalDepositedCents += amount
	case betting.TxWithdraw:
		if w.BalanceCents < amount {
			return betting.Wallet{}, betting.Transaction{}, betting.ErrInsufficientFunds
		}
		w.BalanceCents -= amount
		w.TotalWithdrawnCents += amount
		signed = -amount
	}
	w.Version++
	s.wallets[userID] = w
	tx := s.appendTxLocked(userID, typ, signed, w.BalanceCents, "")
	return w, tx, nil
}

// ListTransactions devolve o ledger do usuário, mais recente primeiro
func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]betting.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []betting.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID != userID {
			continue
		}
		out = append(out, s.txs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) appendTxLocked(userID string, typ betting.TransactionType, amount, balanceAfter int64, betID string) betting.Transaction {
	tx := betting.Transaction{
		ID:                uuid.NewString(),
		UserID:            userID,
		Type:              typ,
		AmountCents:       amount,
		BalanceAfterCents: balanceAfter,
		BetID:             betID,
		CreatedAt:         s.Now(),
	}
	s.txs = append(s.txs, tx)
	return tx
}

// ---- apostas ----

// PlaceBet debita a carteira e grava a aposta PENDING numa única seção crítica.
// O status do mercado e o saldo são conferidos de novo sob o lock da carteira.
func (s *Store) PlaceBet(ctx context.Context, b betting.Bet) (betting.Wallet, error) {
	release, err := s.AcquireWallet(ctx, b.UserID)
	if err != nil {
		return betting.Wallet{}, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[b.MarketID]
	if !ok {
		return betting.Wallet{}, betting.ErrMarketNotFound
	}
	if !m.Status.AcceptsBets() {
		return betting.Wallet{}, betting.ErrMarketNotActive
	}
	w, ok := s.wallets[b.UserID]
	if !ok || w.BalanceCents < b.LockedCents {
		return betting.Wallet{}, betting.ErrInsufficientFunds
	}

	w.BalanceCents -= b.LockedCents
	w.LockedCents += b.LockedCents
	w.Version++
	s.wallets[b.UserID] = w

	b.Status = betting.BetPending
	s.bets[b.ID] = b
	s.betOrder = append(s.betOrder, b.ID)
	s.appendTxLocked(b.UserID, betting.TxBet, -b.LockedCents, w.BalanceCents, b.ID)
	return w, nil
}

func (s *Store) GetBet(_ context.Context, betID string) (betting.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[betID]
	if !ok {
		return betting.Bet{}, betting.ErrBetNotFound
	}
	return b, nil
}

// ---- liquidação ----

// BeginSettlement fecha o mercado se ainda aberto e fixa (resultado, modo).
// forced indica que o mercado estava ACTIVE/SUSPENDED.
func (s *Store) BeginSettlement(_ context.Context, marketID, resultCode string, mode betting.SettlementMode) (betting.Market, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return betting.Market{}, false, betting.ErrMarketNotFound
	}
	if m.Status == betting.MarketSettled {
		return m, false, nil
	}
	if m.SettlementMode != "" && (m.ResultCode != resultCode || m.SettlementMode != mode) {
		return m, false, betting.ErrResultConflict
	}
	forced := m.Status == betting.MarketActive || m.Status == betting.MarketSuspended
	m.Status = betting.MarketClosed
	m.ResultCode = resultCode
	m.SettlementMode = mode
	m.UpdatedAt = s.Now()
	s.markets[marketID] = m
	return m, forced, nil
}

func (s *Store) ListPendingBets(_ context.Context, marketID string) ([]betting.Bet, error) {
	return s.listBets(marketID, true), nil
}

func (s *Store) ListBets(_ context.Context, marketID string) ([]betting.Bet, error) {
	return s.listBets(marketID, false), nil
}

func (s *Store) listBets(marketID string, pendingOnly bool) []betting.Bet {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []betting.Bet
	for _, id := range s.betOrder {
		b := s.bets[id]
		if b.MarketID != marketID || (pendingOnly && b.Status != betting.BetPending) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// SettleBet aplica o resultado de uma aposta: libera o valor bloqueado, credita o
// pagamento e grava o ledger quando há crédito. applied=false se já estava liquidada.
func (s *Store) SettleBet(ctx context.Context, betID string, status betting.BetStatus, creditCents int64) (betting.Bet, bool, error) {
	s.mu.Lock()
	b, ok := s.bets[betID]
	s.mu.Unlock()
	if !ok {
		return betting.Bet{}, false, betting.ErrBetNotFound
	}

	release, err := s.AcquireWallet(ctx, b.UserID)
	if err != nil {
		return betting.Bet{}, false, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	b = s.bets[betID]
	if b.Status != betting.BetPending {
		return b, false, nil
	}

	w := s.wallets[b.UserID]
	w.UserID = b.UserID
	w.LockedCents -= b.LockedCents
	w.BalanceCents += creditCents
	w.Version++
	s.wallets[b.UserID] = w

	now := s.Now()
	b.Status = status
	b.PayoutCents = creditCents
	b.SettledAt = &now
	s.bets[betID] = b

	if creditCents > 0 {
		s.appendTxLocked(b.UserID, status.CreditType(), creditCents, w.BalanceCents, b.ID)
	}
	return b, true, nil
}

// CompleteSettlement move o mercado para SETTLED e guarda o resumo
func (s *Store) CompleteSettlement(_ context.Context, sum betting.SettlementSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[sum.MarketID]
	if !ok {
		return betting.ErrMarketNotFound
	}
	if m.Status == betting.MarketSettled {
		return nil
	}
	for _, b := range s.bets {
		if b.MarketID == sum.MarketID && b.Status == betting.BetPending {
			return betting.ErrSettlementIncomplete
		}
	}
	m.Status = betting.MarketSettled
	m.UpdatedAt = s.Now()
	s.markets[sum.MarketID] = m
	s.summaries[sum.MarketID] = sum
	return nil
}

func (s *Store) GetSummary(_ context.Context, marketID string) (betting.SettlementSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.summaries[marketID]
	if !ok {
		return betting.SettlementSummary{}, betting.ErrMarketNotFound
	}
	return sum, nil
}

// ListMarketsWithPendingBets agrupa as apostas PENDING por mercado
func (s *Store) ListMarketsWithPendingBets(_ context.Context) ([]betting.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []betting.Market
	for _, id := range s.betOrder {
		b := s.bets[id]
		if b.Status != betting.BetPending || seen[b.MarketID] {
			continue
		}
		seen[b.MarketID] = true
		if m, ok := s.markets[b.MarketID]; ok {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Totals soma saldo e bloqueado de todas as carteiras (verificação de conservação)
func (s *Store) Totals() (balance, locked int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		balance += w.BalanceCents
		locked += w.LockedCents
	}
	return balance, locked
}
