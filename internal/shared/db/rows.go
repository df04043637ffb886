package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// Colunas na ordem esperada por ScanBet, ScanMarket e ScanWallet
const (
	BetColumns = `id, user_id, market_id, event_id, selection_id, bet_type, odds, stake_cents,
		locked_cents, potential_payout_cents, payout_cents, status, placed_at, settled_at`
	MarketColumns = `id, event_id, market_type, status, min_stake_cents, max_stake_cents,
		COALESCE(result_code,''), COALESCE(settlement_mode,''), updated_at`
	WalletColumns = `user_id, balance_cents, locked_cents, total_deposited_cents, total_withdrawn_cents, version`
)

type scanner interface {
	Scan(dest ...any) error
}

func ScanBet(row scanner) (betting.Bet, error) {
	var (
		b         betting.Bet
		settledAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.MarketID, &b.EventID, &b.SelectionID, &b.Type, &b.Odds,
		&b.StakeCents, &b.LockedCents, &b.PotentialPayoutCents, &b.PayoutCents, &b.Status, &b.PlacedAt, &settledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, betting.ErrBetNotFound
	}
	if settledAt.Valid {
		t := settledAt.Time
		b.SettledAt = &t
	}
	return b, err
}

func ScanMarket(row scanner) (betting.Market, error) {
	var m betting.Market
	err := row.Scan(&m.ID, &m.EventID, &m.Type, &m.Status, &m.MinStakeCents, &m.MaxStakeCents,
		&m.ResultCode, &m.SettlementMode, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return m, betting.ErrMarketNotFound
	}
	return m, err
}

func ScanWallet(row scanner) (betting.Wallet, error) {
	var w betting.Wallet
	err := row.Scan(&w.UserID, &w.BalanceCents, &w.LockedCents, &w.TotalDepositedCents, &w.TotalWithdrawnCents, &w.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return w, betting.ErrWalletNotFound
	}
	return w, err
}

// InsertTransaction grava uma entrada do ledger dentro da transação corrente
func InsertTransaction(ctx context.Context, tx *sql.Tx, t betting.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, user_id, type, amount_cents, balance_after_cents, bet_id, created_at)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7)`,
		t.ID, t.UserID, string(t.Type), t.AmountCents, t.BalanceAfterCents, t.BetID, t.CreatedAt)
	return err
}
