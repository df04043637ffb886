package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sportsbook-core/internal/shared/db"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// Postgres implementa a persistência da colocação de apostas
type Postgres struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewPostgres retorna o repositório; lockTimeout limita a espera pelo lock da carteira
func NewPostgres(conn *sql.DB, lockTimeout time.Duration) *Postgres {
	return &Postgres{db: conn, lockTimeout: lockTimeout}
}

func (p *Postgres) GetMarket(ctx context.Context, marketID string) (betting.Market, error) {
	return db.ScanMarket(p.db.QueryRowContext(ctx, `SELECT `+db.MarketColumns+` FROM markets WHERE id=$1`, marketID))
}

func (p *Postgres) GetWallet(ctx context.Context, userID string) (betting.Wallet, error) {
	return db.ScanWallet(p.db.QueryRowContext(ctx, `SELECT `+db.WalletColumns+` FROM wallets WHERE user_id=$1`, userID))
}

func (p *Postgres) GetBet(ctx context.Context, betID string) (betting.Bet, error) {
	return db.ScanBet(p.db.QueryRowContext(ctx, `SELECT `+db.BetColumns+` FROM bets WHERE id=$1`, betID))
}

// PlaceBet executa débito + aposta + ledger numa transação.
// A carteira é travada com FOR UPDATE (espera limitada por lock_timeout) e o mercado
// com FOR SHARE, de modo que o fechamento do mercado espera a colocação terminar.
func (p *Postgres) PlaceBet(ctx context.Context, b betting.Bet) (betting.Wallet, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return betting.Wallet{}, err
	}
	defer tx.Rollback()

	if err := db.SetLockTimeout(ctx, tx, p.lockTimeout.Milliseconds()); err != nil {
		return betting.Wallet{}, err
	}

	w, err := db.ScanWallet(tx.QueryRowContext(ctx,
		`SELECT `+db.WalletColumns+` FROM wallets WHERE user_id=$1 FOR UPDATE`, b.UserID))
	switch {
	case db.IsLockTimeout(err):
		return betting.Wallet{}, betting.ErrBusy
	case errors.Is(err, betting.ErrWalletNotFound):
		return betting.Wallet{}, betting.ErrInsufficientFunds
	case err != nil:
		return betting.Wallet{}, fmt.Errorf("lock wallet: %w", err)
	}

	var status betting.MarketStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM markets WHERE id=$1 FOR SHARE`, b.MarketID).Scan(&status)
	switch {
	case db.IsLockTimeout(err):
		return betting.Wallet{}, betting.ErrBusy
	case errors.Is(err, sql.ErrNoRows):
		return betting.Wallet{}, betting.ErrMarketNotFound
	case err != nil:
		return betting.Wallet{}, fmt.Errorf("lock market: %w", err)
	}
	if !status.AcceptsBets() {
		return betting.Wallet{}, betting.ErrMarketNotActive
	}
	if w.BalanceCents < b.LockedCents {
		return betting.Wallet{}, betting.ErrInsufficientFunds
	}

	w.BalanceCents -= b.LockedCents
	w.LockedCents += b.LockedCents
	w.Version++
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance_cents=$2, locked_cents=$3, version=$4, updated_at=NOW()
		WHERE user_id=$1`, w.UserID, w.BalanceCents, w.LockedCents, w.Version); err != nil {
		return betting.Wallet{}, fmt.Errorf("debit wallet: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bets (id, user_id, market_id, event_id, selection_id, bet_type, odds, stake_cents,
		                  locked_cents, potential_payout_cents, payout_cents, status, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,0,'PENDING',$11)`,
		b.ID, b.UserID, b.MarketID, b.EventID, b.SelectionID, string(b.Type), b.Odds, b.StakeCents,
		b.LockedCents, b.PotentialPayoutCents, b.PlacedAt); err != nil {
		return betting.Wallet{}, fmt.Errorf("insert bet: %w", err)
	}

	if err := db.InsertTransaction(ctx, tx, betting.Transaction{
		ID:                uuid.NewString(),
		UserID:            b.UserID,
		Type:              betting.TxBet,
		AmountCents:       -b.LockedCents,
		BalanceAfterCents: w.BalanceCents,
		BetID:             b.ID,
		CreatedAt:         time.Now().UTC(),
	}); err != nil {
		return betting.Wallet{}, fmt.Errorf("insert ledger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if db.IsLockTimeout(err) {
			return betting.Wallet{}, betting.ErrBusy
		}
		return betting.Wallet{}, err
	}
	return w, nil
}
