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

// Postgres implementa engine.Store. Cada aposta é liquidada na sua própria
// transação; a ordem de locks é aposta -> carteira.
type Postgres struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgres(conn *sql.DB, lockTimeout time.Duration) *Postgres {
	return &Postgres{db: conn, lockTimeout: lockTimeout}
}

func (p *Postgres) GetMarket(ctx context.Context, marketID string) (betting.Market, error) {
	return db.ScanMarket(p.db.QueryRowContext(ctx, `SELECT `+db.MarketColumns+` FROM markets WHERE id=$1`, marketID))
}

// BeginSettlement trava o mercado (FOR UPDATE espera as colocações em andamento),
// fecha se ainda aberto e fixa resultado e modo.
func (p *Postgres) BeginSettlement(ctx context.Context, marketID, resultCode string, mode betting.SettlementMode) (betting.Market, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return betting.Market{}, false, err
	}
	defer tx.Rollback()

	m, err := db.ScanMarket(tx.QueryRowContext(ctx,
		`SELECT `+db.MarketColumns+` FROM markets WHERE id=$1 FOR UPDATE`, marketID))
	if err != nil {
		return betting.Market{}, false, err
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
	m.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE markets SET status=$2, result_code=$3, settlement_mode=$4, updated_at=$5
		WHERE id=$1`, m.ID, string(m.Status), m.ResultCode, string(m.SettlementMode), m.UpdatedAt); err != nil {
		return betting.Market{}, false, fmt.Errorf("close market: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return betting.Market{}, false, err
	}
	return m, forced, nil
}

func (p *Postgres) ListPendingBets(ctx context.Context, marketID string) ([]betting.Bet, error) {
	return p.listBets(ctx, `SELECT `+db.BetColumns+` FROM bets
		WHERE market_id=$1 AND status='PENDING' ORDER BY placed_at, id`, marketID)
}

func (p *Postgres) ListBets(ctx context.Context, marketID string) ([]betting.Bet, error) {
	return p.listBets(ctx, `SELECT `+db.BetColumns+` FROM bets WHERE market_id=$1 ORDER BY placed_at, id`, marketID)
}

func (p *Postgres) listBets(ctx context.Context, query string, args ...any) ([]betting.Bet, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []betting.Bet
	for rows.Next() {
		b, err := db.ScanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SettleBet aplica o resultado de uma aposta numa transação: o status PENDING
// travado com FOR UPDATE garante aplicação única mesmo com liquidações concorrentes.
func (p *Postgres) SettleBet(ctx context.Context, betID string, status betting.BetStatus, creditCents int64) (betting.Bet, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return betting.Bet{}, false, err
	}
	defer tx.Rollback()

	if err := db.SetLockTimeout(ctx, tx, p.lockTimeout.Milliseconds()); err != nil {
		return betting.Bet{}, false, err
	}

	b, err := db.ScanBet(tx.QueryRowContext(ctx, `SELECT `+db.BetColumns+` FROM bets WHERE id=$1 FOR UPDATE`, betID))
	switch {
	case db.IsLockTimeout(err):
		return betting.Bet{}, false, betting.ErrBusy
	case err != nil:
		return betting.Bet{}, false, err
	}
	if b.Status != betting.BetPending {
		return b, false, nil
	}

	w, err := db.ScanWallet(tx.QueryRowContext(ctx,
		`SELECT `+db.WalletColumns+` FROM wallets WHERE user_id=$1 FOR UPDATE`, b.UserID))
	switch {
	case db.IsLockTimeout(err):
		return betting.Bet{}, false, betting.ErrBusy
	case err != nil:
		return betting.Bet{}, false, fmt.Errorf("lock wallet: %w", err)
	}

	w.LockedCents -= b.LockedCents
	w.BalanceCents += creditCents
	w.Version++
	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance_cents=$2, locked_cents=$3, version=$4, updated_at=NOW()
		WHERE user_id=$1`, w.UserID, w.BalanceCents, w.LockedCents, w.Version); err != nil {
		return betting.Bet{}, false, fmt.Errorf("credit wallet: %w", err)
	}

	now := time.Now().UTC()
	b.Status = status
	b.PayoutCents = creditCents
	b.SettledAt = &now
	res, err := tx.ExecContext(ctx, `
		UPDATE bets SET status=$2, payout_cents=$3, settled_at=$4
		WHERE id=$1 AND status='PENDING'`, b.ID, string(b.Status), b.PayoutCents, now)
	if err != nil {
		return betting.Bet{}, false, fmt.Errorf("update bet: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return b, false, nil
	}

	if creditCents > 0 {
		if err := db.InsertTransaction(ctx, tx, betting.Transaction{
			ID:                uuid.NewString(),
			UserID:            b.UserID,
			Type:              status.CreditType(),
			AmountCents:       creditCents,
			BalanceAfterCents: w.BalanceCents,
			BetID:             b.ID,
			CreatedAt:         now,
		}); err != nil {
			return betting.Bet{}, false, fmt.Errorf("insert ledger: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return betting.Bet{}, false, err
	}
	return b, true, nil
}

// CompleteSettlement grava o resumo e move o mercado para SETTLED.
// Recusa enquanto houver aposta PENDING.
func (p *Postgres) CompleteSettlement(ctx context.Context, sum betting.SettlementSummary) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status betting.MarketStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM markets WHERE id=$1 FOR UPDATE`, sum.MarketID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return betting.ErrMarketNotFound
	case err != nil:
		return err
	}
	if status == betting.MarketSettled {
		return nil
	}

	var pending int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bets WHERE market_id=$1 AND status='PENDING'`, sum.MarketID).Scan(&pending); err != nil {
		return err
	}
	if pending > 0 {
		return betting.ErrSettlementIncomplete
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO market_settlements (market_id, result_code, settlement_mode, total_bets, won, lost, void,
		                                half_won, half_lost, total_payout_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (market_id) DO NOTHING`,
		sum.MarketID, sum.ResultCode, string(sum.Mode), sum.TotalBets, sum.Won, sum.Lost, sum.Void,
		sum.HalfWon, sum.HalfLost, sum.TotalPayoutCents); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE markets SET status='SETTLED', updated_at=NOW() WHERE id=$1`, sum.MarketID); err != nil {
		return fmt.Errorf("settle market: %w", err)
	}
	return tx.Commit()
}

func (p *Postgres) GetSummary(ctx context.Context, marketID string) (betting.SettlementSummary, error) {
	var s betting.SettlementSummary
	err := p.db.QueryRowContext(ctx, `
		SELECT market_id, result_code, settlement_mode, total_bets, won, lost, void, half_won, half_lost, total_payout_cents
		FROM market_settlements WHERE market_id=$1`, marketID).
		Scan(&s.MarketID, &s.ResultCode, &s.Mode, &s.TotalBets, &s.Won, &s.Lost, &s.Void,
			&s.HalfWon, &s.HalfLost, &s.TotalPayoutCents)
	if errors.Is(err, sql.ErrNoRows) {
		return s, betting.ErrMarketNotFound
	}
	return s, err
}

func (p *Postgres) ListMarketsWithPendingBets(ctx context.Context) ([]betting.Market, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+db.MarketColumns+` FROM markets
		WHERE id IN (SELECT DISTINCT market_id FROM bets WHERE status='PENDING')
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []betting.Market
	for rows.Next() {
		m, err := db.ScanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
