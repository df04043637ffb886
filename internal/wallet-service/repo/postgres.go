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

// Postgres implementa operações de carteira em banco
type Postgres struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgres(conn *sql.DB, lockTimeout time.Duration) *Postgres {
	return &Postgres{db: conn, lockTimeout: lockTimeout}
}

// GetOrCreateWallet retorna a carteira do usuário, criando-a vazia se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (betting.Wallet, error) {
	if _, err := p.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return betting.Wallet{}, err
	}
	return db.ScanWallet(p.db.QueryRowContext(ctx, `SELECT `+db.WalletColumns+` FROM wallets WHERE user_id=$1`, userID))
}

func (p *Postgres) Deposit(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error) {
	return p.move(ctx, userID, betting.TxDeposit, amountCents)
}

func (p *Postgres) Withdraw(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error) {
	return p.move(ctx, userID, betting.TxWithdraw, amountCents)
}

// move altera o saldo com lock pessimista na linha da carteira e registra o ledger
func (p *Postgres) move(ctx context.Context, userID string, typ betting.TransactionType, amount int64) (betting.Wallet, betting.Transaction, error) {
	if amount <= 0 {
		return betting.Wallet{}, betting.Transaction{}, betting.ErrInvalidAmount
	}
	if typ == betting.TxDeposit {
		if _, err := p.GetOrCreateWallet(ctx, userID); err != nil {
			return betting.Wallet{}, betting.Transaction{}, err
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return betting.Wallet{}, betting.Transaction{}, err
	}
	defer tx.Rollback()

	if err := db.SetLockTimeout(ctx, tx, p.lockTimeout.Milliseconds()); err != nil {
		return betting.Wallet{}, betting.Transaction{}, err
	}
	w, err := db.ScanWallet(tx.QueryRowContext(ctx,
		`SELECT `+db.WalletColumns+` FROM wallets WHERE user_id=$1 FOR UPDATE`, userID))
	switch {
	case db.IsLockTimeout(err):
		return betting.Wallet{}, betting.Transaction{}, betting.ErrBusy
	case errors.Is(err, betting.ErrWalletNotFound):
		return betting.Wallet{}, betting.Transaction{}, betting.ErrInsufficientFunds
	case err != nil:
		return betting.Wallet{}, betting.Transaction{}, fmt.Errorf("lock wallet: %w", err)
	}

	signed := amount
	if typ == betting.TxWithdraw {
		if w.BalanceCents < amount {
			return betting.Wallet{}, betting.Transaction{}, betting.ErrInsufficientFunds
		}
		w.BalanceCents -= amount
		w.TotalWithdrawnCents += amount
		signed = -amount
	} else {
		w.BalanceCents += amount
		w.TotalDepositedCents += amount
	}
	w.Version++

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance_cents=$2, total_deposited_cents=$3, total_withdrawn_cents=$4, version=$5, updated_at=NOW()
		WHERE user_id=$1`, userID, w.BalanceCents, w.TotalDepositedCents, w.TotalWithdrawnCents, w.Version); err != nil {
		return betting.Wallet{}, betting.Transaction{}, err
	}

	t := betting.Transaction{
		ID:                uuid.NewString(),
		UserID:            userID,
		Type:              typ,
		AmountCents:       signed,
		BalanceAfterCents: w.BalanceCents,
		CreatedAt:         time.Now().UTC(),
	}
	if err := db.InsertTransaction(ctx, tx, t); err != nil {
		return betting.Wallet{}, betting.Transaction{}, err
	}
	if err := tx.Commit(); err != nil {
		return betting.Wallet{}, betting.Transaction{}, err
	}
	return w, t, nil
}

// ListTransactions retorna o ledger do usuário, mais recente primeiro
func (p *Postgres) ListTransactions(ctx context.Context, userID string, limit int) ([]betting.Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount_cents, balance_after_cents, COALESCE(bet_id,''), created_at
		FROM wallet_transactions
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []betting.Transaction
	for rows.Next() {
		var t betting.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountCents, &t.BalanceAfterCents, &t.BetID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
