package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// PostgresRepo implementa a persistência de mercados e preços em um banco Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertMarket cria o mercado na primeira vez que o feed o reporta e aplica mudanças de status.
// O feed só move o mercado entre ACTIVE, SUSPENDED e CLOSED; um mercado CLOSED/SETTLED
// nunca é reaberto e SETTLED é exclusivo do settlement-service.
func (r *PostgresRepo) UpsertMarket(ctx context.Context, s betting.PriceSnapshot) error {
	status := s.MarketStatus
	if status == betting.MarketSettled {
		status = betting.MarketClosed
	}
	const q = `
		INSERT INTO markets
		  (id, event_id, market_type, status, min_stake_cents, max_stake_cents, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (id) DO UPDATE SET
		  status          = EXCLUDED.status,
		  min_stake_cents = EXCLUDED.min_stake_cents,
		  max_stake_cents = EXCLUDED.max_stake_cents,
		  updated_at      = NOW()
		WHERE markets.status IN ('ACTIVE','SUSPENDED')
	`
	_, err := r.DB.ExecContext(ctx, q,
		s.MarketID, s.EventID, string(s.MarketType), string(status),
		s.MinStakeCents, s.MaxStakeCents,
	)
	return err
}

// UpsertCurrent insere ou atualiza o snapshot corrente do mercado na tabela price_current
// A cláusula WHERE impede que um as_of mais antigo sobrescreva um mais novo
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, s betting.PriceSnapshot) error {
	sel, err := json.Marshal(s.Selections)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO price_current
		  (market_id, event_id, market_type, selections, as_of, stale, updated_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (market_id) DO UPDATE SET
		  selections = EXCLUDED.selections,
		  as_of      = EXCLUDED.as_of,
		  stale      = EXCLUDED.stale,
		  updated_at = NOW()
		WHERE price_current.as_of <= EXCLUDED.as_of
	`
	_, err = r.DB.ExecContext(ctx, q,
		s.MarketID, s.EventID, string(s.MarketType), sel, s.AsOf, s.Stale,
	)
	return err
}

// InsertHistory registra o snapshot no histórico (price_history)
func (r *PostgresRepo) InsertHistory(ctx context.Context, s betting.PriceSnapshot) error {
	sel, err := json.Marshal(s.Selections)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO price_history
		  (market_id, selections, as_of, stale, created_at)
		VALUES
		  ($1,$2,$3,$4,NOW())
	`
	_, err = r.DB.ExecContext(ctx, q, s.MarketID, sel, s.AsOf, s.Stale)
	return err
}
