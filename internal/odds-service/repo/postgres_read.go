package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// ErrNotFound indica mercado ou preço inexistente
var ErrNotFound = errors.New("not found")

type ReadRepo struct {
	DB *sql.DB
}

// ListMarkets retorna os mercados de um evento
func (r *ReadRepo) ListMarkets(ctx context.Context, eventID string) ([]betting.Market, error) {
	const q = `
		SELECT id, event_id, market_type, status, min_stake_cents, max_stake_cents,
		       COALESCE(result_code,''), COALESCE(settlement_mode,''), updated_at
		FROM markets
		WHERE event_id = $1
		ORDER BY market_type, id;
	`
	rows, err := r.DB.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []betting.Market
	for rows.Next() {
		var m betting.Market
		if err := rows.Scan(&m.ID, &m.EventID, &m.Type, &m.Status, &m.MinStakeCents, &m.MaxStakeCents,
			&m.ResultCode, &m.SettlementMode, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetCurrent monta o snapshot persistido em price_current (fallback quando o Redis não tem)
func (r *ReadRepo) GetCurrent(ctx context.Context, marketID string) (betting.PriceSnapshot, error) {
	const q = `
		SELECT m.id, m.event_id, m.market_type, m.status, m.min_stake_cents, m.max_stake_cents,
		       p.selections, p.as_of, p.stale
		FROM markets m
		JOIN price_current p ON p.market_id = m.id
		WHERE m.id = $1;
	`
	var (
		s   betting.PriceSnapshot
		sel []byte
	)
	err := r.DB.QueryRowContext(ctx, q, marketID).Scan(&s.MarketID, &s.EventID, &s.MarketType, &s.MarketStatus,
		&s.MinStakeCents, &s.MaxStakeCents, &sel, &s.AsOf, &s.Stale)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	return s, json.Unmarshal(sel, &s.Selections)
}
