package events

import "github.com/shopspring/decimal"

// Evento emitido pelo bet-service após a aposta ser persistida
type BetPlaced struct {
	BetID       string          `json:"bet_id"`
	UserID      string          `json:"user_id"`
	EventID     string          `json:"event_id"`
	MarketID    string          `json:"market_id"`
	SelectionID string          `json:"selection_id"`
	BetType     string          `json:"bet_type"`
	StakeCents  int64           `json:"stake_cents"`
	LockedCents int64           `json:"locked_cents"`
	Odds        decimal.Decimal `json:"odds"`
	TsUnixMs    int64           `json:"ts_unix_ms"`
}
