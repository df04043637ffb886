package events

import "time"

// Evento emitido pelo settlement-service para cada aposta liquidada
type BetSettled struct {
	BetID       string    `json:"bet_id"`
	UserID      string    `json:"user_id"`
	MarketID    string    `json:"market_id"`
	Status      string    `json:"status"` // WON | LOST | VOID | HALF_WON | HALF_LOST
	LockedCents int64     `json:"locked_cents"`
	PayoutCents int64     `json:"payout_cents"`
	Ts          time.Time `json:"ts"`
}

// Evento emitido quando o mercado chega a SETTLED
type MarketSettled struct {
	MarketID         string    `json:"market_id"`
	ResultCode       string    `json:"result_code"`
	Mode             string    `json:"mode"`
	TotalBets        int       `json:"total_bets"`
	TotalPayoutCents int64     `json:"total_payout_cents"`
	Ts               time.Time `json:"ts"`
}
