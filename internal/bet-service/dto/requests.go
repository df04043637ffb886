package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest é uma aposta simples; cada perna do cupom vira uma requisição
type PlaceBetRequest struct {
	UserID      string          `json:"userId"`
	MarketID    string          `json:"marketId"`
	SelectionID string          `json:"selectionId"`
	BetType     string          `json:"betType"` // BACK | LAY
	StakeCents  int64           `json:"stake_cents"`
	Odds        decimal.Decimal `json:"odds"` // odd que o cliente viu
}
