package dto

import (
	"github.com/radieske/sportsbook-core/internal/settlement-service/engine"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// SettleRequest é o corpo de POST /settlement?action=settle
type SettleRequest struct {
	MarketID       string `json:"marketId"`
	ResultCode     string `json:"resultCode"`
	SettlementMode string `json:"settlementMode"`
}

type BatchSettleRequest struct {
	Markets []SettleRequest `json:"markets"`
}

type SettleResponse struct {
	Success bool                      `json:"success"`
	Summary betting.SettlementSummary `json:"summary"`
}

type BatchItemResult struct {
	MarketID string                     `json:"marketId"`
	Success  bool                       `json:"success"`
	Summary  *betting.SettlementSummary `json:"summary,omitempty"`
	Error    string                     `json:"error,omitempty"`
	Message  string                     `json:"message,omitempty"`
}

type BatchSettleResponse struct {
	Success bool              `json:"success"`
	Results []BatchItemResult `json:"results"`
}

type AutoSettleResponse struct {
	Success bool                `json:"success"`
	Sweep   engine.SweepSummary `json:"sweep"`
}

type PendingResponse struct {
	Success  bool          `json:"success"`
	MarketID string        `json:"marketId"`
	Count    int           `json:"count"`
	Bets     []betting.Bet `json:"bets"`
}

type MarketResponse struct {
	Success bool                       `json:"success"`
	Market  betting.Market             `json:"market"`
	Summary *betting.SettlementSummary `json:"summary,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
