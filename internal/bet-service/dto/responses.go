package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// PlaceBetResponse traz a aposta criada e a carteira após o débito
type PlaceBetResponse struct {
	BetID                string          `json:"betId"`
	Status               string          `json:"status"` // PENDING
	Odds                 decimal.Decimal `json:"odds"`
	RequiredCents        int64           `json:"required_cents"`
	PotentialPayoutCents int64           `json:"potential_payout_cents"`
	BalanceCents         int64           `json:"balance_cents"`
	LockedCents          int64           `json:"locked_cents"`
}

type BetStatusResponse struct {
	Bet betting.Bet `json:"bet"`
}

// ErrorResponse carrega o código estável do erro; CurrentOdds só em price_changed
type ErrorResponse struct {
	Error       string           `json:"error"`
	Message     string           `json:"message,omitempty"`
	CurrentOdds *decimal.Decimal `json:"current_odds,omitempty"`
}
