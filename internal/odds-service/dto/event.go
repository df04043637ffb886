package dto

import "github.com/radieske/sportsbook-core/pkg/contracts/betting"

// MarketView é um mercado do evento com o snapshot corrente, quando houver
type MarketView struct {
	Market   betting.Market         `json:"market"`
	Snapshot *betting.PriceSnapshot `json:"snapshot,omitempty"`
}

// EventMarkets agrupa os mercados de um evento esportivo
type EventMarkets struct {
	EventID string       `json:"eventId"`
	Markets []MarketView `json:"markets"`
}

// ErrorResponse é o corpo padrão de erro
type ErrorResponse struct {
	Error string `json:"error"`
}
