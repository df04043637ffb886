package dto

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// RawMarket é a mensagem do feed WS no formato do fornecedor
type RawMarket struct {
	EventID    string          `json:"event_id"`
	MarketID   string          `json:"market_id"`
	MarketType string          `json:"market_type"`
	Status     string          `json:"status"` // OPEN | SUSPENDED | CLOSED
	MinStake   decimal.Decimal `json:"min_stake"`
	MaxStake   decimal.Decimal `json:"max_stake"`
	Seq        int64           `json:"seq"`
	Runners    []RawRunner     `json:"runners"`
	Score      *betting.Score  `json:"score,omitempty"`
}

type RawRunner struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Back   []decimal.Decimal `json:"back"` // [preço, tamanho]
	Lay    []decimal.Decimal `json:"lay"`
	Status string            `json:"status"`
}

// ResultResp é a resposta de GET /results
type ResultResp struct {
	IsDeclared  *bool  `json:"is_declared"`
	FinalResult string `json:"final_result,omitempty"`
}

// DeclareReq é o corpo de POST /results (declaração manual no simulador)
type DeclareReq struct {
	MarketID    string `json:"market_id"`
	FinalResult string `json:"final_result"`
}
