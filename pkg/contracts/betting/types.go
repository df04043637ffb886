package betting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MarketType identifica o tipo de mercado (enumeração fechada)
type MarketType string

const (
	MarketMatchOdds   MarketType = "MATCH_ODDS"
	MarketBookmaker   MarketType = "BOOKMAKER"
	MarketFancy       MarketType = "FANCY"
	MarketToss        MarketType = "TOSS"
	MarketCasinoRound MarketType = "CASINO_ROUND"
)

// ParseMarketType aceita apenas os valores conhecidos, sem comparação parcial
func ParseMarketType(s string) (MarketType, error) {
	switch t := MarketType(s); t {
	case MarketMatchOdds, MarketBookmaker, MarketFancy, MarketToss, MarketCasinoRound:
		return t, nil
	}
	return "", fmt.Errorf("unknown market type %q", s)
}

// MarketStatus representa o estado do mercado no ciclo de vida
type MarketStatus string

const (
	MarketActive    MarketStatus = "ACTIVE"
	MarketSuspended MarketStatus = "SUSPENDED"
	MarketClosed    MarketStatus = "CLOSED"
	MarketSettled   MarketStatus = "SETTLED"
)

func ParseMarketStatus(s string) (MarketStatus, error) {
	switch st := MarketStatus(s); st {
	case MarketActive, MarketSuspended, MarketClosed, MarketSettled:
		return st, nil
	}
	return "", fmt.Errorf("unknown market status %q", s)
}

// AcceptsBets indica se o mercado pode receber novas apostas
func (s MarketStatus) AcceptsBets() bool { return s == MarketActive }

// CanTransition valida as transições permitidas:
// ACTIVE <-> SUSPENDED, ACTIVE/SUSPENDED -> CLOSED, CLOSED -> SETTLED.
// Repetir o mesmo status é aceito (tick sem mudança).
func CanTransition(from, to MarketStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case MarketActive:
		return to == MarketSuspended || to == MarketClosed
	case MarketSuspended:
		return to == MarketActive || to == MarketClosed
	case MarketClosed:
		return to == MarketSettled
	}
	return false
}

// SelectionStatus é o estado de uma seleção dentro do snapshot
type SelectionStatus string

const (
	SelectionActive    SelectionStatus = "ACTIVE"
	SelectionSuspended SelectionStatus = "SUSPENDED"
)

func ParseSelectionStatus(s string) (SelectionStatus, error) {
	switch st := SelectionStatus(s); st {
	case SelectionActive, SelectionSuspended:
		return st, nil
	}
	return "", fmt.Errorf("unknown selection status %q", s)
}

// BetType: BACK aposta a favor, LAY aposta contra
type BetType string

const (
	Back BetType = "BACK"
	Lay  BetType = "LAY"
)

func ParseBetType(s string) (BetType, error) {
	switch t := BetType(s); t {
	case Back, Lay:
		return t, nil
	}
	return "", fmt.Errorf("unknown bet type %q", s)
}

// BetStatus segue PENDING -> {WON, LOST, VOID, HALF_WON, HALF_LOST} uma única vez
type BetStatus string

const (
	BetPending  BetStatus = "PENDING"
	BetWon      BetStatus = "WON"
	BetLost     BetStatus = "LOST"
	BetVoid     BetStatus = "VOID"
	BetHalfWon  BetStatus = "HALF_WON"
	BetHalfLost BetStatus = "HALF_LOST"
)

func ParseBetStatus(s string) (BetStatus, error) {
	switch st := BetStatus(s); st {
	case BetPending, BetWon, BetLost, BetVoid, BetHalfWon, BetHalfLost:
		return st, nil
	}
	return "", fmt.Errorf("unknown bet status %q", s)
}

// IsTerminal indica se a aposta já foi liquidada
func (s BetStatus) IsTerminal() bool { return s != BetPending }

// CreditType classifica o crédito da liquidação no ledger
func (s BetStatus) CreditType() TransactionType {
	if s == BetWon || s == BetHalfWon {
		return TxWin
	}
	return TxRefund
}

// SettlementMode define como o resultado declarado vira status das apostas
type SettlementMode string

const (
	ModeNormal   SettlementMode = "normal"
	ModeVoid     SettlementMode = "void"
	ModeHalfWin  SettlementMode = "half_win"
	ModeHalfLost SettlementMode = "half_lost"
)

func ParseSettlementMode(s string) (SettlementMode, error) {
	switch m := SettlementMode(s); m {
	case ModeNormal, ModeVoid, ModeHalfWin, ModeHalfLost:
		return m, nil
	}
	return "", fmt.Errorf("unknown settlement mode %q", s)
}

// TransactionType classifica as entradas do ledger
type TransactionType string

const (
	TxBet      TransactionType = "bet"
	TxWin      TransactionType = "win"
	TxRefund   TransactionType = "refund"
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
	TxBonus    TransactionType = "bonus"
)

// MarketKey é a chave de assinatura usada pelo hub (evento + tipo de mercado)
type MarketKey struct {
	EventID    string     `json:"eventId"`
	MarketType MarketType `json:"marketType"`
}

func (k MarketKey) String() string { return k.EventID + ":" + string(k.MarketType) }

// Market é a linha autoritativa do mercado
type Market struct {
	ID             string         `json:"marketId"`
	EventID        string         `json:"eventId"`
	Type           MarketType     `json:"marketType"`
	Status         MarketStatus   `json:"status"`
	MinStakeCents  int64          `json:"min_stake_cents"`
	MaxStakeCents  int64          `json:"max_stake_cents"`
	ResultCode     string         `json:"resultCode,omitempty"`
	SettlementMode SettlementMode `json:"settlementMode,omitempty"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Selection é uma seleção com preços back/lay
type Selection struct {
	ID        string          `json:"selectionId"`
	Name      string          `json:"name"`
	BackPrice decimal.Decimal `json:"back_price"`
	BackSize  decimal.Decimal `json:"back_size"`
	LayPrice  decimal.Decimal `json:"lay_price"`
	LaySize   decimal.Decimal `json:"lay_size"`
	Status    SelectionStatus `json:"status"`
}

// Score é o placar ao vivo, entregue apenas a quem pedir include_score
type Score struct {
	Home   string `json:"home"`
	Away   string `json:"away"`
	Period string `json:"period,omitempty"`
}

// PriceSnapshot é o último preço conhecido de um mercado.
// AsOf nunca decresce por mercado; Stale indica feed upstream caído.
type PriceSnapshot struct {
	MarketID      string       `json:"marketId"`
	EventID       string       `json:"eventId"`
	MarketType    MarketType   `json:"marketType"`
	MarketStatus  MarketStatus `json:"marketStatus"`
	MinStakeCents int64        `json:"min_stake_cents"`
	MaxStakeCents int64        `json:"max_stake_cents"`
	Selections    []Selection  `json:"selections"`
	AsOf          int64        `json:"as_of"`
	Stale         bool         `json:"stale"`
	Score         *Score       `json:"score,omitempty"`
}

func (p PriceSnapshot) Key() MarketKey {
	return MarketKey{EventID: p.EventID, MarketType: p.MarketType}
}

// Selection busca a seleção por ID exato
func (p PriceSnapshot) Selection(id string) (Selection, bool) {
	for _, s := range p.Selections {
		if s.ID == id {
			return s, true
		}
	}
	return Selection{}, false
}

// Bet é um contrato de aposta
type Bet struct {
	ID                   string          `json:"betId"`
	UserID               string          `json:"userId"`
	MarketID             string          `json:"marketId"`
	EventID              string          `json:"eventId"`
	SelectionID          string          `json:"selectionId"`
	Type                 BetType         `json:"betType"`
	Odds                 decimal.Decimal `json:"odds"`
	StakeCents           int64           `json:"stake_cents"`
	LockedCents          int64           `json:"locked_cents"`
	PotentialPayoutCents int64           `json:"potential_payout_cents"`
	PayoutCents          int64           `json:"payout_cents"`
	Status               BetStatus       `json:"status"`
	PlacedAt             time.Time       `json:"placedAt"`
	SettledAt            *time.Time      `json:"settledAt,omitempty"`
}

// Wallet guarda saldo disponível e saldo bloqueado contra apostas abertas
type Wallet struct {
	UserID              string `json:"userId"`
	BalanceCents        int64  `json:"balance_cents"`
	LockedCents         int64  `json:"locked_balance_cents"`
	TotalDepositedCents int64  `json:"total_deposited_cents"`
	TotalWithdrawnCents int64  `json:"total_withdrawn_cents"`
	Version             int64  `json:"version"`
}

// Transaction é uma entrada imutável do ledger (valor com sinal)
type Transaction struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	Type              TransactionType `json:"type"`
	AmountCents       int64           `json:"amount_cents"`
	BalanceAfterCents int64           `json:"balance_after_cents"`
	BetID             string          `json:"betId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// SettlementSummary resume a liquidação de um mercado
type SettlementSummary struct {
	MarketID         string         `json:"marketId"`
	ResultCode       string         `json:"resultCode"`
	Mode             SettlementMode `json:"settlementMode"`
	TotalBets        int            `json:"total_bets"`
	Won              int            `json:"won"`
	Lost             int            `json:"lost"`
	Void             int            `json:"void"`
	HalfWon          int            `json:"half_won"`
	HalfLost         int            `json:"half_lost"`
	TotalPayoutCents int64          `json:"total_payout_cents"`
}

// Tally acumula uma aposta terminal no resumo
func (s *SettlementSummary) Tally(b Bet) {
	if !b.Status.IsTerminal() {
		return
	}
	s.TotalBets++
	switch b.Status {
	case BetWon:
		s.Won++
	case BetLost:
		s.Lost++
	case BetVoid:
		s.Void++
	case BetHalfWon:
		s.HalfWon++
	case BetHalfLost:
		s.HalfLost++
	}
	s.TotalPayoutCents += b.PayoutCents
}
