// Package betslip mantém o cupom de apostas de um viewer antes do envio.
// Cada perna é uma aposta simples independente; não há múltiplas.
package betslip

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/internal/bet-service/dto"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

var (
	ErrLegNotFound  = errors.New("leg not found")
	ErrInvalidStake = errors.New("stake must be positive")
	ErrInvalidOdds  = errors.New("odds below minimum")
	ErrInvalidLeg   = errors.New("leg requires market, selection and bet type")
)

// LegKey identifica a perna: a mesma seleção com o mesmo tipo acumula stake
type LegKey struct {
	MarketID    string
	SelectionID string
	Type        betting.BetType
}

type Leg struct {
	MarketID      string          `json:"marketId"`
	EventID       string          `json:"eventId"`
	SelectionID   string          `json:"selectionId"`
	SelectionName string          `json:"selectionName"`
	Type          betting.BetType `json:"betType"`
	Odds          decimal.Decimal `json:"odds"`
	StakeCents    int64           `json:"stake_cents"`
}

func (l Leg) Key() LegKey {
	return LegKey{MarketID: l.MarketID, SelectionID: l.SelectionID, Type: l.Type}
}

// Liability é o valor que a perna bloqueia na carteira
func (l Leg) Liability() int64 { return betting.RequiredFunds(l.Type, l.StakeCents, l.Odds) }

// PotentialReturn é o crédito de uma vitória
func (l Leg) PotentialReturn() int64 { return betting.PotentialPayout(l.Type, l.StakeCents, l.Odds) }

type Totals struct {
	TotalStakeCents           int64 `json:"total_stake_cents"`
	TotalPotentialReturnCents int64 `json:"total_potential_return_cents"`
	TotalLiabilityCents       int64 `json:"total_liability_cents"` // só pernas LAY
}

// Slip pertence a um único viewer; não é seguro para uso concorrente
type Slip struct {
	legs  map[LegKey]*Leg
	order []LegKey
}

func New() *Slip {
	return &Slip{legs: make(map[LegKey]*Leg)}
}

// Add inclui a perna ou, se a chave já existe, soma o stake e atualiza a odd para a cotação mais nova
func (s *Slip) Add(l Leg) error {
	if l.MarketID == "" || l.SelectionID == "" {
		return ErrInvalidLeg
	}
	if _, err := betting.ParseBetType(string(l.Type)); err != nil {
		return ErrInvalidLeg
	}
	if l.StakeCents <= 0 {
		return ErrInvalidStake
	}
	if l.Odds.LessThan(betting.MinOdds) {
		return ErrInvalidOdds
	}

	k := l.Key()
	if cur, ok := s.legs[k]; ok {
		cur.StakeCents += l.StakeCents
		cur.Odds = l.Odds
		return nil
	}
	leg := l
	s.legs[k] = &leg
	s.order = append(s.order, k)
	return nil
}

func (s *Slip) Remove(k LegKey) error {
	if _, ok := s.legs[k]; !ok {
		return ErrLegNotFound
	}
	delete(s.legs, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Slip) UpdateStake(k LegKey, stakeCents int64) error {
	leg, ok := s.legs[k]
	if !ok {
		return ErrLegNotFound
	}
	if stakeCents <= 0 {
		return ErrInvalidStake
	}
	leg.StakeCents = stakeCents
	return nil
}

func (s *Slip) Clear() {
	s.legs = make(map[LegKey]*Leg)
	s.order = nil
}

// Legs devolve cópias na ordem de inclusão
func (s *Slip) Legs() []Leg {
	out := make([]Leg, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.legs[k])
	}
	return out
}

func (s *Slip) Len() int { return len(s.order) }

func (s *Slip) ComputeTotals() Totals {
	var t Totals
	for _, k := range s.order {
		l := s.legs[k]
		t.TotalStakeCents += l.StakeCents
		t.TotalPotentialReturnCents += l.PotentialReturn()
		if l.Type == betting.Lay {
			t.TotalLiabilityCents += l.Liability()
		}
	}
	return t
}

// Submission monta o payload de envio ao bet-service, uma requisição por perna
func (s *Slip) Submission(userID string) []dto.PlaceBetRequest {
	out := make([]dto.PlaceBetRequest, 0, len(s.order))
	for _, k := range s.order {
		l := s.legs[k]
		out = append(out, dto.PlaceBetRequest{
			UserID:      userID,
			MarketID:    l.MarketID,
			SelectionID: l.SelectionID,
			BetType:     string(l.Type),
			StakeCents:  l.StakeCents,
			Odds:        l.Odds,
		})
	}
	return out
}
