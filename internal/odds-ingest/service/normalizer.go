package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

var (
	// ErrMalformed indica payload do fornecedor inválido (o feed não é confiável)
	ErrMalformed = errors.New("malformed provider message")
	// ErrOutOfOrder indica seq menor que o último aplicado para o mercado
	ErrOutOfOrder = errors.New("out of order provider message")
)

// rawMarket é o formato bruto enviado pelo fornecedor
type rawMarket struct {
	EventID    string          `json:"event_id"`
	MarketID   string          `json:"market_id"`
	MarketType string          `json:"market_type"`
	Status     string          `json:"status"`
	MinStake   decimal.Decimal `json:"min_stake"`
	MaxStake   decimal.Decimal `json:"max_stake"`
	Seq        int64           `json:"seq"`
	Runners    []rawRunner     `json:"runners"`
	Score      *betting.Score  `json:"score,omitempty"`
}

type rawRunner struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Back   []decimal.Decimal `json:"back"` // [preço, tamanho]
	Lay    []decimal.Decimal `json:"lay"`
	Status string            `json:"status"`
}

var hundred = decimal.NewFromInt(100)

// Normalizer converte mensagens do fornecedor em PriceSnapshot e guarda o último
// snapshot por mercado para garantir as_of monotônico e emitir marcadores de stale
type Normalizer struct {
	mu   sync.Mutex
	last map[string]betting.PriceSnapshot
}

func NewNormalizer() *Normalizer {
	return &Normalizer{last: make(map[string]betting.PriceSnapshot)}
}

// Normalize valida e converte uma mensagem bruta
func (n *Normalizer) Normalize(raw []byte) (betting.PriceSnapshot, error) {
	var m rawMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		return betting.PriceSnapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	snap, err := m.toSnapshot()
	if err != nil {
		return betting.PriceSnapshot{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if prev, ok := n.last[snap.MarketID]; ok && snap.AsOf < prev.AsOf {
		return betting.PriceSnapshot{}, fmt.Errorf("%w: market %s seq %d < %d", ErrOutOfOrder, snap.MarketID, snap.AsOf, prev.AsOf)
	}
	n.last[snap.MarketID] = snap
	return snap, nil
}

// StaleMarkers devolve uma cópia do último snapshot de cada mercado com Stale=true e o mesmo AsOf
func (n *Normalizer) StaleMarkers() []betting.PriceSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]betting.PriceSnapshot, 0, len(n.last))
	for id, s := range n.last {
		if s.MarketStatus == betting.MarketClosed {
			continue
		}
		s.Stale = true
		n.last[id] = s
		out = append(out, s)
	}
	return out
}

func (m rawMarket) toSnapshot() (betting.PriceSnapshot, error) {
	if m.MarketID == "" || m.EventID == "" {
		return betting.PriceSnapshot{}, fmt.Errorf("%w: missing ids", ErrMalformed)
	}
	mt, err := betting.ParseMarketType(m.MarketType)
	if err != nil {
		return betting.PriceSnapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	st, err := marketStatus(m.Status)
	if err != nil {
		return betting.PriceSnapshot{}, err
	}
	minC := m.MinStake.Mul(hundred).Round(0).IntPart()
	maxC := m.MaxStake.Mul(hundred).Round(0).IntPart()
	if minC <= 0 || maxC < minC {
		return betting.PriceSnapshot{}, fmt.Errorf("%w: stake limits %s..%s", ErrMalformed, m.MinStake, m.MaxStake)
	}
	if m.Seq < 0 {
		return betting.PriceSnapshot{}, fmt.Errorf("%w: negative seq", ErrMalformed)
	}

	sels := make([]betting.Selection, 0, len(m.Runners))
	for _, r := range m.Runners {
		sel, err := r.toSelection()
		if err != nil {
			return betting.PriceSnapshot{}, err
		}
		sels = append(sels, sel)
	}

	return betting.PriceSnapshot{
		MarketID:      m.MarketID,
		EventID:       m.EventID,
		MarketType:    mt,
		MarketStatus:  st,
		MinStakeCents: minC,
		MaxStakeCents: maxC,
		Selections:    sels,
		AsOf:          m.Seq,
		Score:         m.Score,
	}, nil
}

func (r rawRunner) toSelection() (betting.Selection, error) {
	if r.ID == "" {
		return betting.Selection{}, fmt.Errorf("%w: runner without id", ErrMalformed)
	}
	st, err := betting.ParseSelectionStatus(r.Status)
	if err != nil {
		return betting.Selection{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	backP, backS, err := priceLevel(r.Back)
	if err != nil {
		return betting.Selection{}, err
	}
	layP, layS, err := priceLevel(r.Lay)
	if err != nil {
		return betting.Selection{}, err
	}
	return betting.Selection{
		ID: r.ID, Name: r.Name,
		BackPrice: backP, BackSize: backS,
		LayPrice: layP, LaySize: layS,
		Status: st,
	}, nil
}

// priceLevel aceita nível vazio (sem oferta) ou [preço>=1.01 com até 2 casas, tamanho>=0].
// Uma odd com mais casas seria arredondada ao gravar a aposta e o crédito divergiria do cotado.
func priceLevel(lv []decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if len(lv) == 0 {
		return decimal.Zero, decimal.Zero, nil
	}
	if len(lv) != 2 || lv[0].LessThan(betting.MinOdds) || lv[1].IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: price level %v", ErrMalformed, lv)
	}
	if !betting.ValidOddsPrecision(lv[0]) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: price %s has more than %d decimal places", ErrMalformed, lv[0], betting.OddsPlaces)
	}
	return lv[0], lv[1], nil
}

// marketStatus traduz o vocabulário do fornecedor para o nosso
func marketStatus(s string) (betting.MarketStatus, error) {
	switch s {
	case "OPEN", "ACTIVE":
		return betting.MarketActive, nil
	case "SUSPENDED":
		return betting.MarketSuspended, nil
	case "CLOSED":
		return betting.MarketClosed, nil
	}
	return "", fmt.Errorf("%w: market status %q", ErrMalformed, s)
}
