package feed

import (
	"errors"
	"math/rand"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/internal/supplier-simulator/dto"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

var ErrUnknownMarket = errors.New("unknown market")

// Fixture é um mercado simulado e seus runners
type Fixture struct {
	EventID    string
	MarketID   string
	MarketType betting.MarketType
	Home, Away string
	Runners    []string // ids; nomes derivados de Home/Away
}

// DefaultCatalog devolve partidas fixas usadas pelo simulador
func DefaultCatalog() []Fixture {
	return []Fixture{
		{EventID: "MATCH_001", MarketID: "MATCH_001-MO", MarketType: betting.MarketMatchOdds, Home: "Flamengo", Away: "Palmeiras", Runners: []string{"HOME", "DRAW", "AWAY"}},
		{EventID: "MATCH_002", MarketID: "MATCH_002-MO", MarketType: betting.MarketMatchOdds, Home: "Grêmio", Away: "Internacional", Runners: []string{"HOME", "DRAW", "AWAY"}},
		{EventID: "MATCH_003", MarketID: "MATCH_003-BM", MarketType: betting.MarketBookmaker, Home: "Corinthians", Away: "Santos", Runners: []string{"HOME", "AWAY"}},
		{EventID: "MATCH_004", MarketID: "MATCH_004-TOSS", MarketType: betting.MarketToss, Home: "São Paulo", Away: "Vasco", Runners: []string{"HOME", "AWAY"}},
	}
}

type marketState struct {
	fixture  Fixture
	seq      int64
	status   string
	declared bool
	result   string
	home     int
	away     int
}

// Simulator gera ticks de preço e guarda os resultados declarados
type Simulator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	order   []string
	markets map[string]*marketState
}

func NewSimulator(catalog []Fixture, seed int64) *Simulator {
	s := &Simulator{
		rnd:     rand.New(rand.NewSource(seed)),
		markets: make(map[string]*marketState, len(catalog)),
	}
	for _, f := range catalog {
		s.order = append(s.order, f.MarketID)
		s.markets[f.MarketID] = &marketState{fixture: f, status: "OPEN"}
	}
	return s
}

// Tick avança o seq de cada mercado e devolve as mensagens do feed.
// Mercados abertos ficam suspensos em ~5% dos ticks.
func (s *Simulator) Tick() []dto.RawMarket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.RawMarket, 0, len(s.order))
	for _, id := range s.order {
		m := s.markets[id]
		m.seq++
		if m.status != "CLOSED" {
			m.status = "OPEN"
			if s.rnd.Intn(100) < 5 {
				m.status = "SUSPENDED"
			}
			if s.rnd.Intn(100) < 10 {
				if s.rnd.Intn(2) == 0 {
					m.home++
				} else {
					m.away++
				}
			}
		}
		out = append(out, s.messageLocked(m))
	}
	return out
}

func (s *Simulator) messageLocked(m *marketState) dto.RawMarket {
	f := m.fixture
	msg := dto.RawMarket{
		EventID:    f.EventID,
		MarketID:   f.MarketID,
		MarketType: string(f.MarketType),
		Status:     m.status,
		MinStake:   decimal.NewFromInt(1),
		MaxStake:   decimal.NewFromInt(500),
		Seq:        m.seq,
		Score:      &betting.Score{Home: strconv.Itoa(m.home), Away: strconv.Itoa(m.away), Period: "1H"},
	}
	for _, r := range f.Runners {
		back := s.price(1.40, 5.00)
		lay := back.Add(decimal.RequireFromString("0.02"))
		msg.Runners = append(msg.Runners, dto.RawRunner{
			ID:     r,
			Name:   runnerName(f, r),
			Back:   []decimal.Decimal{back, decimal.NewFromInt(int64(100 + s.rnd.Intn(900)))},
			Lay:    []decimal.Decimal{lay, decimal.NewFromInt(int64(100 + s.rnd.Intn(900)))},
			Status: "ACTIVE",
		})
	}
	return msg
}

// price sorteia uma odd com duas casas entre min e max
func (s *Simulator) price(min, max float64) decimal.Decimal {
	return decimal.NewFromFloat(min + s.rnd.Float64()*(max-min)).Round(2)
}

// Declare fecha o mercado e registra o resultado
func (s *Simulator) Declare(marketID, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return ErrUnknownMarket
	}
	m.status = "CLOSED"
	m.declared = true
	m.result = result
	return nil
}

// Result devolve o resultado declarado do mercado
func (s *Simulator) Result(marketID string) (declared bool, result string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[marketID]
	if !ok {
		return false, "", ErrUnknownMarket
	}
	return m.declared, m.result, nil
}

func runnerName(f Fixture, id string) string {
	switch id {
	case "HOME":
		return f.Home
	case "AWAY":
		return f.Away
	case "DRAW":
		return "Empate"
	}
	return id
}
