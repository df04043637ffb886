package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/bet-service/dto"
	"github.com/radieske/sportsbook-core/internal/bet-service/placement"
	"github.com/radieske/sportsbook-core/internal/shared/memstore"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

type staticPrices map[string]betting.PriceSnapshot

func (p staticPrices) Current(_ context.Context, id string) (betting.PriceSnapshot, error) {
	s, ok := p[id]
	if !ok {
		return s, errors.New("no price")
	}
	return s, nil
}

func newServer(t *testing.T) (http.Handler, *memstore.Store) {
	t.Helper()
	st := memstore.New(20 * time.Millisecond)
	st.PutMarket(betting.Market{ID: "M1", EventID: "EV1", Status: betting.MarketActive, MinStakeCents: 10, MaxStakeCents: 5000})
	_, _, _ = st.Deposit(context.Background(), "u1", 500)
	prices := staticPrices{"M1": {
		MarketID: "M1", EventID: "EV1", MarketStatus: betting.MarketActive, AsOf: 1,
		Selections: []betting.Selection{{ID: "S1", BackPrice: decimal.RequireFromString("2.00"),
			LayPrice: decimal.RequireFromString("2.02"), Status: betting.SelectionActive}},
	}}
	svc := placement.NewService(st, prices, nil, zap.NewNop(), decimal.Zero, placement.Hooks{})
	return NewServer(zap.NewNop(), svc).Router(), st
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bets", strings.NewReader(body)))
	return rec
}

func TestPlaceBetStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"created", `{"userId":"u1","marketId":"M1","selectionId":"S1","betType":"BACK","stake_cents":100,"odds":"2.00"}`, http.StatusCreated, ""},
		{"bad json", `{`, http.StatusBadRequest, "invalid_request"},
		{"not found", `{"userId":"u1","marketId":"MX","selectionId":"S1","betType":"BACK","stake_cents":100,"odds":"2.00"}`, http.StatusNotFound, "market_not_found"},
		{"stake", `{"userId":"u1","marketId":"M1","selectionId":"S1","betType":"BACK","stake_cents":1,"odds":"2.00"}`, http.StatusUnprocessableEntity, "stake_out_of_range"},
		{"price", `{"userId":"u1","marketId":"M1","selectionId":"S1","betType":"BACK","stake_cents":100,"odds":"2.50"}`, http.StatusConflict, "price_changed"},
		{"funds", `{"userId":"u1","marketId":"M1","selectionId":"S1","betType":"BACK","stake_cents":900,"odds":"2.00"}`, http.StatusPaymentRequired, "insufficient_funds"},
		{"suspended", `{"userId":"u1","marketId":"M1","selectionId":"S9","betType":"BACK","stake_cents":100,"odds":"2.00"}`, http.StatusConflict, "market_suspended"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h, _ := newServer(t)
			rec := post(h, c.body)
			if rec.Code != c.status {
				t.Fatalf("status=%d want=%d body=%s", rec.Code, c.status, rec.Body.String())
			}
			if c.code == "" {
				return
			}
			var e dto.ErrorResponse
			_ = json.Unmarshal(rec.Body.Bytes(), &e)
			if e.Error != c.code {
				t.Fatalf("error=%q want=%q", e.Error, c.code)
			}
			if c.code == "price_changed" && (e.CurrentOdds == nil || !e.CurrentOdds.Equal(decimal.NewFromInt(2))) {
				t.Fatalf("current_odds=%v", e.CurrentOdds)
			}
		})
	}
}

func TestPlaceBetBusyHasRetryAfter(t *testing.T) {
	h, st := newServer(t)
	release, _ := st.AcquireWallet(context.Background(), "u1")
	defer release()

	rec := post(h, `{"userId":"u1","marketId":"M1","selectionId":"S1","betType":"BACK","stake_cents":100,"odds":"2.00"}`)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestGetBet(t *testing.T) {
	h, _ := newServer(t)
	rec := post(h, `{"userId":"u1","marketId":"M1","selectionId":"S1","betType":"BACK","stake_cents":100,"odds":"2.00"}`)
	var created dto.PlaceBetResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	if created.BalanceCents != 400 || created.LockedCents != 100 {
		t.Fatalf("response=%+v", created)
	}

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/bets/"+created.BetID, nil))
	if get.Code != http.StatusOK {
		t.Fatalf("status=%d", get.Code)
	}
	miss := httptest.NewRecorder()
	h.ServeHTTP(miss, httptest.NewRequest(http.MethodGet, "/bets/nope", nil))
	if miss.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=404", miss.Code)
	}
}
