package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radieske/sportsbook-core/internal/odds-service/dto"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

type fakeRepo struct {
	markets []betting.Market
	current map[string]betting.PriceSnapshot
}

func (f fakeRepo) ListMarkets(context.Context, string) ([]betting.Market, error) {
	return f.markets, nil
}

func (f fakeRepo) GetCurrent(_ context.Context, id string) (betting.PriceSnapshot, error) {
	s, ok := f.current[id]
	if !ok {
		return s, errors.New("not found")
	}
	return s, nil
}

type fakeCache map[string]betting.PriceSnapshot

func (f fakeCache) Get(_ context.Context, id string) (betting.PriceSnapshot, error) {
	s, ok := f[id]
	if !ok {
		return s, errors.New("miss")
	}
	return s, nil
}

func TestGetSnapshot_CacheThenRepo(t *testing.T) {
	api := &API{
		ReadRepo: fakeRepo{current: map[string]betting.PriceSnapshot{"M2": {MarketID: "M2", AsOf: 2}}},
		Cache:    fakeCache{"M1": {MarketID: "M1", AsOf: 7, Score: &betting.Score{Home: "1"}}},
	}
	h := api.Router()

	cases := []struct {
		id     string
		status int
		asOf   int64
	}{
		{"M1", http.StatusOK, 7},
		{"M2", http.StatusOK, 2},
		{"M3", http.StatusNotFound, 0},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/markets/"+c.id+"/snapshot", nil))
		if rec.Code != c.status {
			t.Fatalf("%s: status=%d want=%d", c.id, rec.Code, c.status)
		}
		if c.status != http.StatusOK {
			continue
		}
		var s betting.PriceSnapshot
		_ = json.Unmarshal(rec.Body.Bytes(), &s)
		if s.AsOf != c.asOf || s.Score != nil {
			t.Fatalf("%s: snapshot=%+v", c.id, s)
		}
	}
}

func TestListMarkets(t *testing.T) {
	api := &API{
		ReadRepo: fakeRepo{markets: []betting.Market{{ID: "M1", EventID: "EV1"}, {ID: "M9", EventID: "EV1"}}},
		Cache:    fakeCache{"M1": {MarketID: "M1", AsOf: 1}},
	}
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/EV1/markets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var out dto.EventMarkets
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Markets) != 2 || out.Markets[0].Snapshot == nil || out.Markets[1].Snapshot != nil {
		t.Fatalf("markets=%+v", out.Markets)
	}
}
