package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

const rawOK = `{"event_id":"EV1","market_id":"M1","market_type":"MATCH_ODDS","status":"OPEN",
 "min_stake":10,"max_stake":5000,"seq":7,
 "runners":[{"id":"S1","name":"Team A","back":[2.0,150],"lay":[2.02,90],"status":"ACTIVE"},
            {"id":"S2","name":"Team A U19","back":[],"lay":[],"status":"SUSPENDED"}],
 "score":{"home":"1","away":"0"}}`

func TestNormalize_OK(t *testing.T) {
	n := NewNormalizer()
	s, err := n.Normalize([]byte(rawOK))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if s.MarketStatus != betting.MarketActive || s.AsOf != 7 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.MinStakeCents != 1000 || s.MaxStakeCents != 500000 {
		t.Fatalf("limits=%d..%d", s.MinStakeCents, s.MaxStakeCents)
	}
	sel, ok := s.Selection("S1")
	if !ok || sel.BackPrice.String() != "2" || sel.LayPrice.String() != "2.02" {
		t.Fatalf("selection=%+v ok=%v", sel, ok)
	}
	if _, ok := s.Selection("Team A"); ok {
		t.Fatalf("selection lookup must be by exact id")
	}
	if s.Score == nil || s.Score.Home != "1" {
		t.Fatalf("score not carried: %+v", s.Score)
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := map[string]string{
		"bad json":     `{`,
		"unknown type": `{"event_id":"E","market_id":"M","market_type":"MATCH","status":"OPEN","min_stake":1,"max_stake":2,"seq":1}`,
		"bad status":   `{"event_id":"E","market_id":"M","market_type":"TOSS","status":"LIVE","min_stake":1,"max_stake":2,"seq":1}`,
		"bad limits":   `{"event_id":"E","market_id":"M","market_type":"TOSS","status":"OPEN","min_stake":5,"max_stake":2,"seq":1}`,
		"low odds":     `{"event_id":"E","market_id":"M","market_type":"TOSS","status":"OPEN","min_stake":1,"max_stake":2,"seq":1,"runners":[{"id":"H","back":[1.0,5],"status":"ACTIVE"}]}`,
		"missing ids":  `{"market_type":"TOSS","status":"OPEN","min_stake":1,"max_stake":2,"seq":1}`,
	}
	for name, raw := range cases {
		if _, err := NewNormalizer().Normalize([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: err=%v want ErrMalformed", name, err)
		}
	}
}

func TestNormalize_OutOfOrderAndStaleMarkers(t *testing.T) {
	n := NewNormalizer()
	if _, err := n.Normalize([]byte(rawOK)); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	older := `{"event_id":"EV1","market_id":"M1","market_type":"MATCH_ODDS","status":"OPEN","min_stake":10,"max_stake":5000,"seq":6}`
	if _, err := n.Normalize([]byte(older)); !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("err=%v want ErrOutOfOrder", err)
	}

	markers := n.StaleMarkers()
	if len(markers) != 1 || !markers[0].Stale || markers[0].AsOf != 7 {
		t.Fatalf("markers=%+v", markers)
	}

	// mesma seq após reconexão limpa o stale
	s, err := n.Normalize([]byte(rawOK))
	if err != nil || s.Stale {
		t.Fatalf("reconnect snapshot stale=%v err=%v", s.Stale, err)
	}
}

func TestNormalize_RejectsSubCentOdds(t *testing.T) {
	raw := `{"event_id":"E","market_id":"M","market_type":"TOSS","status":"OPEN","min_stake":1,"max_stake":2,"seq":1,"runners":[{"id":"H","back":[2.125,5],"status":"ACTIVE"}]}`
	if _, err := NewNormalizer().Normalize([]byte(raw)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err=%v want ErrMalformed", err)
	}

	ok := `{"event_id":"E","market_id":"M","market_type":"TOSS","status":"OPEN","min_stake":1,"max_stake":2,"seq":1,"runners":[{"id":"H","back":[2.13,5],"lay":[2.150,5],"status":"ACTIVE"}]}`
	s, err := NewNormalizer().Normalize([]byte(ok))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if sel, _ := s.Selection("H"); !sel.BackPrice.Equal(decimal.RequireFromString("2.13")) {
		t.Fatalf("back=%s want 2.13", sel.BackPrice)
	}
}
