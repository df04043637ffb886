package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func echo(name string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.URL.RequestURI())
	}))
}

func TestRouterStripsPrefix(t *testing.T) {
	odds, wallet, bets, settle := echo("odds"), echo("wallet"), echo("bets"), echo("settlement")
	defer odds.Close()
	defer wallet.Close()
	defer bets.Close()
	defer settle.Close()

	h, err := NewRouter(Targets{Odds: odds.URL, Wallet: wallet.URL, Bets: bets.URL, Settlement: settle.URL})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	cases := []struct{ path, want string }{
		{"/api/odds/v1/markets/M1/snapshot", "odds /v1/markets/M1/snapshot"},
		{"/api/wallet/wallet?userId=u1", "wallet /wallet?userId=u1"},
		{"/api/bets/bets/b1", "bets /bets/b1"},
		{"/api/settlement/settlement?action=get-market&marketId=M1", "settlement /settlement?action=get-market&marketId=M1"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, c.path, nil))
		if got := rec.Body.String(); got != c.want {
			t.Fatalf("%s: got=%q want=%q", c.path, got, c.want)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("%s: missing CORS header", c.path)
		}
	}
}

func TestRouterPreflight(t *testing.T) {
	h, err := NewRouter(Targets{Odds: "http://a", Wallet: "http://b", Bets: "http://c", Settlement: "http://d"})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/bets/bets", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("code=%d want=204", rec.Code)
	}
}

func TestRouterRejectsBadTarget(t *testing.T) {
	if _, err := NewRouter(Targets{Odds: "::", Wallet: "http://b", Bets: "http://c", Settlement: "http://d"}); err == nil {
		t.Fatalf("expected error for invalid upstream")
	}
}
