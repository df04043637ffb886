package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/odds-ingest/service"
	"github.com/radieske/sportsbook-core/internal/settlement-service/provider"
)

func TestTicksNormalize(t *testing.T) {
	sim := NewSimulator(DefaultCatalog(), 42)
	n := service.NewNormalizer()
	for i := 0; i < 20; i++ {
		for _, m := range sim.Tick() {
			raw, err := json.Marshal(m)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			snap, err := n.Normalize(raw)
			if err != nil {
				t.Fatalf("tick %d market %s: %v", i, m.MarketID, err)
			}
			if snap.AsOf != int64(i+1) {
				t.Fatalf("as_of=%d want=%d", snap.AsOf, i+1)
			}
		}
	}
}

func TestResultsAPIWithProviderClient(t *testing.T) {
	sim := NewSimulator(DefaultCatalog(), 1)
	srv := httptest.NewServer((&Server{Sim: sim, Hub: NewHub(zap.NewNop()), Log: zap.NewNop()}).Router())
	defer srv.Close()
	client := provider.NewClient(srv.URL, provider.Options{Timeout: time.Second, RPS: 100})

	declared, _, err := client.Result(context.Background(), "MATCH_001", "MATCH_001-MO")
	if err != nil || declared {
		t.Fatalf("before declare: declared=%v err=%v", declared, err)
	}

	resp, err := http.Post(srv.URL+"/results", "application/json",
		strings.NewReader(`{"market_id":"MATCH_001-MO","final_result":"HOME"}`))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("declare: status=%v err=%v", resp, err)
	}
	resp.Body.Close()

	declared, code, err := client.Result(context.Background(), "MATCH_001", "MATCH_001-MO")
	if err != nil || !declared || code != "HOME" {
		t.Fatalf("after declare: declared=%v code=%q err=%v", declared, code, err)
	}

	for _, m := range sim.Tick() {
		if m.MarketID == "MATCH_001-MO" && m.Status != "CLOSED" {
			t.Fatalf("declared market status=%s want CLOSED", m.Status)
		}
	}

	if declared, _, err := client.Result(context.Background(), "X", "unknown"); err != nil || declared {
		t.Fatalf("unknown market: declared=%v err=%v", declared, err)
	}
}
