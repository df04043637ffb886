package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// Targets são as URLs base dos serviços internos
type Targets struct {
	Odds       string
	Wallet     string
	Bets       string
	Settlement string
}

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q: %v", to, err)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// NewRouter monta o roteamento /api/{serviço}/* -> serviço, removendo o prefixo
func NewRouter(t Targets) (http.Handler, error) {
	routes := []struct {
		prefix string
		target string
	}{
		{"/api/odds", t.Odds},
		{"/api/wallet", t.Wallet},
		{"/api/bets", t.Bets},
		{"/api/settlement", t.Settlement},
	}

	r := chi.NewRouter()
	r.Use(withCORS)
	for _, rt := range routes {
		proxy, err := rp(rt.target)
		if err != nil {
			return nil, err
		}
		r.Handle(rt.prefix+"/*", http.StripPrefix(rt.prefix, proxy))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
