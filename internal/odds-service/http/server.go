package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/sportsbook-core/internal/odds-service/dto"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// MarketReader é a leitura autoritativa de mercados (Postgres)
type MarketReader interface {
	ListMarkets(ctx context.Context, eventID string) ([]betting.Market, error)
	GetCurrent(ctx context.Context, marketID string) (betting.PriceSnapshot, error)
}

// SnapshotReader é o cache de snapshots (Redis)
type SnapshotReader interface {
	Get(ctx context.Context, marketID string) (betting.PriceSnapshot, error)
}

// API expõe os endpoints REST de consulta de preços
// O cache é a fonte preferencial; o Postgres cobre a ausência no cache
type API struct {
	ReadRepo MarketReader
	Cache    SnapshotReader
	WS       http.HandlerFunc // /ws do hub (opcional)
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/events/{id}/markets", a.listMarkets)
	r.Get("/v1/markets/{id}/snapshot", a.getSnapshot)
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) listMarkets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mk, err := a.ReadRepo.ListMarkets(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	out := dto.EventMarkets{EventID: id, Markets: make([]dto.MarketView, 0, len(mk))}
	for _, m := range mk {
		view := dto.MarketView{Market: m}
		if s, err := a.snapshot(r.Context(), m.ID); err == nil {
			view.Snapshot = &s
		}
		out.Markets = append(out.Markets, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := a.snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
		return
	}
	// placar só via assinatura com include_score
	s.Score = nil
	writeJSON(w, http.StatusOK, s)
}

func (a *API) snapshot(ctx context.Context, marketID string) (betting.PriceSnapshot, error) {
	if a.Cache != nil {
		if s, err := a.Cache.Get(ctx, marketID); err == nil {
			return s, nil
		}
	}
	if a.ReadRepo == nil {
		return betting.PriceSnapshot{}, errors.New("no snapshot source")
	}
	return a.ReadRepo.GetCurrent(ctx, marketID)
}
