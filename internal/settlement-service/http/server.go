package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/settlement-service/dto"
	"github.com/radieske/sportsbook-core/internal/settlement-service/engine"
	"github.com/radieske/sportsbook-core/internal/settlement-service/provider"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

type Server struct {
	log *zap.Logger
	eng *engine.Engine
}

func NewServer(log *zap.Logger, eng *engine.Engine) *Server {
	return &Server{log: log, eng: eng}
}

// Router expõe /settlement com a operação escolhida por ?action=
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/settlement", s.dispatch)
	r.Post("/settlement", s.dispatch)
	return r
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch {
	case r.Method == http.MethodPost && action == "settle":
		s.settle(w, r)
	case r.Method == http.MethodPost && action == "batch-settle":
		s.batchSettle(w, r)
	case r.Method == http.MethodPost && action == "auto-settle":
		s.autoSettle(w, r)
	case r.Method == http.MethodGet && action == "get-pending":
		s.getPending(w, r)
	case r.Method == http.MethodGet && action == "get-market":
		s.getMarket(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_action", Message: "unknown action " + action + " for " + r.Method})
	}
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "bad json"})
		return
	}
	sum, err := s.eng.Settle(r.Context(), req.MarketID, req.ResultCode, modeOf(req.SettlementMode))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SettleResponse{Success: true, Summary: sum})
}

func (s *Server) batchSettle(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchSettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Markets) == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "markets required"})
		return
	}

	items := make([]engine.BatchItem, 0, len(req.Markets))
	for _, m := range req.Markets {
		items = append(items, engine.BatchItem{MarketID: m.MarketID, ResultCode: m.ResultCode, Mode: modeOf(m.SettlementMode)})
	}

	resp := dto.BatchSettleResponse{Success: true}
	for _, res := range s.eng.BatchSettle(r.Context(), items) {
		item := dto.BatchItemResult{MarketID: res.MarketID, Success: res.Err == nil}
		if res.Err != nil {
			_, item.Error = classify(res.Err)
			item.Message = res.Err.Error()
			resp.Success = false
		} else {
			sum := res.Summary
			item.Summary = &sum
		}
		resp.Results = append(resp.Results, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) autoSettle(w http.ResponseWriter, r *http.Request) {
	sweep, err := s.eng.AutoSettle(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AutoSettleResponse{Success: true, Sweep: sweep})
}

func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("marketId")
	if marketID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "marketId required"})
		return
	}
	bets, err := s.eng.Pending(r.Context(), marketID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if bets == nil {
		bets = []betting.Bet{}
	}
	writeJSON(w, http.StatusOK, dto.PendingResponse{Success: true, MarketID: marketID, Count: len(bets), Bets: bets})
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	marketID := r.URL.Query().Get("marketId")
	if marketID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "marketId required"})
		return
	}
	m, sum, err := s.eng.Market(r.Context(), marketID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MarketResponse{Success: true, Market: m, Summary: sum})
}

func modeOf(s string) betting.SettlementMode {
	if s == "" {
		return betting.ModeNormal
	}
	return betting.SettlementMode(s)
}

// classify devolve status HTTP e código de erro
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, engine.ErrMarketNotFound):
		return http.StatusNotFound, "market_not_found"
	case errors.Is(err, engine.ErrResultConflict):
		return http.StatusConflict, "result_conflict"
	case errors.Is(err, engine.ErrIncomplete):
		return http.StatusInternalServerError, "settlement_incomplete"
	case errors.Is(err, provider.ErrUpstreamUnavailable), errors.Is(err, provider.ErrSettlementRPC), errors.Is(err, provider.ErrMalformedResult):
		return http.StatusInternalServerError, "settlement_rpc"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("settlement request failed", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
