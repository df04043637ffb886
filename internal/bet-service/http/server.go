package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/bet-service/dto"
	"github.com/radieske/sportsbook-core/internal/bet-service/placement"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

type Server struct {
	log *zap.Logger
	svc *placement.Service
}

func NewServer(log *zap.Logger, svc *placement.Service) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/bets", s.placeBet)
	r.Get("/bets/{id}", s.getBet)
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "bad json"})
		return
	}

	res, err := s.svc.Place(r.Context(), placement.Request{
		UserID:      req.UserID,
		MarketID:    req.MarketID,
		SelectionID: req.SelectionID,
		Type:        betting.BetType(req.BetType),
		Odds:        req.Odds,
		StakeCents:  req.StakeCents,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		BetID:                res.Bet.ID,
		Status:               string(res.Bet.Status),
		Odds:                 res.Bet.Odds,
		RequiredCents:        res.Bet.LockedCents,
		PotentialPayoutCents: res.Bet.PotentialPayoutCents,
		BalanceCents:         res.Wallet.BalanceCents,
		LockedCents:          res.Wallet.LockedCents,
	})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetStatusResponse{Bet: b})
}

// writeError traduz os erros da colocação para status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := dto.ErrorResponse{Error: placement.Reason(err), Message: err.Error()}
	status := http.StatusInternalServerError

	var pc *placement.PriceChangedError
	switch {
	case errors.As(err, &pc):
		status = http.StatusConflict
		cur := pc.Current
		body.CurrentOdds = &cur
	case errors.Is(err, placement.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, placement.ErrMarketNotFound), errors.Is(err, placement.ErrBetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, placement.ErrMarketSuspended):
		status = http.StatusConflict
	case errors.Is(err, placement.ErrStakeOutOfRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, placement.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, placement.ErrBusy):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	default:
		s.log.Error("bet request failed", zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
