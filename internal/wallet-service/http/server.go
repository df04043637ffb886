package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/wallet-service/dto"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (betting.Wallet, error)
	Deposit(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error)
	Withdraw(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]betting.Transaction, error)
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna as rotas da API de wallet
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/wallet", s.getWallet)
	r.Post("/wallet/deposit", s.movement(s.repo.Deposit))
	r.Post("/wallet/withdraw", s.movement(s.repo.Withdraw))
	r.Get("/wallet/transactions", s.listTransactions)
	return r
}

// getWallet retorna (ou cria) a carteira do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}
	wl, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{Wallet: wl})
}

type movementFunc func(ctx context.Context, userID string, amountCents int64) (betting.Wallet, betting.Transaction, error)

// movement trata depósito e saque, ambos gravam uma transação no ledger
func (s *Server) movement(fn movementFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.MovementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
			return
		}
		if req.UserID == "" || req.AmountCents <= 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload"})
			return
		}
		wl, tx, err := fn(r.Context(), req.UserID, req.AmountCents)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.WalletResponse{Wallet: wl, Transaction: &tx})
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	txs, err := s.repo.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if txs == nil {
		txs = []betting.Transaction{}
	}
	writeJSON(w, http.StatusOK, dto.TransactionsResponse{UserID: userID, Transactions: txs})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, betting.ErrInvalidAmount):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, betting.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, betting.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
	default:
		s.log.Error("wallet request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
