package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/supplier-simulator/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server expõe o feed WS e a API de resultados do fornecedor simulado
type Server struct {
	Sim *Simulator
	Hub *Hub
	Log *zap.Logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/results", s.getResult)
	r.Post("/results", s.declare)
	return r
}

// Run publica um tick a cada intervalo até o ctx ser cancelado
func (s *Server) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, m := range s.Sim.Tick() {
				s.Hub.Broadcast(m)
			}
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &clientConn{id: uuid.NewString(), conn: conn}
	s.Hub.add(c)

	// Mantém a conexão viva e remove o cliente ao desconectar
	go func() {
		defer func() {
			s.Hub.remove(c.id)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	declared, result, err := s.Sim.Result(r.URL.Query().Get("marketId"))
	if errors.Is(err, ErrUnknownMarket) {
		http.Error(w, "unknown market", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResultResp{IsDeclared: &declared, FinalResult: result})
}

func (s *Server) declare(w http.ResponseWriter, r *http.Request) {
	var req dto.DeclareReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MarketID == "" || req.FinalResult == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.Sim.Declare(req.MarketID, req.FinalResult); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.Log.Info("result declared", zap.String("market_id", req.MarketID), zap.String("final_result", req.FinalResult))
	declared := true
	writeJSON(w, http.StatusOK, dto.ResultResp{IsDeclared: &declared, FinalResult: req.FinalResult})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
