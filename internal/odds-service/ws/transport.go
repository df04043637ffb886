package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server expõe o hub via WebSocket, uma Subscription por conexão
type Server struct {
	Hub      *Hub
	Log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer cria o transporte com política customizada de origem (CORS)
func NewServer(hub *Hub, log *zap.Logger, allowOrigin func(r *http.Request) bool) *Server {
	return &Server{
		Hub:      hub,
		Log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// O leitor trata subscribe/unsubscribe/ping e o escritor drena a Subscription.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	viewerID := uuid.NewString()
	sub := s.Hub.Subscribe(ctx, viewerID, nil, SubscribeOptions{})
	defer s.Hub.Unsubscribe(viewerID)

	// gorilla permite um único escritor concorrente
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			updates, err := sub.Next(ctx)
			if err != nil {
				return
			}
			for _, u := range updates {
				if err := write(u); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			sub.SetIncludeScore(msg.IncludeScore)
			s.Hub.Watch(ctx, sub, msg.Keys)
		case "unsubscribe":
			s.Hub.Unwatch(sub, msg.Keys)
		case "ping":
			_ = write(ServerMsg{Type: "pong"})
		default:
			_ = write(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}

	cancel()
	<-done
	s.Log.Debug("viewer disconnected", zap.String("viewer_id", viewerID))
}
