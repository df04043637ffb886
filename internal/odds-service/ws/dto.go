package ws

import "github.com/radieske/sportsbook-core/pkg/contracts/betting"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Keys: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type         string              `json:"type"`
	Keys         []betting.MarketKey `json:"keys"`
	IncludeScore bool                `json:"includeScore"`
}

// Update é o quadro enviado ao viewer com o snapshot mais recente de um mercado
type Update struct {
	Type     string                `json:"type"` // "price"
	Snapshot betting.PriceSnapshot `json:"snapshot"`
}

// ServerMsg cobre respostas de controle (pong, erro)
type ServerMsg struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}
