package events

import (
	"time"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

// Evento publicado no tópico "price_updates" (chave = market_id).
// Um snapshot com Stale=true e o mesmo AsOf sinaliza queda do feed upstream.
type PriceUpdate struct {
	Snapshot    betting.PriceSnapshot `json:"snapshot"`
	Source      string                `json:"source"`
	PublishedAt time.Time             `json:"published_at"`
}
