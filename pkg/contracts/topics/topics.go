package topics

const (
	// Preços
	PriceUpdates = "price_updates"

	// Apostas
	BetPlaced     = "bet_placed"
	BetSettled    = "bet_settled"
	MarketSettled = "market_settled"

	// DLQs
	BetPlacedDLQ  = "bet_placed_dlq"
	BetSettledDLQ = "bet_settled_dlq"

	// Redis Pub/Sub usado pelo hub do odds-service
	PriceBroadcastChannel = "price_updates_broadcast"
)
