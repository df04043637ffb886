package topics

// Chaves Redis compartilhadas entre odds-processor (escrita), odds-service e bet-service (leitura)

// SnapshotKey guarda o hash {as_of, payload} do último snapshot de um mercado
func SnapshotKey(marketID string) string { return "price:snapshot:" + marketID }

// MarketIndexKey é o set de market_ids de um (evento, tipo de mercado); FANCY costuma ter vários
func MarketIndexKey(eventID, marketType string) string {
	return "price:index:" + eventID + ":" + marketType
}

// ExposureKey guarda o hash de exposição aberta por mercado (exposure-worker)
func ExposureKey(marketID string) string { return "exposure:" + marketID }
