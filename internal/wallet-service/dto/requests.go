package dto

// MovementRequest é usado por depósito e saque
type MovementRequest struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
}
