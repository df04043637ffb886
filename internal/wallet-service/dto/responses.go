package dto

import "github.com/radieske/sportsbook-core/pkg/contracts/betting"

type WalletResponse struct {
	Wallet      betting.Wallet       `json:"wallet"`
	Transaction *betting.Transaction `json:"transaction,omitempty"`
}

type TransactionsResponse struct {
	UserID       string                `json:"userId"`
	Transactions []betting.Transaction `json:"transactions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
