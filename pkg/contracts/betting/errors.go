package betting

import "errors"

// Erros comuns às implementações de store (Postgres e memória)
var (
	ErrMarketNotFound    = errors.New("market not found")
	ErrMarketNotActive   = errors.New("market not accepting bets")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBusy              = errors.New("wallet busy")
	ErrBetNotFound       = errors.New("bet not found")
	ErrResultConflict    = errors.New("market already settling with a different result")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// ErrSettlementIncomplete indica apostas ainda PENDING ao concluir a liquidação
var ErrSettlementIncomplete = errors.New("settlement incomplete: pending bets remain")
