package placement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

var (
	ErrMarketNotFound    = betting.ErrMarketNotFound
	ErrMarketSuspended   = errors.New("market suspended")
	ErrStakeOutOfRange   = errors.New("stake out of range")
	ErrPriceChanged      = errors.New("price changed")
	ErrInsufficientFunds = betting.ErrInsufficientFunds
	ErrBusy              = betting.ErrBusy
	ErrInvalidRequest    = errors.New("invalid request")
	ErrBetNotFound       = betting.ErrBetNotFound
)

// PriceChangedError carrega a odd corrente para o cliente decidir se reenvia
type PriceChangedError struct {
	Requested decimal.Decimal
	Current   decimal.Decimal
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("price changed: requested %s, current %s", e.Requested, e.Current)
}

func (e *PriceChangedError) Unwrap() error { return ErrPriceChanged }

// Reason devolve o código estável do erro (métricas e corpo HTTP)
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrMarketNotFound):
		return "market_not_found"
	case errors.Is(err, ErrMarketSuspended):
		return "market_suspended"
	case errors.Is(err, ErrStakeOutOfRange):
		return "stake_out_of_range"
	case errors.Is(err, ErrPriceChanged):
		return "price_changed"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrBetNotFound):
		return "bet_not_found"
	}
	return "internal"
}
