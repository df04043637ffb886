package engine

import (
	"errors"

	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

var (
	ErrMarketNotFound = betting.ErrMarketNotFound
	ErrResultConflict = betting.ErrResultConflict
	ErrIncomplete     = betting.ErrSettlementIncomplete
	ErrInvalidRequest = errors.New("invalid settlement request")
)
