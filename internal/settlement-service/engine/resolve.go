package engine

import "github.com/radieske/sportsbook-core/pkg/contracts/betting"

// Outcome é o status final da aposta e o valor creditado no saldo.
// O valor bloqueado na colocação é sempre liberado; o crédito é independente disso.
type Outcome struct {
	Status      betting.BetStatus
	CreditCents int64
}

// Wins indica se a aposta vence com o resultado declarado (comparação exata de ID)
func Wins(b betting.Bet, resultCode string) bool {
	if b.Type == betting.Lay {
		return b.SelectionID != resultCode
	}
	return b.SelectionID == resultCode
}

// Resolve aplica o modo de liquidação:
//
//	normal:    WON credita bloqueado+lucro, LOST nada
//	void:      VOID devolve o bloqueado
//	half_win:  HALF_WON credita bloqueado+lucro/2, perdedoras LOST
//	half_lost: vencedoras WON integral, perdedoras HALF_LOST recebem metade do bloqueado
func Resolve(b betting.Bet, resultCode string, mode betting.SettlementMode) Outcome {
	if mode == betting.ModeVoid {
		return Outcome{Status: betting.BetVoid, CreditCents: b.LockedCents}
	}
	profit := betting.Profit(b.Type, b.StakeCents, b.Odds)
	win := Wins(b, resultCode)

	switch mode {
	case betting.ModeHalfWin:
		if win {
			return Outcome{Status: betting.BetHalfWon, CreditCents: b.LockedCents + profit/2}
		}
		return Outcome{Status: betting.BetLost}
	case betting.ModeHalfLost:
		if win {
			return Outcome{Status: betting.BetWon, CreditCents: b.LockedCents + profit}
		}
		return Outcome{Status: betting.BetHalfLost, CreditCents: b.LockedCents / 2}
	}

	if win {
		return Outcome{Status: betting.BetWon, CreditCents: b.LockedCents + profit}
	}
	return Outcome{Status: betting.BetLost}
}
