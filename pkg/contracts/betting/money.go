package betting

import "github.com/shopspring/decimal"

// MinOdds é a menor odd decimal aceita
var MinOdds = decimal.RequireFromString("1.01")

// OddsPlaces é a precisão máxima de uma odd; a mesma vale no feed e no banco
const OddsPlaces = 2

// ValidOddsPrecision indica se a odd tem no máximo OddsPlaces casas decimais
func ValidOddsPrecision(odds decimal.Decimal) bool {
	return odds.Equal(odds.Truncate(OddsPlaces))
}

// RequiredFunds é o valor bloqueado na colocação:
// BACK bloqueia o stake, LAY bloqueia a responsabilidade stake*(odd-1), arredondada para cima.
func RequiredFunds(t BetType, stakeCents int64, odds decimal.Decimal) int64 {
	if t == Lay {
		return decimal.NewFromInt(stakeCents).Mul(odds.Sub(decimal.NewFromInt(1))).Ceil().IntPart()
	}
	return stakeCents
}

// Profit é o ganho líquido de uma vitória completa:
// BACK ganha stake*(odd-1) (arredondado para baixo), LAY ganha o stake do apostador contrário.
func Profit(t BetType, stakeCents int64, odds decimal.Decimal) int64 {
	if t == Lay {
		return stakeCents
	}
	return decimal.NewFromInt(stakeCents).Mul(odds.Sub(decimal.NewFromInt(1))).Floor().IntPart()
}

// PotentialPayout é o crédito de uma vitória completa (valor bloqueado + lucro)
func PotentialPayout(t BetType, stakeCents int64, odds decimal.Decimal) int64 {
	return RequiredFunds(t, stakeCents, odds) + Profit(t, stakeCents, odds)
}

// OddsWithin compara a odd pedida com a corrente dentro da tolerância absoluta
func OddsWithin(requested, current, tolerance decimal.Decimal) bool {
	return requested.Sub(current).Abs().LessThanOrEqual(tolerance)
}
