package calculator

import "github.com/shopspring/decimal"

// RatePlaces is the number of decimal places the cost-per-meal rate keeps.
const RatePlaces = 2

// CostPerMeal derives the uniform per-meal rate of a period:
//
//	rate = spend / units, rounded half away from zero to RatePlaces
//
// A period with no meal units has rate zero; the division is never attempted.
func CostPerMeal(spend decimal.Decimal, units int) decimal.Decimal {
	if units <= 0 {
		return decimal.Zero
	}
	return spend.DivRound(decimal.NewFromInt(int64(units)), RatePlaces)
}
