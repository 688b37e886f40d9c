package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/models"
)

// GroupTotals are the group-level sums for one period.
type GroupTotals struct {
	MealUnits int
	Spend     decimal.Decimal
}

// AggregatePeriod sums the per-member rows of a period snapshot into group
// totals. Because the group figures are built from exactly the rows that are
// later attributed, meal units are conserved across members by construction.
func AggregatePeriod(members []models.MemberTotals) GroupTotals {
	var units int
	var cents int64
	for _, m := range members {
		units += m.MealUnits()
		cents += m.SpentCents
	}
	return GroupTotals{
		MealUnits: units,
		Spend:     models.FromCents(cents),
	}
}
