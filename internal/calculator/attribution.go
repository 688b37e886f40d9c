package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/models"
)

// SummarizeGroup runs aggregation and rate derivation over a snapshot.
func SummarizeGroup(snapshot models.PeriodSnapshot) models.GroupPeriodSummary {
	totals := AggregatePeriod(snapshot.Members)
	return models.GroupPeriodSummary{
		GroupID:           snapshot.GroupID,
		Period:            snapshot.Period,
		TotalMealUnits:    totals.MealUnits,
		TotalGrocerySpend: totals.Spend,
		CostPerMeal:       CostPerMeal(totals.Spend, totals.MealUnits),
	}
}

// AttributeMember charges one member the group rate for each of their meal
// units and nets it against what they spent.
//
//	total_cost = units × rate
//	balance    = spent - total_cost
//
// The rate must be the group's; there is no member-specific rate.
func AttributeMember(groupID string, period models.Period, totals models.MemberTotals, rate decimal.Decimal) models.MemberPeriodSummary {
	units := totals.MealUnits()
	spent := totals.Spent()
	cost := rate.Mul(decimal.NewFromInt(int64(units)))

	return models.MemberPeriodSummary{
		UserID:         totals.UserID,
		GroupID:        groupID,
		DisplayName:    totals.DisplayName,
		Role:           totals.Role,
		Period:         period,
		TotalMealUnits: units,
		Breakfasts:     totals.Breakfasts,
		Lunches:        totals.Lunches,
		Dinners:        totals.Dinners,
		TotalSpent:     spent,
		TotalCost:      cost,
		Balance:        spent.Sub(cost),
	}
}

// AttributeGroup summarizes the group and every member of the snapshot with
// the same rate.
func AttributeGroup(snapshot models.PeriodSnapshot) (models.GroupPeriodSummary, []models.MemberPeriodSummary) {
	group := SummarizeGroup(snapshot)
	members := make([]models.MemberPeriodSummary, len(snapshot.Members))
	for i, m := range snapshot.Members {
		members[i] = AttributeMember(snapshot.GroupID, snapshot.Period, m, group.CostPerMeal)
	}
	return group, members
}
