package models

import "github.com/shopspring/decimal"

// MemberTotals is one member's raw sums for a period, as read from the ledger.
// It is the input of aggregation and attribution, not a result.
type MemberTotals struct {
	UserID      string
	DisplayName string
	Role        Role

	Breakfasts int
	Lunches    int
	Dinners    int

	// SpentCents is the sum of the member's grocery costs in cents.
	SpentCents int64
}

// MealUnits is the member's total meal units for the period.
func (t MemberTotals) MealUnits() int {
	return t.Breakfasts + t.Lunches + t.Dinners
}

// Spent is the member's grocery spend for the period.
func (t MemberTotals) Spent() decimal.Decimal {
	return FromCents(t.SpentCents)
}

// PeriodSnapshot is every current member's totals for one group and period,
// read in a single consistent transaction.
type PeriodSnapshot struct {
	GroupID string
	Period  Period
	Members []MemberTotals
}

// Member returns the totals row of userID.
func (s PeriodSnapshot) Member(userID string) (MemberTotals, bool) {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return MemberTotals{}, false
}

// GroupPeriodSummary is the group-wide result for one period.
// Derived on every request; never persisted or cached.
type GroupPeriodSummary struct {
	GroupID           string
	Period            Period
	TotalMealUnits    int
	TotalGrocerySpend decimal.Decimal

	// CostPerMeal is TotalGrocerySpend / TotalMealUnits rounded to cents,
	// or zero when no meals were logged.
	CostPerMeal decimal.Decimal
}

// MemberPeriodSummary is one member's settlement position for one period.
type MemberPeriodSummary struct {
	UserID      string
	GroupID     string
	DisplayName string
	Role        Role
	Period      Period

	TotalMealUnits int
	Breakfasts     int
	Lunches        int
	Dinners        int

	TotalSpent decimal.Decimal
	TotalCost  decimal.Decimal

	// Balance is TotalSpent - TotalCost.
	// Positive = the group owes the member, negative = the member owes the group.
	Balance decimal.Decimal
}
