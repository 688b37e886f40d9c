package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxMealSlot is the largest count a single breakfast/lunch/dinner slot may
// hold: 0 = absent, 1 = present, 2+ = with guests.
const MaxMealSlot = 3

// MaxCost is the exclusive upper bound of a single grocery expense.
var MaxCost = decimal.NewFromInt(100_000_000)

// Any non-zero amount with this exponent or above is at least MaxCost.
const maxCostExponent = 8

var (
	ErrSlotOutOfRange = fmt.Errorf("meal slot must be between 0 and %d", MaxMealSlot)
	ErrNegativeCost   = errors.New("cost must not be negative")
	ErrCostPrecision  = errors.New("cost must have at most two decimal places")
	ErrCostTooLarge   = errors.New("cost exceeds the maximum allowed amount")
)

// MealEntry records how many meals one member had on one date.
// (UserID, GroupID, Date) is unique; writes upsert on that key.
type MealEntry struct {
	ID        string
	UserID    string
	GroupID   string
	Date      Date
	Breakfast int
	Lunch     int
	Dinner    int
	CreatedAt int64
	UpdatedAt int64
}

// TotalMeals is the number of meal units the entry contributes.
func (e MealEntry) TotalMeals() int {
	return e.Breakfast + e.Lunch + e.Dinner
}

// ValidateSlots returns the name of the first slot outside [0, MaxMealSlot].
func (e MealEntry) ValidateSlots() (string, error) {
	slots := []struct {
		name  string
		value int
	}{
		{"breakfast", e.Breakfast},
		{"lunch", e.Lunch},
		{"dinner", e.Dinner},
	}
	for _, s := range slots {
		if s.value < 0 || s.value > MaxMealSlot {
			return s.name, ErrSlotOutOfRange
		}
	}
	return "", nil
}

// GroceryExpense is one purchase paid by a member for the group.
type GroceryExpense struct {
	ID       string
	UserID   string
	GroupID  string
	Date     Date
	Item     string
	Quantity string // free-form label, e.g. "2 kg"
	Cost     decimal.Decimal

	CreatedAt int64
	UpdatedAt int64
}

// ValidateCost rejects negative, oversized and sub-cent amounts. Money is
// never clamped or rounded on the way in.
func ValidateCost(cost decimal.Decimal) error {
	if cost.IsNegative() {
		return ErrNegativeCost
	}
	// IsInteger and Cmp walk or rescale by the exponent, so extreme exponents
	// are settled before either runs.
	if cost.IsZero() {
		return nil
	}
	if cost.Exponent() >= maxCostExponent {
		return ErrCostTooLarge
	}
	if !cost.Shift(2).IsInteger() {
		return ErrCostPrecision
	}
	if cost.GreaterThanOrEqual(MaxCost) {
		return ErrCostTooLarge
	}
	return nil
}

// Cents converts a validated amount to integer cents for storage.
func Cents(amount decimal.Decimal) int64 {
	if amount.IsZero() {
		return 0
	}
	return amount.Shift(2).IntPart()
}

// FromCents converts stored cents back to a two-decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
