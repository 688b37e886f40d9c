package service

import (
	"context"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/auth"
	"github.com/mmynk/messbook/internal/calculator"
	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/internal/middleware"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/pkg/api"
)

// actorID returns the authenticated user set by the auth interceptor.
func actorID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseDate(field, s string) (models.Date, error) {
	if s == "" {
		return models.Date{}, &ledger.ValidationError{Field: field, Reason: "required"}
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return models.Date{}, &ledger.ValidationError{Field: field, Reason: "must be a valid YYYY-MM-DD date"}
	}
	return d, nil
}

// parsePeriod reads a YYYY-MM period; empty means the current month.
func parsePeriod(l *ledger.Ledger, s string) (models.Period, error) {
	if s == "" {
		return l.CurrentPeriod(), nil
	}
	p, err := models.ParsePeriod(s)
	if err != nil {
		return models.Period{}, &ledger.ValidationError{Field: "period", Reason: "must be YYYY-MM"}
	}
	return p, nil
}

func parseCost(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, &ledger.ValidationError{Field: "cost", Reason: "required"}
	}
	cost, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ledger.ValidationError{Field: "cost", Reason: "must be a decimal number"}
	}
	return cost, nil
}

func userToAPI(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
	}
}

func groupToAPI(g *models.Group) *api.Group {
	members := make([]*api.Member, len(g.Members))
	for i, m := range g.Members {
		members[i] = &api.Member{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			JoinedAt:    m.JoinedAt,
		}
	}
	return &api.Group{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		JoinCode:    g.JoinCode,
		AdminID:     g.AdminID,
		CreatedAt:   g.CreatedAt,
		Members:     members,
	}
}

func mealToAPI(e *models.MealEntry) *api.MealEntry {
	return &api.MealEntry{
		ID:        e.ID,
		UserID:    e.UserID,
		GroupID:   e.GroupID,
		Date:      e.Date.String(),
		Breakfast: e.Breakfast,
		Lunch:     e.Lunch,
		Dinner:    e.Dinner,
		Total:     e.TotalMeals(),
		UpdatedAt: e.UpdatedAt,
	}
}

func mealsToAPI(entries []models.MealEntry) []*api.MealEntry {
	out := make([]*api.MealEntry, len(entries))
	for i := range entries {
		out[i] = mealToAPI(&entries[i])
	}
	return out
}

func expenseToAPI(e *models.GroceryExpense) *api.GroceryExpense {
	return &api.GroceryExpense{
		ID:        e.ID,
		UserID:    e.UserID,
		GroupID:   e.GroupID,
		Date:      e.Date.String(),
		Item:      e.Item,
		Quantity:  e.Quantity,
		Cost:      money(e.Cost),
		UpdatedAt: e.UpdatedAt,
	}
}

func groupSummaryToAPI(s models.GroupPeriodSummary) *api.GroupSummary {
	return &api.GroupSummary{
		GroupID:           s.GroupID,
		Period:            s.Period.String(),
		TotalMealUnits:    s.TotalMealUnits,
		TotalGrocerySpend: money(s.TotalGrocerySpend),
		CostPerMeal:       money(s.CostPerMeal),
	}
}

func memberSummaryToAPI(s models.MemberPeriodSummary) *api.MemberSummary {
	return &api.MemberSummary{
		UserID:         s.UserID,
		DisplayName:    s.DisplayName,
		Role:           string(s.Role),
		Period:         s.Period.String(),
		TotalMealUnits: s.TotalMealUnits,
		Breakfasts:     s.Breakfasts,
		Lunches:        s.Lunches,
		Dinners:        s.Dinners,
		TotalSpent:     money(s.TotalSpent),
		TotalCost:      money(s.TotalCost),
		Balance:        money(s.Balance),
	}
}

func transfersToAPI(transfers []calculator.Transfer) []*api.Transfer {
	out := make([]*api.Transfer, len(transfers))
	for i, t := range transfers {
		out[i] = &api.Transfer{FromUserID: t.From, ToUserID: t.To, Amount: money(t.Amount)}
	}
	return out
}
