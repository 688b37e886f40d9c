package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/pkg/api"
)

// LedgerService implements the Connect LedgerService: meal and grocery
// expense entries.
type LedgerService struct {
	ledger *ledger.Ledger
}

var _ api.LedgerServiceHandler = (*LedgerService)(nil)

// NewLedgerService creates a new LedgerService.
func NewLedgerService(l *ledger.Ledger) *LedgerService {
	return &LedgerService{ledger: l}
}

// RecordMeal upserts one member's meals for a date.
func (s *LedgerService) RecordMeal(ctx context.Context, req *connect.Request[api.RecordMealRequest]) (*connect.Response[api.RecordMealResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("RecordMeal request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"date", req.Msg.Date,
	)

	date, err := parseDate("date", req.Msg.Date)
	if err != nil {
		return nil, toConnectError(ctx, "RecordMeal", err)
	}

	entry, created, err := s.ledger.RecordMeal(ctx, userID, ledger.MealInput{
		UserID:    req.Msg.UserID,
		GroupID:   req.Msg.GroupID,
		Date:      date,
		Breakfast: req.Msg.Breakfast,
		Lunch:     req.Msg.Lunch,
		Dinner:    req.Msg.Dinner,
	})
	if err != nil {
		return nil, toConnectError(ctx, "RecordMeal", err)
	}

	return connect.NewResponse(&api.RecordMealResponse{
		Entry:   mealToAPI(entry),
		Created: created,
	}), nil
}

// RecordMealSheet upserts a whole day's meals for several members.
func (s *LedgerService) RecordMealSheet(ctx context.Context, req *connect.Request[api.RecordMealSheetRequest]) (*connect.Response[api.RecordMealSheetResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("RecordMealSheet request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"date", req.Msg.Date,
		"rows", len(req.Msg.Rows),
	)

	date, err := parseDate("date", req.Msg.Date)
	if err != nil {
		return nil, toConnectError(ctx, "RecordMealSheet", err)
	}

	rows := make([]ledger.MealInput, 0, len(req.Msg.Rows))
	for _, r := range req.Msg.Rows {
		if r == nil {
			continue
		}
		rows = append(rows, ledger.MealInput{
			UserID:    r.UserID,
			Breakfast: r.Breakfast,
			Lunch:     r.Lunch,
			Dinner:    r.Dinner,
		})
	}

	entries, err := s.ledger.RecordMealSheet(ctx, userID, req.Msg.GroupID, date, rows)
	if err != nil {
		return nil, toConnectError(ctx, "RecordMealSheet", err)
	}

	return connect.NewResponse(&api.RecordMealSheetResponse{Entries: mealsToAPI(entries)}), nil
}

// ListMeals lists the group's meal entries for a period.
func (s *LedgerService) ListMeals(ctx context.Context, req *connect.Request[api.ListMealsRequest]) (*connect.Response[api.ListMealsResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}

	period, err := parsePeriod(s.ledger, req.Msg.Period)
	if err != nil {
		return nil, toConnectError(ctx, "ListMeals", err)
	}

	entries, err := s.ledger.ListMeals(ctx, userID, req.Msg.GroupID, period, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(ctx, "ListMeals", err)
	}

	slog.Debug("ListMeals successful",
		"group_id", req.Msg.GroupID,
		"period", period.String(),
		"count", len(entries),
	)
	return connect.NewResponse(&api.ListMealsResponse{Entries: mealsToAPI(entries)}), nil
}

// RecordExpense stores a grocery purchase.
func (s *LedgerService) RecordExpense(ctx context.Context, req *connect.Request[api.RecordExpenseRequest]) (*connect.Response[api.RecordExpenseResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordExpense request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"item", req.Msg.Item,
	)

	in, err := expenseInput(req.Msg.Date, req.Msg.Cost)
	if err != nil {
		return nil, toConnectError(ctx, "RecordExpense", err)
	}
	in.UserID = req.Msg.UserID
	in.GroupID = req.Msg.GroupID
	in.Item = req.Msg.Item
	in.Quantity = req.Msg.Quantity

	expense, err := s.ledger.RecordExpense(ctx, userID, in)
	if err != nil {
		return nil, toConnectError(ctx, "RecordExpense", err)
	}

	return connect.NewResponse(&api.RecordExpenseResponse{Expense: expenseToAPI(expense)}), nil
}

// UpdateExpense corrects an existing grocery purchase.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateExpense request received", "expense_id", req.Msg.ExpenseID, "user_id", userID)

	in, err := expenseInput(req.Msg.Date, req.Msg.Cost)
	if err != nil {
		return nil, toConnectError(ctx, "UpdateExpense", err)
	}
	in.Item = req.Msg.Item
	in.Quantity = req.Msg.Quantity

	expense, err := s.ledger.UpdateExpense(ctx, userID, req.Msg.ExpenseID, in)
	if err != nil {
		return nil, toConnectError(ctx, "UpdateExpense", err)
	}

	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: expenseToAPI(expense)}), nil
}

// ListExpenses lists the group's grocery expenses for a period.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}

	period, err := parsePeriod(s.ledger, req.Msg.Period)
	if err != nil {
		return nil, toConnectError(ctx, "ListExpenses", err)
	}

	expenses, err := s.ledger.ListExpenses(ctx, userID, req.Msg.GroupID, period, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(ctx, "ListExpenses", err)
	}

	out := make([]*api.GroceryExpense, len(expenses))
	for i := range expenses {
		out[i] = expenseToAPI(&expenses[i])
	}
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// expenseInput parses the wire date and cost shared by record and update.
func expenseInput(date, cost string) (ledger.ExpenseInput, error) {
	d, err := parseDate("date", date)
	if err != nil {
		return ledger.ExpenseInput{}, err
	}
	c, err := parseCost(cost)
	if err != nil {
		return ledger.ExpenseInput{}, err
	}
	return ledger.ExpenseInput{Date: d, Cost: c}, nil
}

