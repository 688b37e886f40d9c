package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

const (
	maxItemLength     = 100
	maxQuantityLength = 50
)

// ExpenseInput describes a grocery purchase.
type ExpenseInput struct {
	// UserID is the member who paid; empty means the actor. Only the admin
	// may record an expense paid by someone else.
	UserID   string
	GroupID  string
	Date     models.Date
	Item     string
	Quantity string
	Cost     decimal.Decimal
}

func validateExpense(in *ExpenseInput) error {
	in.Item = strings.TrimSpace(in.Item)
	in.Quantity = strings.TrimSpace(in.Quantity)

	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if in.Item == "" {
		return &ValidationError{Field: "item", Reason: "required"}
	}
	if len(in.Item) > maxItemLength {
		return &ValidationError{Field: "item", Reason: "too long"}
	}
	if len(in.Quantity) > maxQuantityLength {
		return &ValidationError{Field: "quantity", Reason: "too long"}
	}
	if err := models.ValidateCost(in.Cost); err != nil {
		return &ValidationError{Field: "cost", Reason: err.Error()}
	}
	// Canonical two-decimal form; "0e-9" and "0.00" are the same cost.
	in.Cost = models.FromCents(models.Cents(in.Cost))
	return nil
}

// RecordExpense stores a new grocery expense for the group.
func (l *Ledger) RecordExpense(ctx context.Context, actorID string, in ExpenseInput) (*models.GroceryExpense, error) {
	if in.UserID == "" {
		in.UserID = actorID
	}
	if err := validateExpense(&in); err != nil {
		return nil, err
	}

	actor, err := l.Authorize(ctx, actorID, in.GroupID)
	if err != nil {
		return nil, err
	}
	if in.UserID != actorID {
		if !actor.IsAdmin() {
			return nil, &PermissionError{Action: "record an expense for another member"}
		}
		if _, err := l.requireSameGroup(ctx, in.UserID, in.GroupID); err != nil {
			return nil, err
		}
	}

	expense := &models.GroceryExpense{
		UserID:   in.UserID,
		GroupID:  in.GroupID,
		Date:     in.Date,
		Item:     in.Item,
		Quantity: in.Quantity,
		Cost:     in.Cost,
	}
	if err := l.store.CreateExpense(ctx, expense); err != nil {
		return nil, translate(err, "failed to record expense", "expense", expense.ID)
	}

	slog.InfoContext(ctx, "Recorded grocery expense",
		"group_id", expense.GroupID,
		"user_id", expense.UserID,
		"expense_id", expense.ID,
		"cost", expense.Cost.StringFixed(2))

	l.publish(ctx, expenseEvent(amqp.EventExpenseRecorded, actorID, expense))
	return expense, nil
}

// UpdateExpense replaces date, item, quantity and cost of an expense. The
// payer and group never change. Allowed for the payer and the group admin.
func (l *Ledger) UpdateExpense(ctx context.Context, actorID, expenseID string, in ExpenseInput) (*models.GroceryExpense, error) {
	expense, err := l.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, translate(err, "failed to get expense", "expense", expenseID)
	}

	in.UserID = expense.UserID
	in.GroupID = expense.GroupID
	if err := validateExpense(&in); err != nil {
		return nil, err
	}

	actor, err := l.Authorize(ctx, actorID, expense.GroupID)
	if err != nil {
		return nil, err
	}
	if expense.UserID != actorID && !actor.IsAdmin() {
		return nil, &PermissionError{Action: "update another member's expense"}
	}

	expense.Date = in.Date
	expense.Item = in.Item
	expense.Quantity = in.Quantity
	expense.Cost = in.Cost
	if err := l.store.UpdateExpense(ctx, expense); err != nil {
		return nil, translate(err, "failed to update expense", "expense", expenseID)
	}

	slog.InfoContext(ctx, "Updated grocery expense",
		"group_id", expense.GroupID,
		"expense_id", expense.ID,
		"updated_by", actorID)

	l.publish(ctx, expenseEvent(amqp.EventExpenseUpdated, actorID, expense))
	return expense, nil
}

// ListExpenses returns the group's expenses for the period, newest first.
func (l *Ledger) ListExpenses(ctx context.Context, actorID, groupID string, period models.Period, userID string) ([]models.GroceryExpense, error) {
	if err := period.Validate(); err != nil {
		return nil, &ValidationError{Field: "period", Reason: err.Error()}
	}
	if _, err := l.Authorize(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	expenses, err := l.store.ListExpenses(ctx, storage.LedgerFilter{GroupID: groupID, Period: period, UserID: userID})
	if err != nil {
		return nil, translate(err, "failed to list expenses", "group", groupID)
	}
	return expenses, nil
}

func expenseEvent(t amqp.EventType, actorID string, e *models.GroceryExpense) *amqp.Event {
	return amqp.NewEvent(t, e.GroupID, e.UserID, map[string]any{
		"expense_id":  e.ID,
		"recorded_by": actorID,
		"date":        e.Date.String(),
		"item":        e.Item,
		"cost":        e.Cost.StringFixed(2),
	})
}
