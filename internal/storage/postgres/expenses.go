package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

const expenseColumns = "e.id, e.user_id, e.group_id, e.date, e.item, e.quantity, e.cost_cents, e.created_at, e.updated_at"

// CreateExpense persists a new grocery expense.
func (s *PostgresStore) CreateExpense(ctx context.Context, expense *models.GroceryExpense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO grocery_expenses (id, user_id, group_id, date, item, quantity, cost_cents, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		expense.ID, expense.UserID, expense.GroupID, expense.Date.Time,
		expense.Item, expense.Quantity, models.Cents(expense.Cost), now,
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves a grocery expense by ID.
func (s *PostgresStore) GetExpense(ctx context.Context, expenseID string) (*models.GroceryExpense, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+expenseColumns+" FROM grocery_expenses e WHERE e.id = $1", expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	expense, err := pgx.CollectExactlyOneRow(rows, scanExpense)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}
	return &expense, nil
}

// UpdateExpense overwrites the mutable fields of an expense.
func (s *PostgresStore) UpdateExpense(ctx context.Context, expense *models.GroceryExpense) error {
	expense.UpdatedAt = time.Now().Unix()

	tag, err := s.pool.Exec(ctx,
		`UPDATE grocery_expenses
		 SET date = $1, item = $2, quantity = $3, cost_cents = $4, updated_at = $5
		 WHERE id = $6`,
		expense.Date.Time, expense.Item, expense.Quantity, models.Cents(expense.Cost),
		expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return expectAffected(tag, fmt.Sprintf("expense %s", expense.ID))
}

// ListExpenses returns grocery expenses of current group members in the period.
func (s *PostgresStore) ListExpenses(ctx context.Context, filter storage.LedgerFilter) ([]models.GroceryExpense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM grocery_expenses e
		JOIN group_members gm ON gm.user_id = e.user_id AND gm.group_id = e.group_id
		WHERE e.group_id = $1 AND e.date BETWEEN $2 AND $3`
	query, args := withUserFilter(query, "e", filter)
	query += " ORDER BY e.date DESC, e.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	expenses, err := pgx.CollectRows(rows, scanExpense)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expenses: %w", err)
	}
	return expenses, nil
}

func scanExpense(row pgx.CollectableRow) (models.GroceryExpense, error) {
	var e models.GroceryExpense
	var date time.Time
	var cents int64
	err := row.Scan(&e.ID, &e.UserID, &e.GroupID, &date, &e.Item, &e.Quantity, &cents, &e.CreatedAt, &e.UpdatedAt)
	e.Date = models.DateOf(date)
	e.Cost = models.FromCents(cents)
	return e, err
}
