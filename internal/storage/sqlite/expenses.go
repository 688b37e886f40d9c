package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

const expenseColumns = "e.id, e.user_id, e.group_id, e.date, e.item, e.quantity, e.cost_cents, e.created_at, e.updated_at"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateExpense persists a new grocery expense.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.GroceryExpense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grocery_expenses (id, user_id, group_id, date, item, quantity, cost_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.UserID, expense.GroupID, expense.Date.String(),
		expense.Item, expense.Quantity, models.Cents(expense.Cost), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves a grocery expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.GroceryExpense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM grocery_expenses e WHERE e.id = ?",
		expenseID,
	)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// UpdateExpense overwrites the mutable fields of an expense.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.GroceryExpense) error {
	expense.UpdatedAt = time.Now().Unix()

	result, err := s.db.ExecContext(ctx,
		`UPDATE grocery_expenses
		 SET date = ?, item = ?, quantity = ?, cost_cents = ?, updated_at = ?
		 WHERE id = ?`,
		expense.Date.String(), expense.Item, expense.Quantity, models.Cents(expense.Cost),
		expense.UpdatedAt, expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return expectAffected(result, fmt.Sprintf("expense %s", expense.ID))
}

// ListExpenses returns grocery expenses of current group members in the period.
func (s *SQLiteStore) ListExpenses(ctx context.Context, filter storage.LedgerFilter) ([]models.GroceryExpense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM grocery_expenses e
		JOIN group_members gm ON gm.user_id = e.user_id AND gm.group_id = e.group_id
		WHERE e.group_id = ? AND e.date BETWEEN ? AND ?`
	args := []any{filter.GroupID, filter.Period.First().String(), filter.Period.Last().String()}
	if filter.UserID != "" {
		query += " AND e.user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY e.date DESC, e.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.GroceryExpense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

func scanExpense(row rowScanner) (models.GroceryExpense, error) {
	var e models.GroceryExpense
	var date string
	var cents int64
	err := row.Scan(&e.ID, &e.UserID, &e.GroupID, &date, &e.Item, &e.Quantity, &cents, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return e, err
	}
	if err != nil {
		return e, fmt.Errorf("failed to scan expense: %w", err)
	}
	d, err := parseDate(date)
	if err != nil {
		return e, err
	}
	e.Date = d
	e.Cost = models.FromCents(cents)
	return e, nil
}
