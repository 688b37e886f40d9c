package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UpsertMeal inserts the entry or overwrites the slots of the existing entry
// for the same user, group and date.
func (s *SQLiteStore) UpsertMeal(ctx context.Context, entry *models.MealEntry) (bool, error) {
	return upsertMeal(ctx, s.db, entry)
}

// UpsertMeals upserts a day's sheet in a single transaction.
func (s *SQLiteStore) UpsertMeals(ctx context.Context, entries []*models.MealEntry) ([]bool, error) {
	created := make([]bool, len(entries))
	err := s.withTx(ctx, nil, func(tx *sql.Tx) error {
		for i, entry := range entries {
			c, err := upsertMeal(ctx, tx, entry)
			if err != nil {
				return err
			}
			created[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func upsertMeal(ctx context.Context, q rowQuerier, entry *models.MealEntry) (bool, error) {
	newID := uuid.New().String()
	now := time.Now().Unix()

	var id string
	var createdAt int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO meal_entries (id, user_id, group_id, date, breakfast, lunch, dinner, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, group_id, date) DO UPDATE SET
		     breakfast = excluded.breakfast,
		     lunch = excluded.lunch,
		     dinner = excluded.dinner,
		     updated_at = excluded.updated_at
		 RETURNING id, created_at`,
		newID, entry.UserID, entry.GroupID, entry.Date.String(),
		entry.Breakfast, entry.Lunch, entry.Dinner, now, now,
	).Scan(&id, &createdAt)
	if err != nil {
		return false, fmt.Errorf("failed to upsert meal entry: %w", err)
	}

	entry.ID = id
	entry.CreatedAt = createdAt
	entry.UpdatedAt = now
	return id == newID, nil
}

// ListMeals returns meal entries of current group members in the period.
func (s *SQLiteStore) ListMeals(ctx context.Context, filter storage.LedgerFilter) ([]models.MealEntry, error) {
	query := `
		SELECT m.id, m.user_id, m.group_id, m.date, m.breakfast, m.lunch, m.dinner, m.created_at, m.updated_at
		FROM meal_entries m
		JOIN group_members gm ON gm.user_id = m.user_id AND gm.group_id = m.group_id
		WHERE m.group_id = ? AND m.date BETWEEN ? AND ?`
	args := []any{filter.GroupID, filter.Period.First().String(), filter.Period.Last().String()}
	if filter.UserID != "" {
		query += " AND m.user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY m.date DESC, m.user_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal entries: %w", err)
	}
	defer rows.Close()

	var entries []models.MealEntry
	for rows.Next() {
		entry, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meal entries: %w", err)
	}
	return entries, nil
}

func scanMeal(rows *sql.Rows) (models.MealEntry, error) {
	var e models.MealEntry
	var date string
	if err := rows.Scan(&e.ID, &e.UserID, &e.GroupID, &date,
		&e.Breakfast, &e.Lunch, &e.Dinner, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return e, fmt.Errorf("failed to scan meal entry: %w", err)
	}
	d, err := parseDate(date)
	if err != nil {
		return e, err
	}
	e.Date = d
	return e, nil
}
