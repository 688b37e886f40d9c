package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

// rowQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UpsertMeal inserts the entry or overwrites the slots of the existing entry
// for the same user, group and date.
func (s *PostgresStore) UpsertMeal(ctx context.Context, entry *models.MealEntry) (bool, error) {
	return upsertMeal(ctx, s.pool, entry)
}

// UpsertMeals upserts a day's sheet in a single transaction.
func (s *PostgresStore) UpsertMeals(ctx context.Context, entries []*models.MealEntry) ([]bool, error) {
	created := make([]bool, len(entries))
	err := s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
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
	err := q.QueryRow(ctx,
		`INSERT INTO meal_entries (id, user_id, group_id, date, breakfast, lunch, dinner, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 ON CONFLICT (user_id, group_id, date) DO UPDATE SET
		     breakfast = EXCLUDED.breakfast,
		     lunch = EXCLUDED.lunch,
		     dinner = EXCLUDED.dinner,
		     updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		newID, entry.UserID, entry.GroupID, entry.Date.Time,
		entry.Breakfast, entry.Lunch, entry.Dinner, now,
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
func (s *PostgresStore) ListMeals(ctx context.Context, filter storage.LedgerFilter) ([]models.MealEntry, error) {
	query := `
		SELECT m.id, m.user_id, m.group_id, m.date, m.breakfast, m.lunch, m.dinner, m.created_at, m.updated_at
		FROM meal_entries m
		JOIN group_members gm ON gm.user_id = m.user_id AND gm.group_id = m.group_id
		WHERE m.group_id = $1 AND m.date BETWEEN $2 AND $3`
	query, args := withUserFilter(query, "m", filter)
	query += " ORDER BY m.date DESC, m.user_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanMeal)
	if err != nil {
		return nil, fmt.Errorf("failed to scan meal entries: %w", err)
	}
	return entries, nil
}

func scanMeal(row pgx.CollectableRow) (models.MealEntry, error) {
	var e models.MealEntry
	var date time.Time
	err := row.Scan(&e.ID, &e.UserID, &e.GroupID, &date,
		&e.Breakfast, &e.Lunch, &e.Dinner, &e.CreatedAt, &e.UpdatedAt)
	e.Date = models.DateOf(date)
	return e, err
}

// withUserFilter appends the period bounds and optional user restriction.
func withUserFilter(query, alias string, filter storage.LedgerFilter) (string, []any) {
	args := []any{filter.GroupID, filter.Period.First().Time, filter.Period.Last().Time}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += " AND " + alias + ".user_id = $" + strconv.Itoa(len(args))
	}
	return query, args
}
