package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

const snapshotQuery = `
	SELECT gm.user_id, u.display_name, gm.role,
	       COALESCE(m.breakfasts, 0), COALESCE(m.lunches, 0), COALESCE(m.dinners, 0),
	       COALESCE(e.spent, 0)
	FROM group_members gm
	JOIN users u ON u.id = gm.user_id
	LEFT JOIN (
	    SELECT user_id,
	           SUM(breakfast)::BIGINT AS breakfasts,
	           SUM(lunch)::BIGINT AS lunches,
	           SUM(dinner)::BIGINT AS dinners
	    FROM meal_entries
	    WHERE group_id = $1 AND date BETWEEN $2 AND $3
	    GROUP BY user_id
	) m ON m.user_id = gm.user_id
	LEFT JOIN (
	    SELECT user_id, SUM(cost_cents)::BIGINT AS spent
	    FROM grocery_expenses
	    WHERE group_id = $1 AND date BETWEEN $2 AND $3
	    GROUP BY user_id
	) e ON e.user_id = gm.user_id
	WHERE gm.group_id = $1
	ORDER BY gm.joined_at, gm.user_id`

// PeriodSnapshot reads every current member's totals inside one
// REPEATABLE READ, READ ONLY transaction.
func (s *PostgresStore) PeriodSnapshot(ctx context.Context, groupID string, period models.Period) (models.PeriodSnapshot, error) {
	snapshot := models.PeriodSnapshot{GroupID: groupID, Period: period}
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

	err := s.withTx(ctx, opts, func(tx pgx.Tx) error {
		var exists int
		err := tx.QueryRow(ctx, "SELECT 1 FROM groups WHERE id = $1", groupID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}

		rows, err := tx.Query(ctx, snapshotQuery, groupID, period.First().Time, period.Last().Time)
		if err != nil {
			return fmt.Errorf("failed to query period totals: %w", err)
		}
		snapshot.Members, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MemberTotals, error) {
			var t models.MemberTotals
			var role string
			err := row.Scan(&t.UserID, &t.DisplayName, &role, &t.Breakfasts, &t.Lunches, &t.Dinners, &t.SpentCents)
			t.Role = models.Role(role)
			return t, err
		})
		if err != nil {
			return fmt.Errorf("failed to scan period totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PeriodSnapshot{}, err
	}
	return snapshot, nil
}
