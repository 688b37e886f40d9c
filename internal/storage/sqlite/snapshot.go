package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

// snapshotQuery sums each current member's meals and spend for a date range.
// Members without rows still appear with zero totals.
const snapshotQuery = `
	SELECT gm.user_id, u.display_name, gm.role,
	       COALESCE(m.breakfasts, 0), COALESCE(m.lunches, 0), COALESCE(m.dinners, 0),
	       COALESCE(e.spent, 0)
	FROM group_members gm
	JOIN users u ON u.id = gm.user_id
	LEFT JOIN (
	    SELECT user_id, SUM(breakfast) AS breakfasts, SUM(lunch) AS lunches, SUM(dinner) AS dinners
	    FROM meal_entries
	    WHERE group_id = ? AND date BETWEEN ? AND ?
	    GROUP BY user_id
	) m ON m.user_id = gm.user_id
	LEFT JOIN (
	    SELECT user_id, SUM(cost_cents) AS spent
	    FROM grocery_expenses
	    WHERE group_id = ? AND date BETWEEN ? AND ?
	    GROUP BY user_id
	) e ON e.user_id = gm.user_id
	WHERE gm.group_id = ?
	ORDER BY gm.joined_at, gm.user_id`

// PeriodSnapshot reads every current member's totals inside one read-only
// transaction so the group summary and the member rows agree.
func (s *SQLiteStore) PeriodSnapshot(ctx context.Context, groupID string, period models.Period) (models.PeriodSnapshot, error) {
	snapshot := models.PeriodSnapshot{GroupID: groupID, Period: period}
	first, last := period.First().String(), period.Last().String()

	err := s.withTx(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}

		rows, err := tx.QueryContext(ctx, snapshotQuery,
			groupID, first, last,
			groupID, first, last,
			groupID,
		)
		if err != nil {
			return fmt.Errorf("failed to query period totals: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var t models.MemberTotals
			if err := rows.Scan(&t.UserID, &t.DisplayName, &t.Role,
				&t.Breakfasts, &t.Lunches, &t.Dinners, &t.SpentCents); err != nil {
				return fmt.Errorf("failed to scan period totals: %w", err)
			}
			snapshot.Members = append(snapshot.Members, t)
		}
		return rows.Err()
	})
	if err != nil {
		return models.PeriodSnapshot{}, err
	}
	return snapshot, nil
}
