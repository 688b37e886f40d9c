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

const memberQuery = `
	SELECT gm.user_id, gm.group_id, u.display_name, gm.role, gm.joined_at
	FROM group_members gm
	JOIN users u ON u.id = gm.user_id`

// CreateGroup persists a new group with its admin as the first member.
func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO groups (id, name, description, join_code, admin_id, created_at)
			 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
			group.ID, group.Name, group.Description, group.JoinCode, group.AdminID, group.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("join code %s: %w", group.JoinCode, storage.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO group_members (user_id, group_id, role, joined_at) VALUES ($1, $2, $3, $4)",
			group.AdminID, group.ID, string(models.RoleAdmin), group.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s already in a group: %w", group.AdminID, storage.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to insert admin membership: %w", err)
		}
		return nil
	})
}

// GetGroup retrieves a group by ID with its current roster.
func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.getGroup(ctx, "id = $1", groupID)
}

// GetGroupByJoinCode retrieves a group by join code with its current roster.
func (s *PostgresStore) GetGroupByJoinCode(ctx context.Context, code string) (*models.Group, error) {
	return s.getGroup(ctx, "join_code = $1", code)
}

func (s *PostgresStore) getGroup(ctx context.Context, where, arg string) (*models.Group, error) {
	group := &models.Group{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, COALESCE(description, ''), join_code, admin_id, created_at FROM groups WHERE "+where,
		arg,
	).Scan(&group.ID, &group.Name, &group.Description, &group.JoinCode, &group.AdminID, &group.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := s.pool.Query(ctx, memberQuery+" WHERE gm.group_id = $1 ORDER BY gm.joined_at, gm.user_id", group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	group.Members, err = pgx.CollectRows(rows, scanMember)
	if err != nil {
		return nil, fmt.Errorf("failed to scan members: %w", err)
	}
	return group, nil
}

// DeleteGroup removes a group left with lastMemberID alone. Memberships and
// ledger rows cascade. The group row is locked first, so joins (whose foreign
// key check needs a share lock on it) wait and then fail.
func (s *PostgresStore) DeleteGroup(ctx context.Context, groupID, lastMemberID string) error {
	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := lockGroup(ctx, tx, groupID); err != nil {
			return err
		}

		var others int
		if err := tx.QueryRow(ctx,
			"SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND user_id <> $2",
			groupID, lastMemberID,
		).Scan(&others); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if others > 0 {
			return fmt.Errorf("group %s has %d other members: %w", groupID, others, storage.ErrConflict)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM groups WHERE id = $1", groupID); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})
}

func lockGroup(ctx context.Context, tx pgx.Tx, groupID string) error {
	var id string
	err := tx.QueryRow(ctx, "SELECT id FROM groups WHERE id = $1 FOR UPDATE", groupID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock group: %w", err)
	}
	return nil
}

// GetMembership returns the group membership of a user.
func (s *PostgresStore) GetMembership(ctx context.Context, userID string) (*models.Member, error) {
	rows, err := s.pool.Query(ctx, memberQuery+" WHERE gm.user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMember)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("membership of user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	return &m, nil
}

// AddMember inserts a membership row.
func (s *PostgresStore) AddMember(ctx context.Context, member *models.Member) error {
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO group_members (user_id, group_id, role, joined_at) VALUES ($1, $2, $3, $4)",
		member.UserID, member.GroupID, string(member.Role), member.JoinedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s already in a group: %w", member.UserID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a non-admin membership row, keeping the user's ledger
// history. A concurrent TransferAdmin holds the row lock; the DELETE then
// re-checks the role on the committed row and skips it.
func (s *PostgresStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"DELETE FROM group_members WHERE group_id = $1 AND user_id = $2 AND role = $3",
			groupID, userID, string(models.RoleMember),
		)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		var role string
		err = tx.QueryRow(ctx,
			"SELECT role FROM group_members WHERE group_id = $1 AND user_id = $2",
			groupID, userID,
		).Scan(&role)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		return fmt.Errorf("member %s of group %s is the %s: %w", userID, groupID, role, storage.ErrConflict)
	})
}

// TransferAdmin demotes the current admin and promotes another member.
func (s *PostgresStore) TransferAdmin(ctx context.Context, groupID, fromUserID, toUserID string) error {
	return s.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"UPDATE group_members SET role = $1 WHERE group_id = $2 AND user_id = $3 AND role = $4",
			string(models.RoleMember), groupID, fromUserID, string(models.RoleAdmin),
		)
		if err != nil {
			return fmt.Errorf("failed to demote admin: %w", err)
		}
		if err := expectAffected(tag, fmt.Sprintf("admin %s of group %s", fromUserID, groupID)); err != nil {
			return err
		}

		tag, err = tx.Exec(ctx,
			"UPDATE group_members SET role = $1 WHERE group_id = $2 AND user_id = $3",
			string(models.RoleAdmin), groupID, toUserID,
		)
		if err != nil {
			return fmt.Errorf("failed to promote member: %w", err)
		}
		if err := expectAffected(tag, fmt.Sprintf("member %s of group %s", toUserID, groupID)); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "UPDATE groups SET admin_id = $1 WHERE id = $2", toUserID, groupID); err != nil {
			return fmt.Errorf("failed to update group admin: %w", err)
		}
		return nil
	})
}

func scanMember(row pgx.CollectableRow) (models.Member, error) {
	var m models.Member
	var role string
	err := row.Scan(&m.UserID, &m.GroupID, &m.DisplayName, &role, &m.JoinedAt)
	m.Role = models.Role(role)
	return m, err
}
