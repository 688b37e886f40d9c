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

// CreateGroup persists a new group with its admin as the first member.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, name, description, join_code, admin_id, created_at)
			 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)`,
			group.ID, group.Name, group.Description, group.JoinCode, group.AdminID, group.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("join code %s: %w", group.JoinCode, storage.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO group_members (user_id, group_id, role, joined_at) VALUES (?, ?, ?, ?)",
			group.AdminID, group.ID, models.RoleAdmin, group.CreatedAt,
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
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.getGroup(ctx, "id = ?", groupID)
}

// GetGroupByJoinCode retrieves a group by its join code with its current roster.
func (s *SQLiteStore) GetGroupByJoinCode(ctx context.Context, code string) (*models.Group, error) {
	return s.getGroup(ctx, "join_code = ?", code)
}

func (s *SQLiteStore) getGroup(ctx context.Context, where string, arg string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, COALESCE(description, ''), join_code, admin_id, created_at FROM groups WHERE "+where,
		arg,
	).Scan(&group.ID, &group.Name, &group.Description, &group.JoinCode, &group.AdminID, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT gm.user_id, gm.group_id, u.display_name, gm.role, gm.joined_at
		 FROM group_members gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = ?
		 ORDER BY gm.joined_at, gm.user_id`,
		group.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.DisplayName, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		group.Members = append(group.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return group, nil
}

// DeleteGroup removes a group left with lastMemberID alone. Memberships and
// ledger rows cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID, lastMemberID string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM groups WHERE id = ? AND NOT EXISTS (
				SELECT 1 FROM group_members WHERE group_id = groups.id AND user_id <> ?
			)`,
			groupID, lastMemberID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM groups WHERE id = ?)", groupID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check group: %w", err)
		}
		if !exists {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		return fmt.Errorf("group %s has other members: %w", groupID, storage.ErrConflict)
	})
}

// GetMembership returns the group membership of a user.
func (s *SQLiteStore) GetMembership(ctx context.Context, userID string) (*models.Member, error) {
	m := &models.Member{}
	err := s.db.QueryRowContext(ctx,
		`SELECT gm.user_id, gm.group_id, u.display_name, gm.role, gm.joined_at
		 FROM group_members gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.user_id = ?`,
		userID,
	).Scan(&m.UserID, &m.GroupID, &m.DisplayName, &m.Role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership of user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// AddMember inserts a membership row.
func (s *SQLiteStore) AddMember(ctx context.Context, member *models.Member) error {
	if member.JoinedAt == 0 {
		member.JoinedAt = time.Now().Unix()
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO group_members (user_id, group_id, role, joined_at) VALUES (?, ?, ?, ?)",
		member.UserID, member.GroupID, member.Role, member.JoinedAt,
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
// history.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"DELETE FROM group_members WHERE group_id = ? AND user_id = ? AND role = ?",
			groupID, userID, models.RoleMember,
		)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}

		var role models.Role
		err = tx.QueryRowContext(ctx,
			"SELECT role FROM group_members WHERE group_id = ? AND user_id = ?",
			groupID, userID,
		).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("member %s of group %s: %w", userID, groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		return fmt.Errorf("member %s of group %s is the %s: %w", userID, groupID, role, storage.ErrConflict)
	})
}

// TransferAdmin demotes the current admin and promotes another member.
func (s *SQLiteStore) TransferAdmin(ctx context.Context, groupID, fromUserID, toUserID string) error {
	return s.withTx(ctx, nil, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE group_members SET role = ? WHERE group_id = ? AND user_id = ? AND role = ?",
			models.RoleMember, groupID, fromUserID, models.RoleAdmin,
		)
		if err != nil {
			return fmt.Errorf("failed to demote admin: %w", err)
		}
		if err := expectAffected(result, fmt.Sprintf("admin %s of group %s", fromUserID, groupID)); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx,
			"UPDATE group_members SET role = ? WHERE group_id = ? AND user_id = ?",
			models.RoleAdmin, groupID, toUserID,
		)
		if err != nil {
			return fmt.Errorf("failed to promote member: %w", err)
		}
		if err := expectAffected(result, fmt.Sprintf("member %s of group %s", toUserID, groupID)); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE groups SET admin_id = ? WHERE id = ?",
			toUserID, groupID,
		); err != nil {
			return fmt.Errorf("failed to update group admin: %w", err)
		}
		return nil
	})
}

func expectAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}
