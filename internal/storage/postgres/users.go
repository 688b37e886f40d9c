package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

const userColumns = "id, username, display_name, COALESCE(email, ''), password_hash, created_at"

// CreateUser inserts a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, display_name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		user.ID, user.Username, user.DisplayName, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q: %w", user.Username, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByUsername retrieves a user by login name.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.getUser(ctx, "username = $1", username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.getUser(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return user, nil
}

func (s *PostgresStore) getUser(ctx context.Context, where, arg string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg).Scan(
		&user.ID, &user.Username, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
