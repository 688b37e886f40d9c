package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the login name (unique).
	Username string

	// DisplayName is shown to the other members of the user's group.
	DisplayName string

	// Email is optional.
	Email string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64
}

// NewUser creates a user with a fresh ID and creation time.
func NewUser(username, displayName, email, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
}
