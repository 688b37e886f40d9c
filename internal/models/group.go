package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Role is a member's role inside a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// JoinCodeLength is the length of a group join code (three random bytes, hex).
const JoinCodeLength = 6

// Group represents a household sharing meals and grocery spending.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Flat 4B").
	Name string

	// Description is optional free text.
	Description string

	// JoinCode is the unique code other users enter to join the group.
	JoinCode string

	// AdminID is the user ID of the group's only admin.
	AdminID string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64

	// Members is the current roster, admin included. Ordered by join time.
	Members []Member
}

// Member is the membership of one user in one group.
type Member struct {
	UserID      string
	GroupID     string
	DisplayName string
	Role        Role
	JoinedAt    int64
}

// IsAdmin reports whether the member holds the admin role.
func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// Member returns the roster entry for userID.
func (g *Group) Member(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// NewJoinCode returns a random code of JoinCodeLength upper-case hex characters.
func NewJoinCode() (string, error) {
	b := make([]byte, JoinCodeLength/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate join code: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// NormalizeJoinCode trims and upper-cases user input so codes match regardless
// of how they were typed.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
