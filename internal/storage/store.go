// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/messbook/internal/models"
)

var (
	// ErrNotFound is returned (wrapped) when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned (wrapped) when a write violates a uniqueness rule,
	// e.g. a user joining a second group or a duplicate username.
	ErrConflict = errors.New("conflict")
)

// LedgerFilter selects meal entries or grocery expenses of one group-month.
type LedgerFilter struct {
	GroupID string
	Period  models.Period

	// UserID restricts the result to one member when set.
	UserID string
}

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the ledger core.
//
// Stores persist raw facts only; summaries are derived by the caller.
type Store interface {
	// CreateUser persists a new user. Returns ErrConflict if the username is taken.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername returns ErrNotFound if no user has that username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID returns ErrNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateGroup persists a group and its admin's membership atomically.
	// group.ID and group.CreatedAt are populated by the store when empty.
	// Returns ErrConflict if the join code is taken or the admin is already
	// a member of a group.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its current roster.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// GetGroupByJoinCode retrieves a group with its roster by join code.
	GetGroupByJoinCode(ctx context.Context, code string) (*models.Group, error)

	// DeleteGroup removes a group whose only member is lastMemberID;
	// memberships, meal entries and expenses of the group are removed with it.
	// Returns ErrNotFound if the group does not exist and ErrConflict if
	// anyone else belongs to it.
	DeleteGroup(ctx context.Context, groupID, lastMemberID string) error

	// GetMembership returns the user's membership, or ErrNotFound.
	GetMembership(ctx context.Context, userID string) (*models.Member, error)

	// AddMember inserts a membership. Returns ErrConflict if the user already
	// belongs to a group.
	AddMember(ctx context.Context, member *models.Member) error

	// RemoveMember deletes a non-admin membership. Ledger rows of the user are
	// kept. Returns ErrNotFound if the user is not in the group and
	// ErrConflict if the user holds the admin role.
	RemoveMember(ctx context.Context, groupID, userID string) error

	// TransferAdmin moves the admin role from one member to another atomically.
	TransferAdmin(ctx context.Context, groupID, fromUserID, toUserID string) error

	// UpsertMeal inserts or replaces the entry for (UserID, GroupID, Date).
	// entry.ID and timestamps are set from the stored row. created reports
	// whether a new row was inserted.
	UpsertMeal(ctx context.Context, entry *models.MealEntry) (created bool, err error)

	// UpsertMeals upserts several entries in one transaction: either every
	// entry is stored or none is. created[i] reports on entries[i].
	UpsertMeals(ctx context.Context, entries []*models.MealEntry) (created []bool, err error)

	// ListMeals returns meal entries of current members, newest date first.
	ListMeals(ctx context.Context, filter LedgerFilter) ([]models.MealEntry, error)

	// CreateExpense persists a new grocery expense.
	CreateExpense(ctx context.Context, expense *models.GroceryExpense) error

	// GetExpense returns ErrNotFound if the expense does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.GroceryExpense, error)

	// UpdateExpense replaces date, item, quantity and cost of an expense.
	UpdateExpense(ctx context.Context, expense *models.GroceryExpense) error

	// ListExpenses returns expenses of current members, newest date first.
	ListExpenses(ctx context.Context, filter LedgerFilter) ([]models.GroceryExpense, error)

	// PeriodSnapshot returns every current member's totals for the period,
	// read in one consistent transaction. Returns ErrNotFound if the group
	// does not exist.
	PeriodSnapshot(ctx context.Context, groupID string, period models.Period) (models.PeriodSnapshot, error)

	// Close releases any resources held by the store.
	Close() error
}
