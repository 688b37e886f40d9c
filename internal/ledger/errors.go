package ledger

import (
	"errors"
	"fmt"

	"github.com/mmynk/messbook/internal/settlement"
	"github.com/mmynk/messbook/internal/storage"
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing group, user, membership or expense.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// PermissionError reports an action the actor is not allowed to take.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return "not allowed to " + e.Action
}

// ConflictError reports a request that clashes with current state: a user
// already in a group, or a leave request the settlement policy blocks.
type ConflictError struct {
	Reason string

	// Reasons is set when a leave request is blocked.
	Reasons []settlement.Reason

	// Stale is set when the group changed between a decision and its
	// application. Nothing was written; repeating the request decides again.
	Stale bool
}

func (e *ConflictError) Error() string {
	if len(e.Reasons) == 0 {
		return e.Reason
	}
	decision := settlement.Decision{Outcome: settlement.OutcomeBlocked, Reasons: e.Reasons}
	return e.Reason + ": " + decision.Message()
}

// Blocked reports whether the conflict comes from the settlement policy.
func (e *ConflictError) Blocked() bool {
	return len(e.Reasons) > 0
}

// translate turns store sentinels into core errors; anything else is
// wrapped with op and passed through.
func translate(err error, op, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return &NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, storage.ErrConflict):
		return &ConflictError{Reason: fmt.Sprintf("%s %s already exists", resource, id)}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
