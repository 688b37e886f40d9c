package ledger

import (
	"context"
	"log/slog"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

// MealInput is one member's meal counts for one date.
type MealInput struct {
	// UserID is the member the meals belong to; empty means the actor.
	UserID    string
	GroupID   string
	Date      models.Date
	Breakfast int
	Lunch     int
	Dinner    int
}

func (in MealInput) entry() *models.MealEntry {
	return &models.MealEntry{
		UserID:    in.UserID,
		GroupID:   in.GroupID,
		Date:      in.Date,
		Breakfast: in.Breakfast,
		Lunch:     in.Lunch,
		Dinner:    in.Dinner,
	}
}

func validateMeal(in MealInput) error {
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if field, err := in.entry().ValidateSlots(); err != nil {
		return &ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

// RecordMeal creates or replaces the meal entry of (UserID, GroupID, Date).
// Members record their own meals; the admin may record for any member of the
// group. created reports whether a new entry was inserted.
func (l *Ledger) RecordMeal(ctx context.Context, actorID string, in MealInput) (*models.MealEntry, bool, error) {
	if in.UserID == "" {
		in.UserID = actorID
	}
	if err := validateMeal(in); err != nil {
		return nil, false, err
	}

	actor, err := l.Authorize(ctx, actorID, in.GroupID)
	if err != nil {
		return nil, false, err
	}
	if in.UserID != actorID {
		if !actor.IsAdmin() {
			return nil, false, &PermissionError{Action: "record meals for another member"}
		}
		if _, err := l.requireSameGroup(ctx, in.UserID, in.GroupID); err != nil {
			return nil, false, err
		}
	}

	entry := in.entry()
	created, err := l.store.UpsertMeal(ctx, entry)
	if err != nil {
		return nil, false, translate(err, "failed to record meal", "meal entry", in.Date.String())
	}
	l.mealRecorded(ctx, actorID, entry, created)
	return entry, created, nil
}

func (l *Ledger) mealRecorded(ctx context.Context, actorID string, entry *models.MealEntry, created bool) {
	slog.InfoContext(ctx, "Recorded meal entry",
		"group_id", entry.GroupID,
		"user_id", entry.UserID,
		"date", entry.Date.String(),
		"meals", entry.TotalMeals(),
		"created", created)

	l.publish(ctx, amqp.NewEvent(amqp.EventMealRecorded, entry.GroupID, entry.UserID, map[string]any{
		"recorded_by": actorID,
		"date":        entry.Date.String(),
		"breakfast":   entry.Breakfast,
		"lunch":       entry.Lunch,
		"dinner":      entry.Dinner,
		"created":     created,
	}))
}

// RecordMealSheet records one date's meals for several members of the actor's
// group. Only the admin may include rows of other members. Every row is
// validated before anything is written, and the rows are stored in one
// transaction. rows is not modified.
func (l *Ledger) RecordMealSheet(ctx context.Context, actorID, groupID string, date models.Date, rows []MealInput) ([]models.MealEntry, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Field: "entries", Reason: "at least one entry is required"}
	}

	actor, err := l.Authorize(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	group, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err, "failed to get group", "group", groupID)
	}

	seen := make(map[string]bool, len(rows))
	pending := make([]*models.MealEntry, len(rows))
	for i, in := range rows {
		in.GroupID = groupID
		in.Date = date
		if err := validateMeal(in); err != nil {
			return nil, err
		}
		if in.UserID == "" {
			return nil, &ValidationError{Field: "user_id", Reason: "required"}
		}
		if _, ok := group.Member(in.UserID); !ok {
			return nil, &NotFoundError{Resource: "member", ID: in.UserID}
		}
		if in.UserID != actorID && !actor.IsAdmin() {
			return nil, &PermissionError{Action: "record meals for another member"}
		}
		if seen[in.UserID] {
			return nil, &ValidationError{Field: "user_id", Reason: "duplicate member " + in.UserID}
		}
		seen[in.UserID] = true
		pending[i] = in.entry()
	}

	created, err := l.store.UpsertMeals(ctx, pending)
	if err != nil {
		return nil, translate(err, "failed to record meal sheet", "meal sheet", date.String())
	}

	entries := make([]models.MealEntry, len(pending))
	for i, entry := range pending {
		l.mealRecorded(ctx, actorID, entry, created[i])
		entries[i] = *entry
	}
	return entries, nil
}

// ListMeals returns the group's meal entries for the period, newest first.
// userID optionally narrows the list to one member.
func (l *Ledger) ListMeals(ctx context.Context, actorID, groupID string, period models.Period, userID string) ([]models.MealEntry, error) {
	if err := period.Validate(); err != nil {
		return nil, &ValidationError{Field: "period", Reason: err.Error()}
	}
	if _, err := l.Authorize(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	entries, err := l.store.ListMeals(ctx, storage.LedgerFilter{GroupID: groupID, Period: period, UserID: userID})
	if err != nil {
		return nil, translate(err, "failed to list meals", "group", groupID)
	}
	return entries, nil
}
