// Package ledger implements the household ledger: recording meals and
// grocery expenses, group membership, monthly summaries and the leave
// workflow. Stored facts go through storage.Store; every summary is derived
// on request from a single period snapshot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/storage"
)

// Publisher delivers ledger events. amqp.Client satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, event *amqp.Event) error
}

// Ledger is the core service. It is safe for concurrent use as long as the
// store is.
type Ledger struct {
	store     storage.Store
	publisher Publisher
	now       func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher enables event publication. Without it events are dropped.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithClock overrides the clock used to pick the current month.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger backed by store.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CurrentPeriod is the month containing the ledger clock's now.
func (l *Ledger) CurrentPeriod() models.Period {
	return models.DateOf(l.now()).Period()
}

// Authorize returns the actor's membership if the actor belongs to groupID.
// A group that does not exist is reported as NotFoundError, an existing
// group the actor is not part of as PermissionError.
func (l *Ledger) Authorize(ctx context.Context, actorID, groupID string) (*models.Member, error) {
	if groupID == "" {
		return nil, &ValidationError{Field: "group_id", Reason: "required"}
	}

	member, err := l.store.GetMembership(ctx, actorID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if err == nil && member.GroupID == groupID {
		return member, nil
	}

	if _, err := l.store.GetGroup(ctx, groupID); err != nil {
		return nil, translate(err, "failed to get group", "group", groupID)
	}
	return nil, &PermissionError{Action: "access group " + groupID}
}

// requireSameGroup checks that userID is a current member of groupID.
func (l *Ledger) requireSameGroup(ctx context.Context, userID, groupID string) (*models.Member, error) {
	member, err := l.store.GetMembership(ctx, userID)
	if err != nil {
		return nil, translate(err, "failed to get membership", "member", userID)
	}
	if member.GroupID != groupID {
		return nil, &NotFoundError{Resource: "member", ID: userID}
	}
	return member, nil
}

// publish sends an event if a publisher is configured. Failures are logged
// and never returned: the ledger write has already committed.
func (l *Ledger) publish(ctx context.Context, event *amqp.Event) {
	if l.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "type", event.Type)
		return
	}
	if err := l.publisher.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", event.Type,
			"group_id", event.GroupID,
			"error", err)
	}
}
