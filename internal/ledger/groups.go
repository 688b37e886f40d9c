package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/messbook/internal/amqp"
	"github.com/mmynk/messbook/internal/calculator"
	"github.com/mmynk/messbook/internal/models"
	"github.com/mmynk/messbook/internal/settlement"
	"github.com/mmynk/messbook/internal/storage"
)

const (
	maxGroupNameLength   = 100
	joinCodeAttempts     = 5
	maxDescriptionLength = 500
)

// LeaveResult is the applied outcome of an allowed leave request.
type LeaveResult struct {
	Outcome settlement.Outcome
	Period  models.Period

	// Balance is the member's balance for Period at the time of the request.
	Balance decimal.Decimal
}

// CreateGroup creates a group with the actor as its admin.
func (l *Ledger) CreateGroup(ctx context.Context, actorID, name, description string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > maxGroupNameLength {
		return nil, &ValidationError{Field: "name", Reason: "too long"}
	}
	if len(description) > maxDescriptionLength {
		return nil, &ValidationError{Field: "description", Reason: "too long"}
	}

	if err := l.requireNoGroup(ctx, actorID); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := models.NewJoinCode()
		if err != nil {
			return nil, err
		}
		group := &models.Group{
			Name:        name,
			Description: description,
			JoinCode:    code,
			AdminID:     actorID,
		}

		err = l.store.CreateGroup(ctx, group)
		if errors.Is(err, storage.ErrConflict) {
			// Either the code is taken or the actor joined a group meanwhile.
			if err := l.requireNoGroup(ctx, actorID); err != nil {
				return nil, err
			}
			slog.DebugContext(ctx, "Join code collision, retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create group: %w", err)
		}

		created, err := l.store.GetGroup(ctx, group.ID)
		if err != nil {
			return nil, translate(err, "failed to get group", "group", group.ID)
		}

		slog.InfoContext(ctx, "Created group", "group_id", created.ID, "user_id", actorID)
		l.publish(ctx, amqp.NewEvent(amqp.EventGroupCreated, created.ID, actorID, map[string]any{
			"name": created.Name,
		}))
		return created, nil
	}

	return nil, fmt.Errorf("failed to create group: no free join code after %d attempts", joinCodeAttempts)
}

// JoinGroup adds the actor to the group with the given join code.
func (l *Ledger) JoinGroup(ctx context.Context, actorID, code string) (*models.Group, error) {
	code = models.NormalizeJoinCode(code)
	if len(code) != models.JoinCodeLength {
		return nil, &ValidationError{Field: "join_code", Reason: fmt.Sprintf("must be %d characters", models.JoinCodeLength)}
	}

	if err := l.requireNoGroup(ctx, actorID); err != nil {
		return nil, err
	}

	group, err := l.store.GetGroupByJoinCode(ctx, code)
	if err != nil {
		return nil, translate(err, "failed to find group", "group", code)
	}

	err = l.store.AddMember(ctx, &models.Member{UserID: actorID, GroupID: group.ID, Role: models.RoleMember})
	if errors.Is(err, storage.ErrConflict) {
		return nil, &ConflictError{Reason: "already a member of a group"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to join group: %w", err)
	}

	joined, err := l.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, translate(err, "failed to get group", "group", group.ID)
	}

	slog.InfoContext(ctx, "Member joined group", "group_id", group.ID, "user_id", actorID)
	l.publish(ctx, amqp.NewEvent(amqp.EventMemberJoined, group.ID, actorID, nil))
	return joined, nil
}

// GetGroup returns a group with its roster. An empty groupID means the
// actor's own group.
func (l *Ledger) GetGroup(ctx context.Context, actorID, groupID string) (*models.Group, error) {
	if groupID == "" {
		member, err := l.store.GetMembership(ctx, actorID)
		if err != nil {
			return nil, translate(err, "failed to get membership", "membership", actorID)
		}
		groupID = member.GroupID
	} else if _, err := l.Authorize(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	group, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err, "failed to get group", "group", groupID)
	}
	return group, nil
}

// TransferAdmin hands the admin role of the actor's group to another member.
func (l *Ledger) TransferAdmin(ctx context.Context, actorID, groupID, newAdminID string) (*models.Group, error) {
	if newAdminID == "" {
		return nil, &ValidationError{Field: "new_admin_id", Reason: "required"}
	}
	if newAdminID == actorID {
		return nil, &ValidationError{Field: "new_admin_id", Reason: "already the admin"}
	}

	actor, err := l.Authorize(ctx, actorID, groupID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, &PermissionError{Action: "transfer the admin role"}
	}
	if _, err := l.requireSameGroup(ctx, newAdminID, groupID); err != nil {
		return nil, err
	}

	if err := l.store.TransferAdmin(ctx, groupID, actorID, newAdminID); err != nil {
		return nil, translate(err, "failed to transfer admin", "member", newAdminID)
	}

	group, err := l.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, translate(err, "failed to get group", "group", groupID)
	}

	slog.InfoContext(ctx, "Transferred admin role",
		"group_id", groupID,
		"from_user_id", actorID,
		"to_user_id", newAdminID)
	l.publish(ctx, amqp.NewEvent(amqp.EventAdminTransferred, groupID, newAdminID, map[string]any{
		"previous_admin_id": actorID,
	}))
	return group, nil
}

// RequestLeave applies the settlement policy to the actor leaving groupID,
// using the actor's balance for the current month. Blocked requests return
// a *ConflictError carrying the policy's reasons and change nothing.
func (l *Ledger) RequestLeave(ctx context.Context, actorID, groupID string) (*LeaveResult, error) {
	if _, err := l.Authorize(ctx, actorID, groupID); err != nil {
		return nil, err
	}

	period := l.CurrentPeriod()
	snapshot, err := l.store.PeriodSnapshot(ctx, groupID, period)
	if err != nil {
		return nil, translate(err, "failed to read period totals", "group", groupID)
	}
	_, members := calculator.AttributeGroup(snapshot)

	var self *models.MemberPeriodSummary
	for i := range members {
		if members[i].UserID == actorID {
			self = &members[i]
			break
		}
	}
	if self == nil {
		return nil, &NotFoundError{Resource: "member", ID: actorID}
	}

	decision := settlement.Decide(settlement.Request{
		MemberCount: len(members),
		IsAdmin:     self.Role == models.RoleAdmin,
		Balance:     self.Balance,
	})

	logAttrs := []any{
		"group_id", groupID,
		"user_id", actorID,
		"period", period.String(),
		"balance", self.Balance.StringFixed(2),
		"outcome", decision.Outcome,
	}

	if !decision.Allowed() {
		slog.InfoContext(ctx, "Leave request blocked", logAttrs...)
		return nil, &ConflictError{Reason: "cannot leave group", Reasons: decision.Reasons}
	}

	// The store re-checks the roster and role the decision was based on.
	switch decision.Outcome {
	case settlement.OutcomeGroupDeleted:
		if err := l.store.DeleteGroup(ctx, groupID, actorID); err != nil {
			return nil, leaveError(ctx, err, "failed to delete group", actorID, logAttrs)
		}
		l.publish(ctx, amqp.NewEvent(amqp.EventGroupDeleted, groupID, actorID, nil))

	case settlement.OutcomeLeft:
		if err := l.store.RemoveMember(ctx, groupID, actorID); err != nil {
			return nil, leaveError(ctx, err, "failed to leave group", actorID, logAttrs)
		}
		l.publish(ctx, amqp.NewEvent(amqp.EventMemberLeft, groupID, actorID, map[string]any{
			"balance": self.Balance.StringFixed(2),
			"period":  period.String(),
		}))
	}

	slog.InfoContext(ctx, "Leave request applied", logAttrs...)
	return &LeaveResult{Outcome: decision.Outcome, Period: period, Balance: self.Balance}, nil
}

// leaveError reports a store refusal to apply a leave decision as a stale
// ConflictError.
func leaveError(ctx context.Context, err error, op, actorID string, logAttrs []any) error {
	switch {
	case errors.Is(err, storage.ErrConflict):
		slog.WarnContext(ctx, "Group changed during leave request", append(logAttrs, "error", err)...)
		return &ConflictError{Reason: "group changed while leaving, try again", Stale: true}
	case errors.Is(err, storage.ErrNotFound):
		return &NotFoundError{Resource: "member", ID: actorID}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// requireNoGroup fails with a ConflictError when the user is already a member.
func (l *Ledger) requireNoGroup(ctx context.Context, userID string) error {
	_, err := l.store.GetMembership(ctx, userID)
	switch {
	case err == nil:
		return &ConflictError{Reason: "already a member of a group"}
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("failed to get membership: %w", err)
	}
}
