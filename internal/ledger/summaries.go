package ledger

import (
	"context"

	"github.com/mmynk/messbook/internal/calculator"
	"github.com/mmynk/messbook/internal/models"
)

// GroupReport is a group summary together with every member's summary,
// all derived from one snapshot so they agree exactly.
type GroupReport struct {
	Group     models.GroupPeriodSummary
	Members   []models.MemberPeriodSummary
	Transfers []calculator.Transfer
}

func (l *Ledger) snapshot(ctx context.Context, groupID string, period models.Period) (models.PeriodSnapshot, error) {
	if err := period.Validate(); err != nil {
		return models.PeriodSnapshot{}, &ValidationError{Field: "period", Reason: err.Error()}
	}
	snapshot, err := l.store.PeriodSnapshot(ctx, groupID, period)
	if err != nil {
		return models.PeriodSnapshot{}, translate(err, "failed to read period totals", "group", groupID)
	}
	return snapshot, nil
}

// GroupSummary returns the group's totals and cost per meal for the period.
func (l *Ledger) GroupSummary(ctx context.Context, groupID string, period models.Period) (models.GroupPeriodSummary, error) {
	snapshot, err := l.snapshot(ctx, groupID, period)
	if err != nil {
		return models.GroupPeriodSummary{}, err
	}
	return calculator.SummarizeGroup(snapshot), nil
}

// MemberSummary returns one current member's settlement position for the
// period, charged at the group rate.
func (l *Ledger) MemberSummary(ctx context.Context, userID, groupID string, period models.Period) (models.MemberPeriodSummary, error) {
	snapshot, err := l.snapshot(ctx, groupID, period)
	if err != nil {
		return models.MemberPeriodSummary{}, err
	}

	totals, ok := snapshot.Member(userID)
	if !ok {
		return models.MemberPeriodSummary{}, &NotFoundError{Resource: "member", ID: userID}
	}
	group := calculator.SummarizeGroup(snapshot)
	return calculator.AttributeMember(groupID, period, totals, group.CostPerMeal), nil
}

// MemberSummaries returns the group summary, every member's summary and the
// transfers that would settle the period.
func (l *Ledger) MemberSummaries(ctx context.Context, groupID string, period models.Period) (*GroupReport, error) {
	snapshot, err := l.snapshot(ctx, groupID, period)
	if err != nil {
		return nil, err
	}

	group, members := calculator.AttributeGroup(snapshot)
	return &GroupReport{
		Group:     group,
		Members:   members,
		Transfers: calculator.SuggestTransfers(members),
	}, nil
}
