package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/pkg/api"
)

// SummaryService implements the Connect SummaryService. Every response is
// derived from the ledger on request.
type SummaryService struct {
	ledger *ledger.Ledger
}

var _ api.SummaryServiceHandler = (*SummaryService)(nil)

// NewSummaryService creates a new SummaryService.
func NewSummaryService(l *ledger.Ledger) *SummaryService {
	return &SummaryService{ledger: l}
}

// GetGroupSummary returns the group's totals and cost per meal.
func (s *SummaryService) GetGroupSummary(ctx context.Context, req *connect.Request[api.GetGroupSummaryRequest]) (*connect.Response[api.GetGroupSummaryResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(s.ledger, req.Msg.Period)
	if err != nil {
		return nil, toConnectError(ctx, "GetGroupSummary", err)
	}
	if _, err := s.ledger.Authorize(ctx, userID, req.Msg.GroupID); err != nil {
		return nil, toConnectError(ctx, "GetGroupSummary", err)
	}

	summary, err := s.ledger.GroupSummary(ctx, req.Msg.GroupID, period)
	if err != nil {
		return nil, toConnectError(ctx, "GetGroupSummary", err)
	}

	slog.Info("GetGroupSummary successful",
		"group_id", req.Msg.GroupID,
		"period", period.String(),
		"cost_per_meal", money(summary.CostPerMeal),
	)
	return connect.NewResponse(&api.GetGroupSummaryResponse{Summary: groupSummaryToAPI(summary)}), nil
}

// GetMemberSummary returns one member's position; the caller's by default.
func (s *SummaryService) GetMemberSummary(ctx context.Context, req *connect.Request[api.GetMemberSummaryRequest]) (*connect.Response[api.GetMemberSummaryResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(s.ledger, req.Msg.Period)
	if err != nil {
		return nil, toConnectError(ctx, "GetMemberSummary", err)
	}
	if _, err := s.ledger.Authorize(ctx, userID, req.Msg.GroupID); err != nil {
		return nil, toConnectError(ctx, "GetMemberSummary", err)
	}

	target := req.Msg.UserID
	if target == "" {
		target = userID
	}
	summary, err := s.ledger.MemberSummary(ctx, target, req.Msg.GroupID, period)
	if err != nil {
		return nil, toConnectError(ctx, "GetMemberSummary", err)
	}

	return connect.NewResponse(&api.GetMemberSummaryResponse{Summary: memberSummaryToAPI(summary)}), nil
}

// ListMemberSummaries returns the group summary, every member's summary and
// suggested settling transfers, all from one snapshot.
func (s *SummaryService) ListMemberSummaries(ctx context.Context, req *connect.Request[api.ListMemberSummariesRequest]) (*connect.Response[api.ListMemberSummariesResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(s.ledger, req.Msg.Period)
	if err != nil {
		return nil, toConnectError(ctx, "ListMemberSummaries", err)
	}
	if _, err := s.ledger.Authorize(ctx, userID, req.Msg.GroupID); err != nil {
		return nil, toConnectError(ctx, "ListMemberSummaries", err)
	}

	report, err := s.ledger.MemberSummaries(ctx, req.Msg.GroupID, period)
	if err != nil {
		return nil, toConnectError(ctx, "ListMemberSummaries", err)
	}

	members := make([]*api.MemberSummary, len(report.Members))
	for i, m := range report.Members {
		members[i] = memberSummaryToAPI(m)
	}
	return connect.NewResponse(&api.ListMemberSummariesResponse{
		Group:     groupSummaryToAPI(report.Group),
		Members:   members,
		Transfers: transfersToAPI(report.Transfers),
	}), nil
}
