package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/messbook/internal/ledger"
	"github.com/mmynk/messbook/pkg/api"
)

// GroupService implements the Connect GroupService on top of the ledger.
type GroupService struct {
	ledger *ledger.Ledger
}

var _ api.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService.
func NewGroupService(l *ledger.Ledger) *GroupService {
	return &GroupService{ledger: l}
}

// CreateGroup creates a group with the caller as its admin.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received", "name", req.Msg.Name, "user_id", userID)

	group, err := s.ledger.CreateGroup(ctx, userID, req.Msg.Name, req.Msg.Description)
	if err != nil {
		return nil, toConnectError(ctx, "CreateGroup", err)
	}

	return connect.NewResponse(&api.CreateGroupResponse{Group: groupToAPI(group)}), nil
}

// JoinGroup adds the caller to the group with the given join code.
func (s *GroupService) JoinGroup(ctx context.Context, req *connect.Request[api.JoinGroupRequest]) (*connect.Response[api.JoinGroupResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("JoinGroup request received", "user_id", userID)

	group, err := s.ledger.JoinGroup(ctx, userID, req.Msg.JoinCode)
	if err != nil {
		return nil, toConnectError(ctx, "JoinGroup", err)
	}

	return connect.NewResponse(&api.JoinGroupResponse{Group: groupToAPI(group)}), nil
}

// GetGroup retrieves a group by ID, or the caller's own group.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Debug("GetGroup request received", "group_id", req.Msg.GroupID, "user_id", userID)

	group, err := s.ledger.GetGroup(ctx, userID, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, "GetGroup", err)
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: groupToAPI(group)}), nil
}

// TransferAdmin hands the admin role to another member.
func (s *GroupService) TransferAdmin(ctx context.Context, req *connect.Request[api.TransferAdminRequest]) (*connect.Response[api.TransferAdminResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("TransferAdmin request received",
		"group_id", req.Msg.GroupID,
		"user_id", userID,
		"new_admin_id", req.Msg.NewAdminID,
	)

	group, err := s.ledger.TransferAdmin(ctx, userID, req.Msg.GroupID, req.Msg.NewAdminID)
	if err != nil {
		return nil, toConnectError(ctx, "TransferAdmin", err)
	}

	return connect.NewResponse(&api.TransferAdminResponse{Group: groupToAPI(group)}), nil
}

// LeaveGroup runs the leave workflow for the caller.
func (s *GroupService) LeaveGroup(ctx context.Context, req *connect.Request[api.LeaveGroupRequest]) (*connect.Response[api.LeaveGroupResponse], error) {
	userID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("LeaveGroup request received", "group_id", req.Msg.GroupID, "user_id", userID)

	result, err := s.ledger.RequestLeave(ctx, userID, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(ctx, "LeaveGroup", err)
	}

	return connect.NewResponse(&api.LeaveGroupResponse{
		Outcome: string(result.Outcome),
		Period:  result.Period.String(),
		Balance: money(result.Balance),
	}), nil
}
