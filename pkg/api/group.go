package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// GroupService manages households and membership.
const GroupServiceName = "GroupService"

const (
	GroupServiceCreateGroupProcedure   = "/" + packageName + "." + GroupServiceName + "/CreateGroup"
	GroupServiceJoinGroupProcedure     = "/" + packageName + "." + GroupServiceName + "/JoinGroup"
	GroupServiceGetGroupProcedure      = "/" + packageName + "." + GroupServiceName + "/GetGroup"
	GroupServiceTransferAdminProcedure = "/" + packageName + "." + GroupServiceName + "/TransferAdmin"
	GroupServiceLeaveGroupProcedure    = "/" + packageName + "." + GroupServiceName + "/LeaveGroup"
)

// GroupServiceHandler is implemented by the server side of GroupService.
type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error)
	JoinGroup(context.Context, *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error)
	GetGroup(context.Context, *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error)
	TransferAdmin(context.Context, *connect.Request[TransferAdminRequest]) (*connect.Response[TransferAdminResponse], error)
	LeaveGroup(context.Context, *connect.Request[LeaveGroupRequest]) (*connect.Response[LeaveGroupResponse], error)
}

// NewGroupServiceHandler returns the path prefix and handler to mount on a mux.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return serviceHandler(servicePath(GroupServiceName), map[string]*connect.Handler{
		GroupServiceCreateGroupProcedure:   unaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts),
		GroupServiceJoinGroupProcedure:     unaryHandler(GroupServiceJoinGroupProcedure, svc.JoinGroup, opts),
		GroupServiceGetGroupProcedure:      unaryHandler(GroupServiceGetGroupProcedure, svc.GetGroup, opts),
		GroupServiceTransferAdminProcedure: unaryHandler(GroupServiceTransferAdminProcedure, svc.TransferAdmin, opts),
		GroupServiceLeaveGroupProcedure:    unaryHandler(GroupServiceLeaveGroupProcedure, svc.LeaveGroup, opts),
	})
}

// GroupServiceClient is a client for GroupService.
type GroupServiceClient interface {
	CreateGroup(context.Context, *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error)
	JoinGroup(context.Context, *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error)
	GetGroup(context.Context, *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error)
	TransferAdmin(context.Context, *connect.Request[TransferAdminRequest]) (*connect.Response[TransferAdminResponse], error)
	LeaveGroup(context.Context, *connect.Request[LeaveGroupRequest]) (*connect.Response[LeaveGroupResponse], error)
}

type groupServiceClient struct {
	createGroup   *connect.Client[CreateGroupRequest, CreateGroupResponse]
	joinGroup     *connect.Client[JoinGroupRequest, JoinGroupResponse]
	getGroup      *connect.Client[GetGroupRequest, GetGroupResponse]
	transferAdmin *connect.Client[TransferAdminRequest, TransferAdminResponse]
	leaveGroup    *connect.Client[LeaveGroupRequest, LeaveGroupResponse]
}

// NewGroupServiceClient constructs a client for GroupService at baseURL.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) GroupServiceClient {
	return &groupServiceClient{
		createGroup:   unaryClient[CreateGroupRequest, CreateGroupResponse](httpClient, baseURL, GroupServiceCreateGroupProcedure, opts),
		joinGroup:     unaryClient[JoinGroupRequest, JoinGroupResponse](httpClient, baseURL, GroupServiceJoinGroupProcedure, opts),
		getGroup:      unaryClient[GetGroupRequest, GetGroupResponse](httpClient, baseURL, GroupServiceGetGroupProcedure, opts),
		transferAdmin: unaryClient[TransferAdminRequest, TransferAdminResponse](httpClient, baseURL, GroupServiceTransferAdminProcedure, opts),
		leaveGroup:    unaryClient[LeaveGroupRequest, LeaveGroupResponse](httpClient, baseURL, GroupServiceLeaveGroupProcedure, opts),
	}
}

func (c *groupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) JoinGroup(ctx context.Context, req *connect.Request[JoinGroupRequest]) (*connect.Response[JoinGroupResponse], error) {
	return c.joinGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) TransferAdmin(ctx context.Context, req *connect.Request[TransferAdminRequest]) (*connect.Response[TransferAdminResponse], error) {
	return c.transferAdmin.CallUnary(ctx, req)
}

func (c *groupServiceClient) LeaveGroup(ctx context.Context, req *connect.Request[LeaveGroupRequest]) (*connect.Response[LeaveGroupResponse], error) {
	return c.leaveGroup.CallUnary(ctx, req)
}
