package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// SummaryService derives monthly cost summaries.
const SummaryServiceName = "SummaryService"

const (
	SummaryServiceGetGroupSummaryProcedure     = "/" + packageName + "." + SummaryServiceName + "/GetGroupSummary"
	SummaryServiceGetMemberSummaryProcedure    = "/" + packageName + "." + SummaryServiceName + "/GetMemberSummary"
	SummaryServiceListMemberSummariesProcedure = "/" + packageName + "." + SummaryServiceName + "/ListMemberSummaries"
)

// SummaryServiceHandler is implemented by the server side of SummaryService.
type SummaryServiceHandler interface {
	GetGroupSummary(context.Context, *connect.Request[GetGroupSummaryRequest]) (*connect.Response[GetGroupSummaryResponse], error)
	GetMemberSummary(context.Context, *connect.Request[GetMemberSummaryRequest]) (*connect.Response[GetMemberSummaryResponse], error)
	ListMemberSummaries(context.Context, *connect.Request[ListMemberSummariesRequest]) (*connect.Response[ListMemberSummariesResponse], error)
}

// NewSummaryServiceHandler returns the path prefix and handler to mount on a mux.
func NewSummaryServiceHandler(svc SummaryServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return serviceHandler(servicePath(SummaryServiceName), map[string]*connect.Handler{
		SummaryServiceGetGroupSummaryProcedure:     unaryHandler(SummaryServiceGetGroupSummaryProcedure, svc.GetGroupSummary, opts),
		SummaryServiceGetMemberSummaryProcedure:    unaryHandler(SummaryServiceGetMemberSummaryProcedure, svc.GetMemberSummary, opts),
		SummaryServiceListMemberSummariesProcedure: unaryHandler(SummaryServiceListMemberSummariesProcedure, svc.ListMemberSummaries, opts),
	})
}

// SummaryServiceClient is a client for SummaryService.
type SummaryServiceClient interface {
	GetGroupSummary(context.Context, *connect.Request[GetGroupSummaryRequest]) (*connect.Response[GetGroupSummaryResponse], error)
	GetMemberSummary(context.Context, *connect.Request[GetMemberSummaryRequest]) (*connect.Response[GetMemberSummaryResponse], error)
	ListMemberSummaries(context.Context, *connect.Request[ListMemberSummariesRequest]) (*connect.Response[ListMemberSummariesResponse], error)
}

type summaryServiceClient struct {
	getGroupSummary     *connect.Client[GetGroupSummaryRequest, GetGroupSummaryResponse]
	getMemberSummary    *connect.Client[GetMemberSummaryRequest, GetMemberSummaryResponse]
	listMemberSummaries *connect.Client[ListMemberSummariesRequest, ListMemberSummariesResponse]
}

// NewSummaryServiceClient constructs a client for SummaryService at baseURL.
func NewSummaryServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SummaryServiceClient {
	return &summaryServiceClient{
		getGroupSummary:     unaryClient[GetGroupSummaryRequest, GetGroupSummaryResponse](httpClient, baseURL, SummaryServiceGetGroupSummaryProcedure, opts),
		getMemberSummary:    unaryClient[GetMemberSummaryRequest, GetMemberSummaryResponse](httpClient, baseURL, SummaryServiceGetMemberSummaryProcedure, opts),
		listMemberSummaries: unaryClient[ListMemberSummariesRequest, ListMemberSummariesResponse](httpClient, baseURL, SummaryServiceListMemberSummariesProcedure, opts),
	}
}

func (c *summaryServiceClient) GetGroupSummary(ctx context.Context, req *connect.Request[GetGroupSummaryRequest]) (*connect.Response[GetGroupSummaryResponse], error) {
	return c.getGroupSummary.CallUnary(ctx, req)
}

func (c *summaryServiceClient) GetMemberSummary(ctx context.Context, req *connect.Request[GetMemberSummaryRequest]) (*connect.Response[GetMemberSummaryResponse], error) {
	return c.getMemberSummary.CallUnary(ctx, req)
}

func (c *summaryServiceClient) ListMemberSummaries(ctx context.Context, req *connect.Request[ListMemberSummariesRequest]) (*connect.Response[ListMemberSummariesResponse], error) {
	return c.listMemberSummaries.CallUnary(ctx, req)
}
