package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const AuthServiceName = "AuthService"

const (
	AuthServiceRegisterProcedure = "/" + packageName + "." + AuthServiceName + "/Register"
	AuthServiceLoginProcedure    = "/" + packageName + "." + AuthServiceName + "/Login"
)

// AuthServiceHandler is implemented by the server side of AuthService.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
}

// NewAuthServiceHandler returns the path prefix and handler to mount on a mux.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	return serviceHandler(servicePath(AuthServiceName), map[string]*connect.Handler{
		AuthServiceRegisterProcedure: unaryHandler(AuthServiceRegisterProcedure, svc.Register, opts),
		AuthServiceLoginProcedure:    unaryHandler(AuthServiceLoginProcedure, svc.Login, opts),
	})
}

// AuthServiceClient is a client for AuthService.
type AuthServiceClient interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
}

type authServiceClient struct {
	register *connect.Client[RegisterRequest, RegisterResponse]
	login    *connect.Client[LoginRequest, LoginResponse]
}

// NewAuthServiceClient constructs a client for AuthService at baseURL.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	return &authServiceClient{
		register: unaryClient[RegisterRequest, RegisterResponse](httpClient, baseURL, AuthServiceRegisterProcedure, opts),
		login:    unaryClient[LoginRequest, LoginResponse](httpClient, baseURL, AuthServiceLoginProcedure, opts),
	}
}

func (c *authServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}
