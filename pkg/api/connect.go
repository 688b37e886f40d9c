package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// packageName prefixes every procedure: /messbook.v1.<Service>/<Method>.
const packageName = "messbook.v1"

func servicePath(service string) string {
	return "/" + packageName + "." + service + "/"
}

// unaryHandler builds a Connect handler speaking the JSON codec. Caller
// options come last so they can add interceptors.
func unaryHandler[Req, Res any](
	procedure string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) *connect.Handler {
	options := append([]connect.HandlerOption{HandlerOptions()}, opts...)
	return connect.NewUnaryHandler(procedure, fn, options...)
}

// serviceHandler routes requests to the handler registered for their
// procedure, answering 404 for anything else under the service path.
func serviceHandler(path string, routes map[string]*connect.Handler) (string, http.Handler) {
	return path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

func unaryClient[Req, Res any](httpClient connect.HTTPClient, baseURL, procedure string, opts []connect.ClientOption) *connect.Client[Req, Res] {
	options := append([]connect.ClientOption{ClientOptions()}, opts...)
	return connect.NewClient[Req, Res](httpClient, strings.TrimRight(baseURL, "/")+procedure, options...)
}
