// Package api defines the messbook RPC surface: request and response
// messages, Connect handlers and typed clients.
//
// Messages are plain Go structs carried by a JSON codec, so any Connect or
// HTTP client can call the API with `Content-Type: application/json`:
//
//	curl -X POST http://localhost:8080/messbook.v1.SummaryService/GetGroupSummary \
//	  -H 'Authorization: Bearer <token>' -H 'Content-Type: application/json' \
//	  -d '{"group_id": "...", "period": "2025-03"}'
package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

const (
	codecNameJSON            = "json"
	codecNameJSONCharsetUTF8 = codecNameJSON + "; charset=utf-8"
)

// jsonCodec implements connect.Codec with encoding/json. It replaces
// Connect's protojson codec, which only accepts generated messages.
type jsonCodec struct {
	name string
}

var _ connect.Codec = jsonCodec{}

func (c jsonCodec) Name() string {
	return c.name
}

func (c jsonCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (c jsonCodec) Unmarshal(data []byte, message any) error {
	// An empty body is an empty message.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("invalid JSON message: %w", err)
	}
	return nil
}

// HandlerOptions registers the JSON codec under both content types browsers
// and Connect clients send.
func HandlerOptions() connect.HandlerOption {
	return connect.WithHandlerOptions(
		connect.WithCodec(jsonCodec{name: codecNameJSON}),
		connect.WithCodec(jsonCodec{name: codecNameJSONCharsetUTF8}),
	)
}

// ClientOptions makes a Connect client speak the JSON codec.
func ClientOptions() connect.ClientOption {
	return connect.WithClientOptions(
		connect.WithCodec(jsonCodec{name: codecNameJSON}),
	)
}
