// Package transport is the cluster RPC substrate: it
// can locate a named process on a remote node, monitor it for death, and
// call a procedure on a remote node with arguments, blocking for the
// result. It is built on google.golang.org/grpc, using a JSON codec
// instead of generated protobuf stubs (see DESIGN.md) so every message on
// the wire is a plain Go struct.
package transport

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)     { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                      { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
