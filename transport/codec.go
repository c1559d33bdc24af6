package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc/encoding so Server and Client can
// select it via grpc.CallContentSubtype / grpc.ForceServerCodec. The
// teacher's lineage never generates protobuf code for this project (no
// protoc in this exercise; see DESIGN.md), so Envelope travels as JSON
// over the wire instead of a generated protobuf message — grpc itself
// doesn't care, it only needs a Codec that can Marshal/Unmarshal
// interface{}.
const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec using encoding/json. grpc
// passes it the *Envelope pointer the generated (in our case, hand
// written) client/server stubs declare.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transport: failed to unmarshal into %T: %w", v, err)
	}
	return nil
}
