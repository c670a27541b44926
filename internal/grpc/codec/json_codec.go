// Package codec provides a protobuf-free wire codec for the gRPC server:
// plain Go structs marshaled as JSON instead of protobuf messages. This
// lets the service layer register hand-rolled request/response types
// directly with google.golang.org/grpc without a .proto/protoc step.
package codec

import "encoding/json"

// Name is registered with google.golang.org/grpc/encoding so the server and
// any client dialing with grpc.CallContentSubtype(Name) use this codec.
const Name = "json"

// JSON implements encoding.Codec by delegating to encoding/json. Any
// exported Go struct can be a request or response type; none need to
// implement proto.Message.
type JSON struct{}

func (JSON) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (JSON) Name() string {
	return Name
}
