package protocol

import (
	"github.com/segmentio/encoding/json"
)

// Serializer defines the contract for serializing and deserializing book event payloads.
// Sinks use it to put logs on the wire, so different deployments can pick
// their own format without touching the engine.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. a book log) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct{}

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
