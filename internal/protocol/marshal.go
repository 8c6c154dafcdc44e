package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var (
	// ErrUnknownKind is returned when a tagged value carries a kind this
	// client does not understand.
	ErrUnknownKind = errors.New("protocol: unknown kind")

	// ErrMissingData is returned when a tagged value requires data but has none.
	ErrMissingData = errors.New("protocol: missing data")

	// ErrMalformed is returned when a document cannot be decoded. Causes
	// raised inside nested values are flattened into its message.
	ErrMalformed = errors.New("protocol: malformed document")
)

// The server speaks plain JSON; jsoniter keeps encoding/json semantics
// (struct tags, Marshaler interfaces, integer map keys).
var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal serializes a value to JSON
func Marshal(v any) ([]byte, error) {
	return codec.Marshal(v)
}

// Unmarshal deserializes JSON data into v. When v decodes itself its
// error is returned as is, so ErrUnknownKind and ErrMissingData can be
// matched with errors.Is.
func Unmarshal(data []byte, v any) error {
	if u, ok := v.(json.Unmarshaler); ok {
		return u.UnmarshalJSON(data)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// DecodeUpdate reads one ServerUpdate from r. Failures wrap ErrMalformed.
func DecodeUpdate(r io.Reader) (*ServerUpdate, error) {
	var u ServerUpdate
	if err := codec.NewDecoder(r).Decode(&u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &u, nil
}

// tagged is the adjacently tagged enum layout used on the wire:
// {"kind": "Variant", "data": payload}
type tagged struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

func marshalTagged(kind string, data any) ([]byte, error) {
	t := tagged{Kind: kind}
	if data != nil {
		raw, err := codec.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", kind, err)
		}
		t.Data = raw
	}
	return codec.Marshal(t)
}

func unmarshalTagged(b []byte) (tagged, error) {
	var t tagged
	if err := codec.Unmarshal(b, &t); err != nil {
		return t, err
	}
	if t.Kind == "" {
		return t, fmt.Errorf("%w: missing kind", ErrUnknownKind)
	}
	return t, nil
}

func decodeData(t tagged, v any) error {
	if len(t.Data) == 0 || string(t.Data) == "null" {
		return fmt.Errorf("%w: %s", ErrMissingData, t.Kind)
	}
	if err := codec.Unmarshal(t.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", t.Kind, err)
	}
	return nil
}
