package codec

import (
	"bytes"
	"encoding/json"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug.
// Cons: opaque values lose their Go type. Numbers inside Request.Parameters
// and Response.Data decode as json.Number (the literal digits, so 64-bit
// integers stay exact) and receivers reshape them with Convert.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Codec: CodecTypeJSON, Err: err}
	}
	return data, nil
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &DecodeError{Codec: CodecTypeJSON, Err: err}
	}
	// one document per payload
	if dec.More() {
		return &DecodeError{Codec: CodecTypeJSON, Err: errTrailingData}
	}
	return nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
