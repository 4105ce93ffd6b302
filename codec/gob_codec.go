package codec

import (
	"bytes"
	"encoding/gob"
)

// GobCodec serializes with encoding/gob. It keeps Go types intact across the
// wire, but only talks to Go peers. Custom types carried inside opaque fields
// (Request.Parameters, Response.Data) must be registered with gob.Register on
// both sides.
type GobCodec struct{}

func (c *GobCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, &EncodeError{Codec: CodecTypeGob, Err: err}
	}
	return buf.Bytes(), nil
}

func (c *GobCodec) Decode(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return &DecodeError{Codec: CodecTypeGob, Err: err}
	}
	return nil
}

func (c *GobCodec) Type() CodecType {
	return CodecTypeGob
}
