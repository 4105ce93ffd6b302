// Package codec turns envelopes into bytes and back.
//
// The rest of the framework only sees the Codec interface, so the wire format
// is chosen by configuration: JSON is the default, Gob is available for Go-only
// deployments.
package codec

import "fmt"

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
	CodecTypeGob  CodecType = 1
)

// Encoder serializes a value to bytes.
type Encoder interface {
	Encode(v any) ([]byte, error)
}

// Decoder fills v, which must be a pointer, from data.
type Decoder interface {
	Decode(data []byte, v any) error
}

type Codec interface {
	Encoder
	Decoder
	Type() CodecType // 0=JSON, 1=Gob
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeGob:
		return "gob"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

// Valid reports whether t names a known codec.
func (t CodecType) Valid() bool {
	return t == CodecTypeJSON || t == CodecTypeGob
}

// GetCodec returns the codec for codecType.
func GetCodec(codecType CodecType) (Codec, error) {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}, nil
	case CodecTypeGob:
		return &GobCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec type %d", byte(codecType))
	}
}

// ByName returns the codec registered under name ("json" or "gob").
// An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return &JSONCodec{}, nil
	case "gob":
		return &GobCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// Convert reshapes src into dst (a pointer) by a round trip through c.
//
// Decoded envelopes carry arguments and results as opaque values (a JSON number
// arrives as float64, an object as map[string]any); Convert turns them into the
// concrete type the receiving side declares.
func Convert(c Codec, src any, dst any) error {
	data, err := c.Encode(src)
	if err != nil {
		return err
	}
	return c.Decode(data, dst)
}
