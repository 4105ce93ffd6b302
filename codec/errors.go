package codec

import (
	"errors"
	"fmt"
)

var errTrailingData = errors.New("trailing data after document")

// EncodeError reports a value the codec could not serialize.
type EncodeError struct {
	Codec CodecType
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s encode: %v", e.Codec, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Kind() string { return "encode error" }

// DecodeError reports malformed input or a shape mismatch.
type DecodeError struct {
	Codec CodecType
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Kind() string { return "decode error" }
