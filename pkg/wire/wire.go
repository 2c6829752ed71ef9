// Package wire holds the strict field walker shared by the binary codecs.
//
// Records use the protobuf wire format with fixed field numbers. Encoders
// always emit every field in ascending order so that an encoding is
// canonical and safe to hash. Decoders reject unknown fields, unexpected
// wire types, repeated singular fields and trailing garbage.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for any input that does not follow the schema.
var ErrMalformed = errors.New("malformed wire data")

// FieldFunc consumes the value of one field and returns the number of
// bytes it read from b.
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// Walk iterates over every field of a message.
func Walk(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: tag: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 || m > len(b) {
			return fmt.Errorf("%w: field %d overruns buffer", ErrMalformed, num)
		}
		b = b[m:]
	}
	return nil
}

// Bytes consumes a length-delimited field value.
func Bytes(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: field %d: wire type %d, want bytes", ErrMalformed, num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return v, n, nil
}

// Varint consumes a varint field value.
func Varint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: field %d: wire type %d, want varint", ErrMalformed, num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
	}
	return v, n, nil
}

// Unknown reports a field number outside the schema.
func Unknown(num protowire.Number) error {
	return fmt.Errorf("%w: unknown field %d", ErrMalformed, num)
}

// Duplicate reports a singular field that appeared twice.
func Duplicate(num protowire.Number) error {
	return fmt.Errorf("%w: duplicate field %d", ErrMalformed, num)
}

// Missing reports a required field that never appeared.
func Missing(name string) error {
	return fmt.Errorf("%w: missing %s", ErrMalformed, name)
}

// AppendBytes appends a length-delimited field.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString appends a length-delimited string field.
func AppendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendVarint appends a varint field.
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendMessage appends an embedded message produced by enc.
func AppendMessage(b []byte, num protowire.Number, enc func([]byte) []byte) []byte {
	return AppendBytes(b, num, enc(nil))
}
