package packet

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// AppendUint8 appends a single byte.
func AppendUint8(dst []byte, value uint8) []byte {
	return append(dst, value)
}

// AppendUint16 appends a 16-bit unsigned integer in big-endian order.
func AppendUint16(dst []byte, value uint16) []byte {
	return binary.BigEndian.AppendUint16(dst, value)
}

// AppendUint32 appends a 32-bit unsigned integer in big-endian order.
func AppendUint32(dst []byte, value uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, value)
}

// DecodeUint8 decodes a single byte.
func DecodeUint8(buf []byte) (value uint8, n int, err error) {
	if len(buf) < 1 {
		return 0, 0, ErrTruncatedInput
	}
	return buf[0], 1, nil
}

// DecodeUint16 decodes a 16-bit unsigned integer from big-endian bytes.
func DecodeUint16(buf []byte) (value uint16, n int, err error) {
	if len(buf) < 2 {
		return 0, 0, ErrTruncatedInput
	}
	return binary.BigEndian.Uint16(buf), 2, nil
}

// DecodeUint32 decodes a 32-bit unsigned integer from big-endian bytes.
func DecodeUint32(buf []byte) (value uint32, n int, err error) {
	if len(buf) < 4 {
		return 0, 0, ErrTruncatedInput
	}
	return binary.BigEndian.Uint32(buf), 4, nil
}

// AppendString appends s with its 2-byte length prefix.
// MQTT 5.0 Section 1.5.4, MQTT 3.1.1 Section 1.5.3
func AppendString(dst []byte, s String) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s.s)))
	return append(dst, s.s...)
}

// AppendBinary appends b with its 2-byte length prefix.
// MQTT 5.0 Section 1.5.6
func AppendBinary(dst []byte, b Binary) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(b.b)))
	return append(dst, b.b...)
}

// decodePrefixed returns a view of the length-prefixed field at the start of buf.
func decodePrefixed(buf []byte) ([]byte, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrTruncatedInput
	}
	l := int(binary.BigEndian.Uint16(buf))
	if len(buf) < 2+l {
		return nil, 0, ErrTruncatedInput
	}
	return buf[2 : 2+l], 2 + l, nil
}

// DecodeString decodes a length-prefixed UTF-8 string from buf.
// The returned String does not reference buf.
func DecodeString(buf []byte) (String, int, error) {
	data, n, err := decodePrefixed(buf)
	if err != nil {
		return String{}, 0, err
	}
	if err := ValidateUTF8(data); err != nil {
		return String{}, 0, err
	}
	return String{s: string(data)}, n, nil
}

// DecodeBinary decodes length-prefixed binary data from buf.
// The returned Binary does not reference buf.
func DecodeBinary(buf []byte) (Binary, int, error) {
	data, n, err := decodePrefixed(buf)
	if err != nil {
		return Binary{}, 0, err
	}
	return Binary{b: clone(data)}, n, nil
}

// ValidateUTF8 validates that a byte slice is well-formed UTF-8 without null characters.
// MQTT 5.0 Section 1.5.4, MQTT 3.1.1 Section 1.5.3
func ValidateUTF8(data []byte) error {
	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}
	for _, c := range data {
		if c == 0 {
			return errors.Wrap(ErrInvalidUTF8, "null character")
		}
	}
	return nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
