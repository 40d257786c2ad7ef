package packet

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
)

// String is a UTF-8 string that fits the MQTT string encoding: at most
// MaxStringLength bytes, well-formed, and free of U+0000. The only way to
// obtain a non-empty String is through NewString or a decoder, so every
// String value is encodable. The zero value is the empty string.
type String struct {
	s string
}

// NewString validates s and returns it as a String.
func NewString(s string) (String, error) {
	if len(s) > MaxStringLength {
		return String{}, errors.Wrapf(ErrRange, "string of %d bytes", len(s))
	}
	if err := ValidateUTF8([]byte(s)); err != nil {
		return String{}, err
	}
	return String{s: s}, nil
}

// MustString is like NewString but panics on invalid input. Intended for
// constants and tests.
func MustString(s string) String {
	v, err := NewString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the Go string.
func (s String) String() string {
	return s.s
}

// Len returns the byte length of the string.
func (s String) Len() int {
	return len(s.s)
}

// IsEmpty reports whether the string has zero length.
func (s String) IsEmpty() bool {
	return len(s.s) == 0
}

// MarshalText lets encoders print a String as plain text.
func (s String) MarshalText() ([]byte, error) {
	return []byte(s.s), nil
}

// encodedSize is the size of the string including its length prefix.
func (s String) encodedSize() int {
	return 2 + len(s.s)
}

// Binary is opaque data of at most MaxStringLength bytes, encoded with a
// 2-byte length prefix. A Binary owns its bytes.
type Binary struct {
	b []byte
}

// NewBinary copies b into a Binary.
func NewBinary(b []byte) (Binary, error) {
	if len(b) > MaxStringLength {
		return Binary{}, errors.Wrapf(ErrRange, "binary data of %d bytes", len(b))
	}
	return Binary{b: clone(b)}, nil
}

// MustBinary is like NewBinary but panics on invalid input.
func MustBinary(b []byte) Binary {
	v, err := NewBinary(b)
	if err != nil {
		panic(err)
	}
	return v
}

// Bytes returns a copy of the data.
func (b Binary) Bytes() []byte {
	return clone(b.b)
}

// Len returns the length of the data.
func (b Binary) Len() int {
	return len(b.b)
}

// Equal reports whether b and o hold the same bytes.
func (b Binary) Equal(o Binary) bool {
	return bytes.Equal(b.b, o.b)
}

func (b Binary) encodedSize() int {
	return 2 + len(b.b)
}

// MarshalText renders the data as lowercase hex.
func (b Binary) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(b.b)))
	hex.Encode(out, b.b)
	return out, nil
}
