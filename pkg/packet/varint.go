package packet

import "github.com/pkg/errors"

// EncodeVarInt returns the variable byte integer encoding of value.
// MQTT 5.0 Section 1.5.5, MQTT 3.1.1 Section 2.2.3
func EncodeVarInt(value uint32) ([]byte, error) {
	return AppendVarInt(make([]byte, 0, VarIntSize(value)), value)
}

// AppendVarInt appends the variable byte integer encoding of value to dst.
// Values above MaxVarInt fail with ErrRange and leave dst unchanged.
func AppendVarInt(dst []byte, value uint32) ([]byte, error) {
	if value > MaxVarInt {
		return dst, errors.Wrapf(ErrRange, "variable byte integer %d", value)
	}
	return appendVarInt(dst, value), nil
}

// appendVarInt expects value to be in range.
func appendVarInt(dst []byte, value uint32) []byte {
	for {
		encodedByte := byte(value % 128)
		value /= 128
		if value > 0 {
			encodedByte |= 0x80
		}
		dst = append(dst, encodedByte)
		if value == 0 {
			return dst
		}
	}
}

// DecodeVarInt decodes a variable byte integer from the start of buf and
// returns the value and the number of bytes consumed.
//
// ErrTruncatedInput is returned when buf ends while the continuation bit is
// still set; a caller holding a partial stream should supply more bytes.
// ErrMalformedVarInt is returned when a fifth byte would be required.
func DecodeVarInt(buf []byte) (value uint32, n int, err error) {
	var multiplier uint32 = 1

	for i := 0; i < 4; i++ {
		if i >= len(buf) {
			return 0, 0, ErrTruncatedInput
		}
		encodedByte := buf[i]
		value += uint32(encodedByte&0x7F) * multiplier

		if encodedByte&0x80 == 0 {
			return value, i + 1, nil
		}
		multiplier *= 128
	}

	return 0, 0, ErrMalformedVarInt
}

// VarIntSize returns the number of bytes needed to encode a value as a variable byte integer.
func VarIntSize(value uint32) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	default:
		return 4
	}
}
