package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

// FixedHeader is the first part of every MQTT control packet: the packet
// type and flags byte followed by the remaining length.
// MQTT 3.1.1 Section 2.2, MQTT 5.0 Section 2.1.1
type FixedHeader struct {
	Type            Type
	Flags           byte
	RemainingLength uint32
}

// FixedHeaderSize calculates the size of the fixed header for a given remaining length.
func FixedHeaderSize(remainingLength uint32) int {
	return 1 + VarIntSize(remainingLength)
}

// EncodeFixedHeader returns the encoded fixed header for a body of bodyLen bytes.
func EncodeFixedHeader(packetType Type, flags byte, bodyLen uint32) ([]byte, error) {
	h := FixedHeader{Type: packetType, Flags: flags, RemainingLength: bodyLen}
	return h.Append(make([]byte, 0, FixedHeaderSize(bodyLen)))
}

// Append appends the encoded header to dst.
func (h FixedHeader) Append(dst []byte) ([]byte, error) {
	if h.RemainingLength > MaxRemainingLength {
		return dst, errors.Wrapf(ErrRange, "remaining length %d", h.RemainingLength)
	}
	dst = append(dst, byte(h.Type)<<4|(h.Flags&0x0F))
	return appendVarInt(dst, h.RemainingLength), nil
}

// Size returns the encoded size of the header itself.
func (h FixedHeader) Size() int {
	return FixedHeaderSize(h.RemainingLength)
}

// String returns a brief representation suitable for logging.
func (h FixedHeader) String() string {
	return fmt.Sprintf("%s (f%04b, rl%d)", h.Type, h.Flags, h.RemainingLength)
}

// validFlags reports whether the flags nibble is allowed for the packet type.
// MQTT 3.1.1 Section 2.2.2
func (h FixedHeader) validFlags() bool {
	switch h.Type {
	case TypePublish:
		return true // validated in DecodePublish
	case TypePubrel, TypeSubscribe, TypeUnsubscribe:
		return h.Flags == 0x02
	default:
		return h.Flags == 0
	}
}

// DecodeFixedHeader decodes the fixed header at the start of buf and
// returns it with the number of bytes consumed.
//
// A reserved type nibble fails with ErrUnknownPacketType before the
// remaining length is looked at. Errors from the remaining length decode
// (ErrTruncatedInput, ErrMalformedVarInt) are passed through.
func DecodeFixedHeader(buf []byte) (FixedHeader, int, error) {
	if len(buf) < 1 {
		return FixedHeader{}, 0, ErrTruncatedInput
	}

	h := FixedHeader{
		Type:  Type(buf[0] >> 4),
		Flags: buf[0] & 0x0F,
	}
	if !h.Type.Valid() {
		return FixedHeader{}, 0, errors.Wrapf(ErrUnknownPacketType, "type nibble %d", byte(h.Type))
	}

	remainingLength, n, err := DecodeVarInt(buf[1:])
	if err != nil {
		return FixedHeader{}, 0, errors.Wrap(err, "remaining length")
	}
	h.RemainingLength = remainingLength

	return h, 1 + n, nil
}
