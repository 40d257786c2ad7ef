package packet

import "github.com/pkg/errors"

// Packet is the interface implemented by all MQTT control packets.
//
// Implementations describe only their body; the fixed header, and with it
// the remaining length, is always derived by Encode.
type Packet interface {
	// Type returns the packet type.
	Type() Type

	// Flags returns the low nibble of the fixed header's first byte.
	Flags() byte

	// BodySize returns the size of the variable header plus payload.
	BodySize() int

	// AppendBody appends the variable header and payload to dst.
	AppendBody(dst []byte) []byte
}

// Validator is implemented by packets whose fields can hold values that
// cannot be encoded. Encode calls it before writing anything.
type Validator interface {
	Validate() error
}

// Will represents an MQTT Will Message configuration.
type Will struct {
	Topic      String
	Payload    Binary
	QoS        QoS
	Retain     bool
	Properties Properties // MQTT 5.0 only
}

// EncodedSize returns the total size of the encoded packet.
func EncodedSize(p Packet) int {
	size := p.BodySize()
	return FixedHeaderSize(uint32(size)) + size
}

// Encode returns the complete wire form of p.
func Encode(p Packet) ([]byte, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	return appendPacket(make([]byte, 0, EncodedSize(p)), p)
}

// Append appends the complete wire form of p to dst. On error dst is
// returned unchanged.
func Append(dst []byte, p Packet) ([]byte, error) {
	if err := validate(p); err != nil {
		return dst, err
	}
	return appendPacket(dst, p)
}

// validate runs p's Validator. Sizing a packet is only safe once it passed.
func validate(p Packet) error {
	if v, ok := p.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errors.Wrap(err, p.Type().String())
		}
	}
	return nil
}

func appendPacket(dst []byte, p Packet) ([]byte, error) {
	size := p.BodySize()
	if size > MaxRemainingLength {
		return dst, errors.Wrapf(ErrRange, "%s body of %d bytes", p.Type(), size)
	}

	h := FixedHeader{Type: p.Type(), Flags: p.Flags(), RemainingLength: uint32(size)}
	out, err := h.Append(dst)
	if err != nil {
		return dst, err
	}
	return p.AppendBody(out), nil
}

// Decode decodes the first packet in buf and returns it with the number of
// bytes it occupied. version selects the body layout (the protocol level
// agreed in CONNECT); CONNECT itself is decoded at its own level.
//
// When buf holds only part of a packet the error satisfies IsIncomplete:
// ErrTruncatedInput for a partial fixed header, ErrTruncatedPacket when the
// remaining length declares more bytes than buf holds.
func Decode(buf []byte, version Version) (Packet, int, error) {
	h, n, err := DecodeFixedHeader(buf)
	if err != nil {
		return nil, 0, err
	}

	total := n + int(h.RemainingLength)
	if len(buf) < total {
		return nil, 0, errors.Wrapf(ErrTruncatedPacket, "%s declares %d bytes, %d available",
			h.Type, h.RemainingLength, len(buf)-n)
	}

	p, err := DecodeBody(h, buf[n:total], version)
	if err != nil {
		return nil, 0, err
	}
	return p, total, nil
}

// DecodeBody decodes a packet body that has already been split off its
// fixed header. body must hold exactly h.RemainingLength bytes.
func DecodeBody(h FixedHeader, body []byte, version Version) (Packet, error) {
	if uint64(len(body)) < uint64(h.RemainingLength) {
		return nil, errors.Wrapf(ErrTruncatedPacket, "%s declares %d bytes, %d available",
			h.Type, h.RemainingLength, len(body))
	}
	if uint64(len(body)) > uint64(h.RemainingLength) {
		return nil, &malformedError{err: errors.Wrapf(ErrExtraTrailingBytes, "%s declares %d bytes, got %d",
			h.Type, h.RemainingLength, len(body))}
	}
	if !h.validFlags() {
		return nil, errors.Wrapf(ErrInvalidFlags, "%s flags %04b", h.Type, h.Flags)
	}

	decode, ok := decoderTable(version)[h.Type]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedPacketType, "%s at protocol level %d", h.Type, version)
	}
	p, err := decode(h.Flags, body, version)
	if err != nil {
		return nil, errors.Wrap(err, h.Type.String())
	}
	return p, nil
}

type decodeFunc func(flags byte, body []byte, version Version) (Packet, error)

// wrap adapts a typed decoder so a failed decode yields a nil Packet rather
// than a typed nil.
func wrap[P Packet](fn func(flags byte, body []byte, version Version) (P, error)) decodeFunc {
	return func(flags byte, body []byte, version Version) (Packet, error) {
		p, err := fn(flags, body, version)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var decoders311 = map[Type]decodeFunc{
	TypeConnect:     wrap(func(_ byte, b []byte, _ Version) (*Connect, error) { return DecodeConnect(b) }),
	TypeConnack:     wrap(func(_ byte, b []byte, v Version) (*Connack, error) { return DecodeConnack(b, v) }),
	TypePublish:     wrap(DecodePublish),
	TypePuback:      wrap(func(_ byte, b []byte, v Version) (*Ack, error) { return DecodeAck(TypePuback, b, v) }),
	TypePubrec:      wrap(func(_ byte, b []byte, v Version) (*Ack, error) { return DecodeAck(TypePubrec, b, v) }),
	TypePubrel:      wrap(func(_ byte, b []byte, v Version) (*Ack, error) { return DecodeAck(TypePubrel, b, v) }),
	TypePubcomp:     wrap(func(_ byte, b []byte, v Version) (*Ack, error) { return DecodeAck(TypePubcomp, b, v) }),
	TypeSubscribe:   wrap(func(_ byte, b []byte, v Version) (*Subscribe, error) { return DecodeSubscribe(b, v) }),
	TypeSuback:      wrap(func(_ byte, b []byte, v Version) (*Suback, error) { return DecodeSuback(b, v) }),
	TypeUnsubscribe: wrap(func(_ byte, b []byte, v Version) (*Unsubscribe, error) { return DecodeUnsubscribe(b, v) }),
	TypeUnsuback:    wrap(func(_ byte, b []byte, v Version) (*Unsuback, error) { return DecodeUnsuback(b, v) }),
	TypePingreq:     wrap(func(_ byte, b []byte, _ Version) (*Pingreq, error) { return DecodePingreq(b) }),
	TypePingresp:    wrap(func(_ byte, b []byte, _ Version) (*Pingresp, error) { return DecodePingresp(b) }),
	TypeDisconnect:  wrap(func(_ byte, b []byte, v Version) (*Disconnect, error) { return DecodeDisconnect(b, v) }),
}

var decoders5 = func() map[Type]decodeFunc {
	m := make(map[Type]decodeFunc, len(decoders311)+1)
	for t, fn := range decoders311 {
		m[t] = fn
	}
	m[TypeAuth] = wrap(func(_ byte, b []byte, _ Version) (*Auth, error) { return DecodeAuth(b) })
	return m
}()

// decoderTable returns the body decoders available at a protocol level.
func decoderTable(version Version) map[Type]decodeFunc {
	if version == Version5 {
		return decoders5
	}
	return decoders311
}

// Supported reports whether packets of type t can be decoded at the given protocol level.
func Supported(t Type, version Version) bool {
	_, ok := decoderTable(version)[t]
	return ok
}
