package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

// Ack represents the four packets of the QoS 1 and QoS 2 publish flows:
// PUBACK, PUBREC, PUBREL and PUBCOMP. They share one layout and differ only
// in their type and, for PUBREL, the fixed header flags.
// MQTT 3.1.1 Sections 3.4-3.7, MQTT 5.0 Sections 3.4-3.7
type Ack struct {
	PacketType Type
	PacketID   uint16
	ReasonCode ReasonCode // MQTT 5.0 only (default: Success)
	Properties Properties // MQTT 5.0 only
	Version    Version
}

// NewPuback creates a PUBACK for the given packet identifier.
func NewPuback(version Version, packetID uint16) *Ack {
	return &Ack{PacketType: TypePuback, PacketID: packetID, Version: version}
}

// NewPubrec creates a PUBREC for the given packet identifier.
func NewPubrec(version Version, packetID uint16) *Ack {
	return &Ack{PacketType: TypePubrec, PacketID: packetID, Version: version}
}

// NewPubrel creates a PUBREL for the given packet identifier.
func NewPubrel(version Version, packetID uint16) *Ack {
	return &Ack{PacketType: TypePubrel, PacketID: packetID, Version: version}
}

// NewPubcomp creates a PUBCOMP for the given packet identifier.
func NewPubcomp(version Version, packetID uint16) *Ack {
	return &Ack{PacketType: TypePubcomp, PacketID: packetID, Version: version}
}

func isAckType(t Type) bool {
	return t == TypePuback || t == TypePubrec || t == TypePubrel || t == TypePubcomp
}

// Type returns the acknowledgement's packet type.
func (a *Ack) Type() Type {
	return a.PacketType
}

// Flags returns 0010 for PUBREL and zero otherwise.
func (a *Ack) Flags() byte {
	if a.PacketType == TypePubrel {
		return PubrelFlags
	}
	return 0
}

// Validate reports an unusable packet type or identifier.
func (a *Ack) Validate() error {
	if !isAckType(a.PacketType) {
		return errors.Wrapf(ErrUnsupportedPacketType, "%s is not an acknowledgement", a.PacketType)
	}
	if a.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if a.Version == Version5 {
		return a.Properties.Validate()
	}
	return nil
}

// extended reports whether the MQTT 5.0 reason code and properties are
// written. They are omitted for a plain success.
func (a *Ack) extended() bool {
	return a.Version == Version5 && (a.ReasonCode != ReasonSuccess || len(a.Properties) > 0)
}

// BodySize returns the size of the variable header.
func (a *Ack) BodySize() int {
	size := 2
	if a.extended() {
		size += 1 + a.Properties.EncodedSize()
	}
	return size
}

// AppendBody appends the variable header.
func (a *Ack) AppendBody(dst []byte) []byte {
	dst = AppendUint16(dst, a.PacketID)
	if a.extended() {
		dst = append(dst, byte(a.ReasonCode))
		dst = a.Properties.Append(dst)
	}
	return dst
}

// String returns a brief representation suitable for logging.
func (a *Ack) String() string {
	if a.Version == Version5 {
		return fmt.Sprintf("%s (m%d, '%s')", a.PacketType, a.PacketID, a.ReasonCode)
	}
	return fmt.Sprintf("%s (m%d)", a.PacketType, a.PacketID)
}

// DecodeAck decodes the body of a PUBACK, PUBREC, PUBREL or PUBCOMP packet.
func DecodeAck(t Type, body []byte, version Version) (*Ack, error) {
	if !isAckType(t) {
		return nil, errors.Wrapf(ErrUnsupportedPacketType, "%s is not an acknowledgement", t)
	}
	d := newDecoder(body)
	a := &Ack{PacketType: t, Version: version}

	var err error
	if a.PacketID, err = d.readPacketID(); err != nil {
		return nil, err
	}

	// MQTT 5.0: the reason code may be omitted when it is Success, and the
	// properties may be omitted when the remaining length is 3.
	if version == Version5 && d.remaining() > 0 {
		code, err := d.readByte("reason code")
		if err != nil {
			return nil, err
		}
		a.ReasonCode = ReasonCode(code)
		if d.remaining() > 0 {
			if a.Properties, err = d.readProperties("properties"); err != nil {
				return nil, err
			}
		}
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return a, nil
}
