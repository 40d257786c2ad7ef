package packet

import (
	"fmt"
	"strings"

	"github.com/bromq-dev/mqttwire/pkg/topic"
	"github.com/pkg/errors"
)

// Unsubscribe represents an MQTT UNSUBSCRIBE packet.
// MQTT 3.1.1 Section 3.10, MQTT 5.0 Section 3.10
type Unsubscribe struct {
	PacketID     uint16
	TopicFilters []String
	Properties   Properties // MQTT 5.0 only
	Version      Version
}

// NewUnsubscribe creates an UNSUBSCRIBE packet.
func NewUnsubscribe(version Version, packetID uint16, filters ...String) *Unsubscribe {
	return &Unsubscribe{Version: version, PacketID: packetID, TopicFilters: filters}
}

// Type returns TypeUnsubscribe.
func (u *Unsubscribe) Type() Type {
	return TypeUnsubscribe
}

// Flags returns the reserved flags 0010.
func (u *Unsubscribe) Flags() byte {
	return UnsubscribeFlags
}

// Validate reports filters that cannot be encoded.
func (u *Unsubscribe) Validate() error {
	if u.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(u.TopicFilters) == 0 {
		return errors.Wrap(ErrMalformedPacket, "no topic filters")
	}
	for _, f := range u.TopicFilters {
		if err := topic.ValidateFilter(f.String()); err != nil {
			return errors.Wrapf(ErrInvalidTopicFilter, "%q: %v", f, err)
		}
	}
	if u.Version == Version5 {
		return u.Properties.Validate()
	}
	return nil
}

// BodySize returns the size of the variable header plus payload.
func (u *Unsubscribe) BodySize() int {
	size := 2
	if u.Version == Version5 {
		size += u.Properties.EncodedSize()
	}
	for _, f := range u.TopicFilters {
		size += f.encodedSize()
	}
	return size
}

// AppendBody appends the variable header and payload.
func (u *Unsubscribe) AppendBody(dst []byte) []byte {
	dst = AppendUint16(dst, u.PacketID)
	if u.Version == Version5 {
		dst = u.Properties.Append(dst)
	}
	for _, f := range u.TopicFilters {
		dst = AppendString(dst, f)
	}
	return dst
}

// String returns a brief representation suitable for logging.
func (u *Unsubscribe) String() string {
	filters := make([]string, len(u.TopicFilters))
	for i, f := range u.TopicFilters {
		filters[i] = "'" + f.String() + "'"
	}
	return fmt.Sprintf("UNSUBSCRIBE (m%d, [%s])", u.PacketID, strings.Join(filters, ", "))
}

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet body.
func DecodeUnsubscribe(body []byte, version Version) (*Unsubscribe, error) {
	d := newDecoder(body)
	u := &Unsubscribe{Version: version}

	var err error
	if u.PacketID, err = d.readPacketID(); err != nil {
		return nil, err
	}

	if version == Version5 {
		if u.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
	}

	for d.remaining() > 0 {
		filter, err := d.readString("topic filter")
		if err != nil {
			return nil, err
		}
		if err := topic.ValidateFilter(filter.String()); err != nil {
			return nil, d.invalid("topic filter", errors.Wrapf(ErrInvalidTopicFilter, "%q: %v", filter, err))
		}
		u.TopicFilters = append(u.TopicFilters, filter)
	}

	if len(u.TopicFilters) == 0 {
		return nil, d.invalid("payload", errors.Wrap(ErrMalformedPacket, "no topic filters"))
	}

	return u, nil
}

// Unsuback represents an MQTT UNSUBACK packet.
// MQTT 3.1.1 Section 3.11, MQTT 5.0 Section 3.11
type Unsuback struct {
	PacketID    uint16
	ReasonCodes []ReasonCode // MQTT 5.0 only
	Properties  Properties   // MQTT 5.0 only
	Version     Version
}

// NewUnsuback creates an UNSUBACK packet.
func NewUnsuback(version Version, packetID uint16, codes ...ReasonCode) *Unsuback {
	return &Unsuback{Version: version, PacketID: packetID, ReasonCodes: codes}
}

// Type returns TypeUnsuback.
func (u *Unsuback) Type() Type {
	return TypeUnsuback
}

// Flags returns the fixed header flags, always zero for UNSUBACK.
func (u *Unsuback) Flags() byte {
	return 0
}

// Validate checks the packet identifier and the MQTT 5.0 properties.
func (u *Unsuback) Validate() error {
	if u.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if u.Version == Version5 {
		return u.Properties.Validate()
	}
	return nil
}

// BodySize returns the size of the variable header plus payload.
func (u *Unsuback) BodySize() int {
	if u.Version != Version5 {
		return 2
	}
	return 2 + u.Properties.EncodedSize() + len(u.ReasonCodes)
}

// AppendBody appends the variable header and payload.
func (u *Unsuback) AppendBody(dst []byte) []byte {
	dst = AppendUint16(dst, u.PacketID)
	if u.Version != Version5 {
		return dst
	}
	dst = u.Properties.Append(dst)
	for _, rc := range u.ReasonCodes {
		dst = append(dst, byte(rc))
	}
	return dst
}

// String returns a brief representation suitable for logging.
func (u *Unsuback) String() string {
	return fmt.Sprintf("UNSUBACK (m%d)", u.PacketID)
}

// DecodeUnsuback decodes an UNSUBACK packet body.
func DecodeUnsuback(body []byte, version Version) (*Unsuback, error) {
	d := newDecoder(body)
	u := &Unsuback{Version: version}

	var err error
	if u.PacketID, err = d.readPacketID(); err != nil {
		return nil, err
	}

	if version == Version5 {
		if u.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
		for d.remaining() > 0 {
			rc, err := d.readByte("reason code")
			if err != nil {
				return nil, err
			}
			u.ReasonCodes = append(u.ReasonCodes, ReasonCode(rc))
		}
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return u, nil
}
