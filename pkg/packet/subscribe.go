package packet

import (
	"fmt"
	"strings"

	"github.com/bromq-dev/mqttwire/pkg/topic"
	"github.com/pkg/errors"
)

// Subscription represents a single topic subscription.
type Subscription struct {
	TopicFilter String
	QoS         QoS

	// MQTT 5.0 subscription options
	NoLocal           bool // Don't receive own publications
	RetainAsPublished bool // Keep original retain flag
	RetainHandling    byte // 0=send retained, 1=send if new sub, 2=don't send
}

// options returns the subscription options byte.
func (s Subscription) options(version Version) byte {
	options := byte(s.QoS) & 0x03
	if version == Version5 {
		if s.NoLocal {
			options |= 0x04
		}
		if s.RetainAsPublished {
			options |= 0x08
		}
		options |= (s.RetainHandling & 0x03) << 4
	}
	return options
}

// Subscribe represents an MQTT SUBSCRIBE packet.
// MQTT 3.1.1 Section 3.8, MQTT 5.0 Section 3.8
type Subscribe struct {
	PacketID      uint16
	Subscriptions []Subscription
	Properties    Properties // MQTT 5.0 only
	Version       Version
}

// NewSubscribe creates a SUBSCRIBE packet.
func NewSubscribe(version Version, packetID uint16, subs ...Subscription) *Subscribe {
	return &Subscribe{Version: version, PacketID: packetID, Subscriptions: subs}
}

// Type returns TypeSubscribe.
func (s *Subscribe) Type() Type {
	return TypeSubscribe
}

// Flags returns the reserved flags 0010.
func (s *Subscribe) Flags() byte {
	return SubscribeFlags
}

// Validate reports subscriptions that cannot be encoded.
func (s *Subscribe) Validate() error {
	if s.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(s.Subscriptions) == 0 {
		return errors.Wrap(ErrMalformedPacket, "no subscriptions")
	}
	for _, sub := range s.Subscriptions {
		if !sub.QoS.Valid() {
			return errors.Wrapf(ErrInvalidQoS, "%q", sub.TopicFilter)
		}
		if sub.RetainHandling > 2 {
			return errors.Wrapf(ErrMalformedPacket, "%q: retain handling %d", sub.TopicFilter, sub.RetainHandling)
		}
		if err := topic.ValidateFilter(sub.TopicFilter.String()); err != nil {
			return errors.Wrapf(ErrInvalidTopicFilter, "%q: %v", sub.TopicFilter, err)
		}
	}
	if s.Version == Version5 {
		return s.Properties.Validate()
	}
	return nil
}

// BodySize returns the size of the variable header plus payload.
func (s *Subscribe) BodySize() int {
	size := 2 // Packet ID
	if s.Version == Version5 {
		size += s.Properties.EncodedSize()
	}
	for _, sub := range s.Subscriptions {
		size += sub.TopicFilter.encodedSize() + 1 // options byte
	}
	return size
}

// AppendBody appends the variable header and payload.
func (s *Subscribe) AppendBody(dst []byte) []byte {
	dst = AppendUint16(dst, s.PacketID)
	if s.Version == Version5 {
		dst = s.Properties.Append(dst)
	}
	for _, sub := range s.Subscriptions {
		dst = AppendString(dst, sub.TopicFilter)
		dst = append(dst, sub.options(s.Version))
	}
	return dst
}

// String returns a brief representation suitable for logging.
func (s *Subscribe) String() string {
	filters := make([]string, len(s.Subscriptions))
	for i, sub := range s.Subscriptions {
		filters[i] = fmt.Sprintf("'%s' q%d", sub.TopicFilter, sub.QoS)
	}
	return fmt.Sprintf("SUBSCRIBE (m%d, [%s])", s.PacketID, strings.Join(filters, ", "))
}

// DecodeSubscribe decodes a SUBSCRIBE packet body.
func DecodeSubscribe(body []byte, version Version) (*Subscribe, error) {
	d := newDecoder(body)
	s := &Subscribe{Version: version}

	var err error
	if s.PacketID, err = d.readPacketID(); err != nil {
		return nil, err
	}

	if version == Version5 {
		if s.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
	}

	// Payload: subscriptions
	for d.remaining() > 0 {
		filter, err := d.readString("topic filter")
		if err != nil {
			return nil, err
		}
		if err := topic.ValidateFilter(filter.String()); err != nil {
			return nil, d.invalid("topic filter", errors.Wrapf(ErrInvalidTopicFilter, "%q: %v", filter, err))
		}

		options, err := d.readByte("subscription options")
		if err != nil {
			return nil, err
		}

		sub := Subscription{
			TopicFilter: filter,
			QoS:         QoS(options & 0x03),
		}
		if !sub.QoS.Valid() {
			return nil, d.invalid("subscription options", errors.Wrapf(ErrInvalidQoS, "%q", filter))
		}

		if version == Version5 {
			sub.NoLocal = options&0x04 != 0
			sub.RetainAsPublished = options&0x08 != 0
			sub.RetainHandling = (options >> 4) & 0x03

			// Reserved bits must be 0
			if options&0xC0 != 0 || sub.RetainHandling > 2 {
				return nil, d.invalid("subscription options", errors.Wrapf(ErrMalformedPacket, "options %08b", options))
			}
		} else if options&0xFC != 0 {
			// For v3.1.1, bits 7-2 must be 0
			return nil, d.invalid("subscription options", errors.Wrapf(ErrMalformedPacket, "options %08b", options))
		}

		s.Subscriptions = append(s.Subscriptions, sub)
	}

	// Must have at least one subscription
	if len(s.Subscriptions) == 0 {
		return nil, d.invalid("payload", errors.Wrap(ErrMalformedPacket, "no subscriptions"))
	}

	return s, nil
}

// Suback represents an MQTT SUBACK packet.
// MQTT 3.1.1 Section 3.9, MQTT 5.0 Section 3.9
type Suback struct {
	PacketID    uint16
	ReasonCodes []byte     // Return codes (v3.1.1) or Reason codes (v5.0)
	Properties  Properties // MQTT 5.0 only
	Version     Version
}

// NewSuback creates a new SUBACK packet.
func NewSuback(version Version, packetID uint16, codes []byte) *Suback {
	return &Suback{
		Version:     version,
		PacketID:    packetID,
		ReasonCodes: codes,
	}
}

// Type returns TypeSuback.
func (s *Suback) Type() Type {
	return TypeSuback
}

// Flags returns the fixed header flags, always zero for SUBACK.
func (s *Suback) Flags() byte {
	return 0
}

// Validate checks the packet identifier, the reason codes and the MQTT 5.0
// properties.
func (s *Suback) Validate() error {
	if s.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if len(s.ReasonCodes) == 0 {
		return errors.Wrap(ErrMalformedPacket, "no reason codes")
	}
	if s.Version == Version5 {
		return s.Properties.Validate()
	}
	return nil
}

// BodySize returns the size of the variable header plus payload.
func (s *Suback) BodySize() int {
	size := 2
	if s.Version == Version5 {
		size += s.Properties.EncodedSize()
	}
	return size + len(s.ReasonCodes)
}

// AppendBody appends the variable header and payload.
func (s *Suback) AppendBody(dst []byte) []byte {
	dst = AppendUint16(dst, s.PacketID)
	if s.Version == Version5 {
		dst = s.Properties.Append(dst)
	}
	return append(dst, s.ReasonCodes...)
}

// String returns a brief representation suitable for logging.
func (s *Suback) String() string {
	return fmt.Sprintf("SUBACK (m%d, %v)", s.PacketID, s.ReasonCodes)
}

// DecodeSuback decodes a SUBACK packet body.
func DecodeSuback(body []byte, version Version) (*Suback, error) {
	d := newDecoder(body)
	s := &Suback{Version: version}

	var err error
	if s.PacketID, err = d.readPacketID(); err != nil {
		return nil, err
	}

	if version == Version5 {
		if s.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
	}

	// Remaining bytes are reason codes, at least one
	if d.remaining() == 0 {
		return nil, d.fail("reason codes", ErrTruncatedInput)
	}
	s.ReasonCodes = d.rest()

	return s, nil
}
