package packet

import (
	"fmt"

	"github.com/bromq-dev/mqttwire/pkg/topic"
	"github.com/pkg/errors"
)

// Publish represents an MQTT PUBLISH packet.
// MQTT 3.1.1 Section 3.3, MQTT 5.0 Section 3.3
type Publish struct {
	// Fixed header flags
	Dup    bool
	QoS    QoS
	Retain bool

	// Variable header
	TopicName String
	PacketID  uint16 // only for QoS > 0

	// Properties (MQTT 5.0 only)
	Properties Properties

	// Payload is everything after the variable header, unprefixed.
	Payload []byte

	// Version selects the body layout.
	Version Version
}

// NewPublish creates a new PUBLISH packet.
func NewPublish(version Version, topicName String, payload []byte, qos QoS, retain bool) *Publish {
	return &Publish{
		Version:   version,
		TopicName: topicName,
		Payload:   payload,
		QoS:       qos,
		Retain:    retain,
	}
}

// Type returns TypePublish.
func (p *Publish) Type() Type {
	return TypePublish
}

// Flags returns the fixed header flags for this PUBLISH packet.
func (p *Publish) Flags() byte {
	var flags byte
	if p.Retain {
		flags |= PublishFlagRetain
	}
	flags |= byte(p.QoS) << 1 & PublishFlagQoS
	if p.Dup {
		flags |= PublishFlagDup
	}
	return flags
}

// Validate reports field combinations that cannot be encoded.
func (p *Publish) Validate() error {
	if !p.QoS.Valid() {
		return errors.Wrapf(ErrInvalidQoS, "qos %d", p.QoS)
	}
	if p.QoS == QoS0 && p.Dup {
		return errors.Wrap(ErrMalformedPacket, "dup set at QoS 0")
	}
	if p.QoS > QoS0 && p.PacketID == 0 {
		return ErrInvalidPacketID
	}
	if err := validatePublishTopic(p.TopicName, p.Properties, p.Version); err != nil {
		return err
	}
	if p.Version == Version5 {
		return p.Properties.Validate()
	}
	return nil
}

// validatePublishTopic checks a topic name. MQTT 5.0 allows an empty
// topic when a topic alias stands in for it.
func validatePublishTopic(name String, props Properties, version Version) error {
	if name.IsEmpty() && version == Version5 && props.Has(PropTopicAlias) {
		return nil
	}
	if err := topic.ValidateName(name.String()); err != nil {
		return errors.Wrapf(ErrInvalidTopicName, "%q: %v", name, err)
	}
	return nil
}

// BodySize returns the size of the variable header plus payload.
func (p *Publish) BodySize() int {
	size := p.TopicName.encodedSize()
	if p.QoS > QoS0 {
		size += 2
	}
	if p.Version == Version5 {
		size += p.Properties.EncodedSize()
	}
	return size + len(p.Payload)
}

// AppendBody appends the variable header and payload.
func (p *Publish) AppendBody(dst []byte) []byte {
	dst = AppendString(dst, p.TopicName)
	if p.QoS > QoS0 {
		dst = AppendUint16(dst, p.PacketID)
	}
	if p.Version == Version5 {
		dst = p.Properties.Append(dst)
	}
	return append(dst, p.Payload...)
}

// String returns a brief representation suitable for logging.
func (p *Publish) String() string {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	return fmt.Sprintf("PUBLISH (d%d, q%d, r%d, m%d, '%s', ... (%d bytes))",
		b2i(p.Dup), p.QoS, b2i(p.Retain), p.PacketID, p.TopicName, len(p.Payload))
}

// DecodePublish decodes a PUBLISH packet body.
// flags are the fixed header flags (lower 4 bits of first byte).
func DecodePublish(flags byte, body []byte, version Version) (*Publish, error) {
	d := newDecoder(body)
	p := &Publish{Version: version}

	p.Retain = flags&PublishFlagRetain != 0
	p.QoS = QoS(flags & PublishFlagQoS >> 1)
	p.Dup = flags&PublishFlagDup != 0

	if !p.QoS.Valid() {
		return nil, d.invalid("flags", errors.Wrapf(ErrInvalidQoS, "qos %d", p.QoS))
	}
	// DUP must be 0 for QoS 0
	if p.QoS == QoS0 && p.Dup {
		return nil, d.invalid("flags", errors.Wrap(ErrMalformedPacket, "dup set at QoS 0"))
	}

	var err error
	if p.TopicName, err = d.readString("topic name"); err != nil {
		return nil, err
	}

	if p.QoS > QoS0 {
		if p.PacketID, err = d.readPacketID(); err != nil {
			return nil, err
		}
	}

	if version == Version5 {
		if p.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
	}

	if err := validatePublishTopic(p.TopicName, p.Properties, version); err != nil {
		return nil, d.invalid("topic name", err)
	}

	// Payload (remaining bytes)
	p.Payload = d.rest()

	return p, nil
}
