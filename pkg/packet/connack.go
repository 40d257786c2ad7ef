package packet

import (
	"fmt"

	"github.com/pkg/errors"
)

// Connack represents an MQTT CONNACK packet.
// MQTT 3.1.1 Section 3.2, MQTT 5.0 Section 3.2
type Connack struct {
	SessionPresent bool

	// Return code (v3.1.1, see ConnackReturnCode) or reason code (v5.0, see ReasonCode)
	ReturnCode byte

	// Properties (MQTT 5.0 only)
	Properties Properties

	// Version selects the body layout.
	Version Version
}

// NewConnack creates a CONNACK for the given protocol level.
func NewConnack(version Version, sessionPresent bool, code byte) *Connack {
	return &Connack{
		Version:        version,
		SessionPresent: sessionPresent,
		ReturnCode:     code,
	}
}

// Type returns TypeConnack.
func (c *Connack) Type() Type {
	return TypeConnack
}

// Flags returns the fixed header flags, always zero for CONNACK.
func (c *Connack) Flags() byte {
	return 0
}

// Accepted reports whether the server accepted the connection.
func (c *Connack) Accepted() bool {
	return c.ReturnCode == 0
}

// Validate checks the MQTT 5.0 properties.
func (c *Connack) Validate() error {
	if c.Version == Version5 {
		return c.Properties.Validate()
	}
	return nil
}

// BodySize returns the size of the variable header.
func (c *Connack) BodySize() int {
	// Acknowledge flags (1) + return code (1)
	size := 2
	if c.Version == Version5 {
		size += c.Properties.EncodedSize()
	}
	return size
}

// AppendBody appends the variable header.
func (c *Connack) AppendBody(dst []byte) []byte {
	var ackFlags byte
	if c.SessionPresent {
		ackFlags = 0x01
	}
	dst = append(dst, ackFlags, c.ReturnCode)
	if c.Version == Version5 {
		dst = c.Properties.Append(dst)
	}
	return dst
}

// String returns a brief representation suitable for logging.
func (c *Connack) String() string {
	sp := 0
	if c.SessionPresent {
		sp = 1
	}
	var reason string
	if c.Version == Version5 {
		reason = ReasonCode(c.ReturnCode).String()
	} else {
		reason = ConnackReturnCode(c.ReturnCode).String()
	}
	return fmt.Sprintf("CONNACK (s%d, rc%d '%s')", sp, c.ReturnCode, reason)
}

// DecodeConnack decodes a CONNACK packet body.
// version should be the protocol version from the connection.
func DecodeConnack(body []byte, version Version) (*Connack, error) {
	d := newDecoder(body)
	c := &Connack{Version: version}

	ackFlags, err := d.readByte("acknowledge flags")
	if err != nil {
		return nil, err
	}
	// Bits 7-1 must be 0
	if ackFlags&0xFE != 0 {
		return nil, d.invalid("acknowledge flags", errors.Wrapf(ErrMalformedPacket, "reserved bits %08b", ackFlags))
	}
	c.SessionPresent = ackFlags&0x01 != 0

	if c.ReturnCode, err = d.readByte("return code"); err != nil {
		return nil, err
	}

	if version == Version5 {
		if c.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}
