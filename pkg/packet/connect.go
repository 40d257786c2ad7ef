package packet

import (
	"fmt"

	"github.com/bromq-dev/mqttwire/pkg/topic"
	"github.com/pkg/errors"
)

// Connect represents an MQTT CONNECT packet.
// MQTT 3.1.1 Section 3.1, MQTT 5.0 Section 3.1
type Connect struct {
	// Protocol identification. An empty ProtocolName is written as the
	// name that belongs to ProtocolVersion.
	ProtocolName    String
	ProtocolVersion Version

	// Clean Session (v3.1.1) or Clean Start (v5.0)
	CleanSession bool

	// Keep alive (seconds)
	KeepAlive uint16

	// Properties (MQTT 5.0 only)
	Properties Properties

	// Payload fields. Will is present exactly when the will flag is set;
	// Username and Password are written only when their flag is set.
	ClientID     String
	Will         *Will
	UsernameFlag bool
	Username     String
	PasswordFlag bool
	Password     Binary
}

// connectFlagBits defines the bit positions in the connect flags byte.
const (
	connectFlagReserved   = 1 << 0
	connectFlagCleanStart = 1 << 1
	connectFlagWill       = 1 << 2
	connectFlagWillQoS    = 3 << 3
	connectFlagWillRetain = 1 << 5
	connectFlagPassword   = 1 << 6
	connectFlagUsername   = 1 << 7
)

// NewConnect creates a CONNECT packet for MQTT 3.1.1 with the given client
// identifier and keep alive.
func NewConnect(clientID String, keepAlive uint16) *Connect {
	return NewConnectVersion(Version311, clientID, keepAlive)
}

// NewConnectVersion creates a CONNECT packet at the given protocol level,
// carrying the protocol name that belongs to it.
func NewConnectVersion(version Version, clientID String, keepAlive uint16) *Connect {
	return &Connect{
		ProtocolName:    String{s: version.protocolName()},
		ProtocolVersion: version,
		ClientID:        clientID,
		KeepAlive:       keepAlive,
	}
}

// SetCredentials sets the user name and password and their flags.
func (c *Connect) SetCredentials(username String, password Binary) {
	c.UsernameFlag = true
	c.Username = username
	c.PasswordFlag = true
	c.Password = password
}

// Type returns TypeConnect.
func (c *Connect) Type() Type {
	return TypeConnect
}

// Flags returns the fixed header flags, always zero for CONNECT.
func (c *Connect) Flags() byte {
	return 0
}

// ConnectFlags returns the connect flags byte derived from the packet fields.
func (c *Connect) ConnectFlags() byte {
	var flags byte
	if c.CleanSession {
		flags |= connectFlagCleanStart
	}
	if c.Will != nil {
		flags |= connectFlagWill
		flags |= byte(c.Will.QoS) << 3 & connectFlagWillQoS
		if c.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}
	if c.PasswordFlag {
		flags |= connectFlagPassword
	}
	if c.UsernameFlag {
		flags |= connectFlagUsername
	}
	return flags
}

func (c *Connect) protocolName() String {
	if c.ProtocolName.IsEmpty() {
		return String{s: c.ProtocolVersion.protocolName()}
	}
	return c.ProtocolName
}

// Validate reports values that cannot be put on the wire.
func (c *Connect) Validate() error {
	if !c.ProtocolVersion.Valid() {
		return errors.Wrapf(ErrInvalidProtocolVersion, "level %d", byte(c.ProtocolVersion))
	}
	switch name := c.protocolName().String(); name {
	case "MQTT", "MQIsdp":
		if name != c.ProtocolVersion.protocolName() {
			return errors.Wrapf(ErrInvalidProtocolVersion, "%q at level %d", name, byte(c.ProtocolVersion))
		}
	default:
		return errors.Wrapf(ErrInvalidProtocolName, "%q", name)
	}
	if c.Will != nil {
		if !c.Will.QoS.Valid() {
			return errors.Wrap(ErrInvalidQoS, "will")
		}
		if err := topic.ValidateName(c.Will.Topic.String()); err != nil {
			return errors.Wrap(ErrInvalidTopicName, err.Error())
		}
	}
	if c.ProtocolVersion != Version5 && c.PasswordFlag && !c.UsernameFlag {
		return errors.Wrap(ErrMalformedPacket, "password without user name")
	}
	if c.ProtocolVersion == Version5 {
		if err := c.Properties.Validate(); err != nil {
			return err
		}
		if c.Will != nil {
			if err := c.Will.Properties.Validate(); err != nil {
				return errors.Wrap(err, "will")
			}
		}
	}
	return nil
}

// BodySize returns the size of the variable header and payload.
func (c *Connect) BodySize() int {
	// Variable header: protocol name (2 + len) + version (1) + flags (1) + keepalive (2)
	size := c.protocolName().encodedSize() + 1 + 1 + 2

	if c.ProtocolVersion == Version5 {
		size += c.Properties.EncodedSize()
	}

	// Client ID always present
	size += c.ClientID.encodedSize()

	if c.Will != nil {
		if c.ProtocolVersion == Version5 {
			size += c.Will.Properties.EncodedSize()
		}
		size += c.Will.Topic.encodedSize()
		size += c.Will.Payload.encodedSize()
	}
	if c.UsernameFlag {
		size += c.Username.encodedSize()
	}
	if c.PasswordFlag {
		size += c.Password.encodedSize()
	}
	return size
}

// AppendBody appends the variable header and payload.
func (c *Connect) AppendBody(dst []byte) []byte {
	dst = AppendString(dst, c.protocolName())
	dst = append(dst, byte(c.ProtocolVersion), c.ConnectFlags())
	dst = AppendUint16(dst, c.KeepAlive)
	if c.ProtocolVersion == Version5 {
		dst = c.Properties.Append(dst)
	}

	dst = AppendString(dst, c.ClientID)
	if c.Will != nil {
		if c.ProtocolVersion == Version5 {
			dst = c.Will.Properties.Append(dst)
		}
		dst = AppendString(dst, c.Will.Topic)
		dst = AppendBinary(dst, c.Will.Payload)
	}
	if c.UsernameFlag {
		dst = AppendString(dst, c.Username)
	}
	if c.PasswordFlag {
		dst = AppendBinary(dst, c.Password)
	}
	return dst
}

// String returns a brief representation suitable for logging.
func (c *Connect) String() string {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	w := "w0"
	if c.Will != nil {
		w = fmt.Sprintf("w(r%d, q%d, '%s', ... (%d bytes))",
			b2i(c.Will.Retain), c.Will.QoS, c.Will.Topic, c.Will.Payload.Len())
	}
	return fmt.Sprintf("CONNECT (v%s, '%s', c%d, k%d, u%d, p%d, %s)",
		c.ProtocolVersion, c.ClientID, b2i(c.CleanSession), c.KeepAlive,
		b2i(c.UsernameFlag), b2i(c.PasswordFlag), w)
}

// DecodeConnect decodes a CONNECT packet body. The body layout follows the
// protocol level found in the packet itself.
func DecodeConnect(body []byte) (*Connect, error) {
	d := newDecoder(body)
	c := &Connect{}
	var err error

	// Protocol name
	if c.ProtocolName, err = d.readString("protocol name"); err != nil {
		return nil, err
	}

	// Protocol version
	version, err := d.readByte("protocol version")
	if err != nil {
		return nil, err
	}
	c.ProtocolVersion = Version(version)

	switch c.ProtocolName.String() {
	case "MQTT":
		if c.ProtocolVersion != Version311 && c.ProtocolVersion != Version5 {
			return nil, d.invalid("protocol version", errors.Wrapf(ErrInvalidProtocolVersion, "level %d", version))
		}
	case "MQIsdp":
		if c.ProtocolVersion != Version31 {
			return nil, d.invalid("protocol version", errors.Wrapf(ErrInvalidProtocolVersion, "level %d", version))
		}
	default:
		return nil, d.invalid("protocol name", errors.Wrapf(ErrInvalidProtocolName, "%q", c.ProtocolName))
	}

	// Connect flags
	flags, err := d.readByte("connect flags")
	if err != nil {
		return nil, err
	}
	if flags&connectFlagReserved != 0 {
		return nil, d.invalid("connect flags", errors.Wrap(ErrMalformedPacket, "reserved bit set"))
	}
	c.CleanSession = flags&connectFlagCleanStart != 0
	c.UsernameFlag = flags&connectFlagUsername != 0
	c.PasswordFlag = flags&connectFlagPassword != 0
	willFlag := flags&connectFlagWill != 0
	willQoS := QoS(flags & connectFlagWillQoS >> 3)
	willRetain := flags&connectFlagWillRetain != 0

	if !willFlag && (willQoS != QoS0 || willRetain) {
		return nil, d.invalid("connect flags", errors.Wrap(ErrMalformedPacket, "will QoS or retain without will"))
	}
	if !willQoS.Valid() {
		return nil, d.invalid("connect flags", errors.Wrap(ErrInvalidQoS, "will"))
	}
	if c.ProtocolVersion != Version5 && c.PasswordFlag && !c.UsernameFlag {
		return nil, d.invalid("connect flags", errors.Wrap(ErrMalformedPacket, "password without user name"))
	}

	// Keep alive
	if c.KeepAlive, err = d.readUint16("keep alive"); err != nil {
		return nil, err
	}

	if c.ProtocolVersion == Version5 {
		if c.Properties, err = d.readProperties("properties"); err != nil {
			return nil, err
		}
	}

	// Payload starts here

	if c.ClientID, err = d.readString("client identifier"); err != nil {
		return nil, err
	}

	if willFlag {
		w := &Will{QoS: willQoS, Retain: willRetain}
		if c.ProtocolVersion == Version5 {
			if w.Properties, err = d.readProperties("will properties"); err != nil {
				return nil, err
			}
		}
		if w.Topic, err = d.readString("will topic"); err != nil {
			return nil, err
		}
		if err := topic.ValidateName(w.Topic.String()); err != nil {
			return nil, d.invalid("will topic", errors.Wrap(ErrInvalidTopicName, err.Error()))
		}
		if w.Payload, err = d.readBinary("will message"); err != nil {
			return nil, err
		}
		c.Will = w
	}

	if c.UsernameFlag {
		if c.Username, err = d.readString("user name"); err != nil {
			return nil, err
		}
	}

	if c.PasswordFlag {
		if c.Password, err = d.readBinary("password"); err != nil {
			return nil, err
		}
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}
