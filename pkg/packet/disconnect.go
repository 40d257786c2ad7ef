package packet

import "fmt"

// Disconnect represents an MQTT DISCONNECT packet.
// MQTT 3.1.1 Section 3.14, MQTT 5.0 Section 3.14
type Disconnect struct {
	ReasonCode ReasonCode // MQTT 5.0 only (default: Normal Disconnection = 0x00)
	Properties Properties // MQTT 5.0 only
	Version    Version
}

// NewDisconnect creates a normal DISCONNECT for the given protocol level.
func NewDisconnect(version Version) *Disconnect {
	return &Disconnect{Version: version}
}

// Type returns TypeDisconnect.
func (d *Disconnect) Type() Type {
	return TypeDisconnect
}

// Flags returns the fixed header flags, always zero for DISCONNECT.
func (d *Disconnect) Flags() byte {
	return 0
}

// Validate checks the MQTT 5.0 properties.
func (d *Disconnect) Validate() error {
	if d.Version == Version5 {
		return d.Properties.Validate()
	}
	return nil
}

// BodySize returns the size of the variable header. MQTT 3.1.1 has none, and
// MQTT 5.0 omits it for a normal disconnection without properties.
func (d *Disconnect) BodySize() int {
	if d.Version != Version5 || (d.ReasonCode == ReasonSuccess && len(d.Properties) == 0) {
		return 0
	}
	return 1 + d.Properties.EncodedSize()
}

// AppendBody appends the variable header.
func (d *Disconnect) AppendBody(dst []byte) []byte {
	if d.BodySize() == 0 {
		return dst
	}
	dst = append(dst, byte(d.ReasonCode))
	return d.Properties.Append(dst)
}

// String returns a brief representation suitable for logging.
func (d *Disconnect) String() string {
	if d.Version == Version5 {
		return fmt.Sprintf("DISCONNECT ('%s')", d.ReasonCode)
	}
	return "DISCONNECT"
}

// DecodeDisconnect decodes a DISCONNECT packet body.
func DecodeDisconnect(body []byte, version Version) (*Disconnect, error) {
	d := newDecoder(body)
	dc := &Disconnect{Version: version}

	// MQTT 5.0: Empty body means normal disconnection
	if version == Version5 && d.remaining() > 0 {
		code, err := d.readByte("reason code")
		if err != nil {
			return nil, err
		}
		dc.ReasonCode = ReasonCode(code)
		if d.remaining() > 0 {
			if dc.Properties, err = d.readProperties("properties"); err != nil {
				return nil, err
			}
		}
	}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return dc, nil
}
