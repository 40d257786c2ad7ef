package packet

import "fmt"

// Auth represents an MQTT AUTH packet (MQTT 5.0 only).
// MQTT 5.0 Section 3.15
type Auth struct {
	ReasonCode ReasonCode // Default: Success (0x00)
	Properties Properties
}

// Type returns TypeAuth.
func (a *Auth) Type() Type {
	return TypeAuth
}

// Flags returns the fixed header flags, always zero for AUTH.
func (a *Auth) Flags() byte {
	return 0
}

// Method returns the authentication method property, if present.
func (a *Auth) Method() (string, bool) {
	return a.Properties.Text(PropAuthMethod)
}

// Validate checks the properties.
func (a *Auth) Validate() error {
	return a.Properties.Validate()
}

// BodySize returns the size of the variable header. It is empty for a
// successful AUTH without properties.
func (a *Auth) BodySize() int {
	if a.ReasonCode == ReasonSuccess && len(a.Properties) == 0 {
		return 0
	}
	return 1 + a.Properties.EncodedSize()
}

// AppendBody appends the variable header.
func (a *Auth) AppendBody(dst []byte) []byte {
	if a.BodySize() == 0 {
		return dst
	}
	dst = append(dst, byte(a.ReasonCode))
	return a.Properties.Append(dst)
}

// String returns a brief representation suitable for logging.
func (a *Auth) String() string {
	method, _ := a.Method()
	return fmt.Sprintf("AUTH ('%s', '%s')", a.ReasonCode, method)
}

// DecodeAuth decodes an AUTH packet body.
func DecodeAuth(body []byte) (*Auth, error) {
	d := newDecoder(body)
	a := &Auth{}

	if d.remaining() > 0 {
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
