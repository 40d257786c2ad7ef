package packet

// Pingreq represents an MQTT PINGREQ packet.
// MQTT 3.1.1 Section 3.12, MQTT 5.0 Section 3.12
type Pingreq struct{}

// Type returns TypePingreq.
func (p *Pingreq) Type() Type { return TypePingreq }

// Flags returns zero.
func (p *Pingreq) Flags() byte { return 0 }

// BodySize returns zero; PINGREQ is a fixed header only.
func (p *Pingreq) BodySize() int { return 0 }

// AppendBody returns dst unchanged.
func (p *Pingreq) AppendBody(dst []byte) []byte { return dst }

func (p *Pingreq) String() string { return "PINGREQ" }

// DecodePingreq decodes a PINGREQ packet body, which must be empty.
func DecodePingreq(body []byte) (*Pingreq, error) {
	if err := newDecoder(body).finish(); err != nil {
		return nil, err
	}
	return &Pingreq{}, nil
}

// Pingresp represents an MQTT PINGRESP packet.
// MQTT 3.1.1 Section 3.13, MQTT 5.0 Section 3.13
type Pingresp struct{}

// Type returns TypePingresp.
func (p *Pingresp) Type() Type { return TypePingresp }

// Flags returns zero.
func (p *Pingresp) Flags() byte { return 0 }

// BodySize returns zero; PINGRESP is a fixed header only.
func (p *Pingresp) BodySize() int { return 0 }

// AppendBody returns dst unchanged.
func (p *Pingresp) AppendBody(dst []byte) []byte { return dst }

func (p *Pingresp) String() string { return "PINGRESP" }

// DecodePingresp decodes a PINGRESP packet body, which must be empty.
func DecodePingresp(body []byte) (*Pingresp, error) {
	if err := newDecoder(body).finish(); err != nil {
		return nil, err
	}
	return &Pingresp{}, nil
}
