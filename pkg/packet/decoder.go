package packet

import "github.com/pkg/errors"

// decoder is a cursor over a packet body bounded by the remaining length.
// Every error it produces is permanent: a field that runs past the end of
// the body is ErrTruncatedPacket, never ErrTruncatedInput.
type decoder struct {
	buf []byte
	pos int
}

func newDecoder(body []byte) *decoder {
	return &decoder{buf: body}
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.pos
}

func (d *decoder) fail(field string, err error) error {
	if errors.Is(err, ErrTruncatedInput) {
		err = ErrTruncatedPacket
	}
	return &malformedError{err: errors.Wrap(err, field)}
}

// invalid reports a field that decoded cleanly but holds a forbidden value.
func (d *decoder) invalid(field string, err error) error {
	return &malformedError{err: errors.Wrap(err, field)}
}

func (d *decoder) readByte(field string) (byte, error) {
	v, n, err := DecodeUint8(d.buf[d.pos:])
	if err != nil {
		return 0, d.fail(field, err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readUint16(field string) (uint16, error) {
	v, n, err := DecodeUint16(d.buf[d.pos:])
	if err != nil {
		return 0, d.fail(field, err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readString(field string) (String, error) {
	v, n, err := DecodeString(d.buf[d.pos:])
	if err != nil {
		return String{}, d.fail(field, err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readBinary(field string) (Binary, error) {
	v, n, err := DecodeBinary(d.buf[d.pos:])
	if err != nil {
		return Binary{}, d.fail(field, err)
	}
	d.pos += n
	return v, nil
}

func (d *decoder) readProperties(field string) (Properties, error) {
	v, n, err := DecodeProperties(d.buf[d.pos:])
	if err != nil {
		return nil, d.fail(field, err)
	}
	d.pos += n
	return v, nil
}

// readPacketID reads a packet identifier, which must not be zero.
func (d *decoder) readPacketID() (uint16, error) {
	id, err := d.readUint16("packet identifier")
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, d.invalid("packet identifier", ErrInvalidPacketID)
	}
	return id, nil
}

// rest returns a copy of everything not yet consumed.
func (d *decoder) rest() []byte {
	b := clone(d.buf[d.pos:])
	d.pos = len(d.buf)
	return b
}

// finish fails when bytes remain after the last field.
func (d *decoder) finish() error {
	if n := d.remaining(); n > 0 {
		return &malformedError{err: errors.Wrapf(ErrExtraTrailingBytes, "%d bytes", n)}
	}
	return nil
}
