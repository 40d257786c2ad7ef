package packet

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Reader reads MQTT packets from an io.Reader.
// It buffers partial input until a whole packet is available.
type Reader struct {
	r       io.Reader
	buf     []byte
	pos     int
	end     int
	version Version // Protocol version for decoding
	maxSize int
}

// NewReader creates a new packet reader.
func NewReader(r io.Reader, bufSize int) *Reader {
	if bufSize < 1024 {
		bufSize = 1024
	}
	return &Reader{
		r:       r,
		buf:     make([]byte, bufSize),
		version: Version311, // Default, updated after CONNECT
		maxSize: MaxPacketSize,
	}
}

// SetVersion sets the protocol version for packet decoding.
func (r *Reader) SetVersion(v Version) {
	r.version = v
}

// Version returns the current protocol version.
func (r *Reader) Version() Version {
	return r.version
}

// SetMaxPacketSize limits the total size of a packet, fixed header
// included. Larger packets fail with ErrPacketTooLarge.
func (r *Reader) SetMaxPacketSize(n int) {
	if n <= 0 || n > MaxPacketSize {
		n = MaxPacketSize
	}
	r.maxSize = n
}

// fill reads more data into the buffer.
func (r *Reader) fill() error {
	// Shift remaining data to the beginning
	if r.pos > 0 {
		copy(r.buf, r.buf[r.pos:r.end])
		r.end -= r.pos
		r.pos = 0
	}

	// Grow buffer if needed
	if r.end == len(r.buf) {
		newBuf := make([]byte, len(r.buf)*2)
		copy(newBuf, r.buf)
		r.buf = newBuf
	}

	n, err := r.r.Read(r.buf[r.end:])
	if n > 0 {
		r.end += n
		return nil
	}
	return err
}

// available returns the number of unread bytes in the buffer.
func (r *Reader) available() int {
	return r.end - r.pos
}

// ReadPacket reads and decodes the next packet. Partial input is buffered
// until the packet is complete. A clean end of stream between packets is
// io.EOF; an end of stream inside a packet is io.ErrUnexpectedEOF.
func (r *Reader) ReadPacket() (Packet, error) {
	raw, err := r.ReadRaw()
	if err != nil {
		return nil, err
	}
	return r.DecodeRaw(raw)
}

// ReadRaw reads the next complete packet without decoding its body and
// returns a copy of its bytes, fixed header included. Oversized packets
// are refused as soon as their fixed header is known.
func (r *Reader) ReadRaw() ([]byte, error) {
	for {
		h, n, err := DecodeFixedHeader(r.buf[r.pos:r.end])
		if err == nil {
			total := n + int(h.RemainingLength)
			if total > r.maxSize {
				return nil, errors.Wrapf(ErrPacketTooLarge, "%s of %d bytes exceeds %d", h.Type, total, r.maxSize)
			}
			if r.available() >= total {
				raw := clone(r.buf[r.pos : r.pos+total])
				r.pos += total
				return raw, nil
			}
		} else if !IsIncomplete(err) {
			return nil, err
		}

		if err := r.fill(); err != nil {
			if err == io.EOF && r.available() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// DecodeRaw decodes a packet returned by ReadRaw at the reader's protocol
// level. A CONNECT switches the reader to the level it carries.
func (r *Reader) DecodeRaw(raw []byte) (Packet, error) {
	p, _, err := Decode(raw, r.version)
	if err != nil {
		return nil, err
	}
	// Update version for subsequent packets
	if c, ok := p.(*Connect); ok {
		r.version = c.ProtocolVersion
	}
	return p, nil
}

// Writer writes MQTT packets to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new packet writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePacket encodes p and writes it with a single Write call.
// It returns the number of bytes written.
func (w *Writer) WritePacket(p Packet) (int, error) {
	buf := GetBuffer()
	out, err := Append(buf[:0], p)
	if err != nil {
		PutBuffer(buf)
		return 0, err
	}
	n, err := w.w.Write(out)
	PutBuffer(out)
	return n, err
}

// ScanPackets is a bufio.SplitFunc that yields one complete raw packet,
// fixed header included, per token. Only the fixed header is decoded; use
// Decode on the token to obtain the packet.
func ScanPackets(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	h, n, err := DecodeFixedHeader(data)
	if err != nil {
		if IsIncomplete(err) && !atEOF {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	total := n + int(h.RemainingLength)
	if len(data) < total {
		if atEOF {
			return 0, nil, errors.Wrapf(ErrTruncatedPacket, "%s declares %d bytes, %d available",
				h.Type, h.RemainingLength, len(data)-n)
		}
		return 0, nil, nil
	}
	return total, data[:total], nil
}

// BufferPool provides a pool of reusable buffers for packet encoding.
var BufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 4096)
		return &buf
	},
}

// GetBuffer returns a buffer from the pool.
func GetBuffer() []byte {
	return *BufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(buf []byte) {
	// Only return buffers of reasonable size
	if cap(buf) <= 65536 {
		buf = buf[:cap(buf)]
		BufferPool.Put(&buf)
	}
}
