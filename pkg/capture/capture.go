// Package capture records MQTT traffic as a stream of msgpack frames so it
// can be decoded again later, possibly by a newer codec.
package capture

import (
	"io"
	"sync"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Direction tells whether a frame was sent or received.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// Frame is one captured packet in its raw wire form.
type Frame struct {
	Time      time.Time      `msgpack:"t"`
	Direction Direction      `msgpack:"d"`
	Version   packet.Version `msgpack:"v"`
	Raw       []byte         `msgpack:"r"`
}

// Decode decodes the raw bytes at the protocol level recorded with the frame.
func (f Frame) Decode() (packet.Packet, error) {
	p, n, err := packet.Decode(f.Raw, f.Version)
	if err != nil {
		return nil, err
	}
	if n != len(f.Raw) {
		return nil, errors.Wrapf(packet.ErrExtraTrailingBytes, "frame holds %d bytes, packet %d", len(f.Raw), n)
	}
	return p, nil
}

// Writer appends frames to an io.Writer. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *msgpack.Encoder
	now func() time.Time
}

// NewWriter creates a frame writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: msgpack.NewEncoder(w), now: time.Now}
}

// Record writes a frame for raw. raw is not retained.
func (w *Writer) Record(dir Direction, version packet.Version, raw []byte) error {
	return w.Write(Frame{Time: w.now(), Direction: dir, Version: version, Raw: raw})
}

// Write writes f as a single msgpack value.
func (w *Writer) Write(f Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Wrap(w.enc.Encode(&f), "capture: write frame")
}

// Reader reads frames written by a Writer.
type Reader struct {
	dec *msgpack.Decoder
}

// NewReader creates a frame reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(r)}
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (Frame, error) {
	var f Frame
	if err := r.dec.Decode(&f); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.Wrap(err, "capture: read frame")
	}
	return f, nil
}

// ReadAll reads every remaining frame.
func (r *Reader) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
