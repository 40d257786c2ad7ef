// Package transport carries MQTT packets over TCP, TLS and WebSocket
// connections, with optional traffic capture and prometheus counters.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
)

// Options configures a Conn.
type Options struct {
	// TLSConfig is used by Dial for tls://, ssl:// and wss:// addresses.
	TLSConfig *tls.Config

	// Header is sent with the WebSocket handshake.
	Header http.Header

	// Logger receives packet traces at debug level. Default: slog.Default().
	Logger *slog.Logger

	// Metrics counts traffic if set.
	Metrics *Metrics

	// Capture records every frame read or written if set.
	Capture *capture.Writer

	// Version is the protocol level used to decode inbound packets until a
	// CONNECT is read. Default: 3.1.1.
	Version packet.Version

	// MaxPacketSize limits inbound packets, fixed header included.
	MaxPacketSize int

	// BufferSize is the initial read buffer size. Default: 4096.
	BufferSize int
}

// Conn reads and writes MQTT packets on a network connection. One goroutine
// may read while another writes.
type Conn struct {
	conn    net.Conn
	reader  *packet.Reader
	log     *slog.Logger
	metrics *Metrics
	capture *capture.Writer

	wmu sync.Mutex
	buf []byte
}

// NewConn wraps conn.
func NewConn(conn net.Conn, opts Options) *Conn {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 4096
	}
	reader := packet.NewReader(conn, opts.BufferSize)
	if opts.Version != 0 {
		reader.SetVersion(opts.Version)
	}
	if opts.MaxPacketSize > 0 {
		reader.SetMaxPacketSize(opts.MaxPacketSize)
	}
	return &Conn{
		conn:    conn,
		reader:  reader,
		log:     opts.Logger.With("remote", conn.RemoteAddr().String()),
		metrics: opts.Metrics,
		capture: opts.Capture,
	}
}

// Version returns the protocol level used to decode inbound packets.
func (c *Conn) Version() packet.Version {
	return c.reader.Version()
}

// SetVersion sets the protocol level used to decode inbound packets.
func (c *Conn) SetVersion(v packet.Version) {
	c.reader.SetVersion(v)
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadPacket reads the next packet. The read is abandoned when ctx is done;
// the connection should then be closed since a packet may be half read.
func (c *Conn) ReadPacket(ctx context.Context) (packet.Packet, error) {
	stop := watch(ctx, c.conn.SetReadDeadline)
	raw, err := c.reader.ReadRaw()
	stop()
	if err != nil {
		return nil, c.readError(ctx, err)
	}

	version := c.reader.Version()
	if c.capture != nil {
		if err := c.capture.Record(capture.Inbound, version, raw); err != nil {
			c.log.Warn("capture failed", "error", err)
		}
	}

	p, err := c.reader.DecodeRaw(raw)
	if err != nil {
		return nil, c.readError(ctx, err)
	}
	c.metrics.packet(capture.Inbound, p.Type(), len(raw))
	c.log.Debug("packet received", "type", p.Type().String(), "bytes", len(raw), "packet", p)
	return p, nil
}

func (c *Conn) readError(ctx context.Context, err error) error {
	if isCodecError(err) {
		c.metrics.decodeError(err)
		c.log.Warn("decode failed", "kind", ErrorKind(err), "error", err)
		return err
	}
	return contextError(ctx, err)
}

// WritePacket encodes p and writes it in a single write. Invalid packets
// are refused before anything is written. Writing a CONNECT switches
// inbound decoding to its protocol level, so it must not race a read.
func (c *Conn) WritePacket(ctx context.Context, p packet.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	out, err := packet.Append(c.buf[:0], p)
	if err != nil {
		return err
	}
	c.buf = out
	if connect, ok := p.(*packet.Connect); ok {
		c.reader.SetVersion(connect.ProtocolVersion)
	}

	if c.capture != nil {
		if err := c.capture.Record(capture.Outbound, c.reader.Version(), out); err != nil {
			c.log.Warn("capture failed", "error", err)
		}
	}

	stop := watch(ctx, c.conn.SetWriteDeadline)
	_, err = c.conn.Write(out)
	stop()
	if err != nil {
		return contextError(ctx, err)
	}
	c.metrics.packet(capture.Outbound, p.Type(), len(out))
	c.log.Debug("packet sent", "type", p.Type().String(), "bytes", len(out), "packet", p)
	return nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

var aLongTimeAgo = time.Unix(1, 0)

// watch applies ctx's deadline through set and interrupts the pending I/O
// when ctx is cancelled. The returned func must be called once the I/O
// has returned.
func watch(ctx context.Context, set func(time.Time) error) func() {
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() { _ = set(aLongTimeAgo) })
	return func() { stop() }
}

// contextError reports ctx's error in place of the deadline error it caused.
func contextError(ctx context.Context, err error) error {
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		var ne net.Error
		if !errors.As(err, &ne) || !ne.Timeout() {
			return err
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
