package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pipe(t *testing.T, opts Options) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	opts.Logger = testLogger()
	return NewConn(client, opts), server
}

func TestConnExchangeWithResponder(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var frames bytes.Buffer

	c, server := pipe(t, Options{Metrics: metrics, Capture: capture.NewWriter(&frames)})

	r := &Responder{Options: Options{Logger: testLogger()}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.HandleConnection(server)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.WritePacket(ctx, packet.NewConnect(packet.MustString("pipe"), 30)))
	p, err := c.ReadPacket(ctx)
	require.NoError(t, err)
	assert.True(t, p.(*packet.Connack).Accepted())

	require.NoError(t, c.WritePacket(ctx, &packet.Pingreq{}))
	p, err = c.ReadPacket(ctx)
	require.NoError(t, err)
	assert.IsType(t, &packet.Pingresp{}, p)

	require.NoError(t, c.WritePacket(ctx, packet.NewDisconnect(packet.Version311)))
	<-done

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packets.WithLabelValues("out", "CONNECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packets.WithLabelValues("in", "CONNACK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packets.WithLabelValues("in", "PINGRESP")))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.bytes.WithLabelValues("in")))

	got, err := capture.NewReader(&frames).ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, capture.Outbound, got[0].Direction)
	assert.Equal(t, capture.Inbound, got[1].Direction)
	p, err = got[4].Decode()
	require.NoError(t, err)
	assert.IsType(t, &packet.Disconnect{}, p)
}

func TestConnDecodeErrorCounted(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	c, server := pipe(t, Options{Metrics: metrics})

	go server.Write([]byte{0x00, 0x00})

	_, err := c.ReadPacket(context.Background())
	assert.ErrorIs(t, err, packet.ErrUnknownPacketType)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decodeErrors.WithLabelValues("unknown_type")))
}

func TestConnReadHonoursContext(t *testing.T) {
	c, _ := pipe(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ReadPacket(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = c.ReadPacket(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnWriteRejectsInvalid(t *testing.T) {
	c, _ := pipe(t, Options{})
	err := c.WritePacket(context.Background(), &packet.Publish{TopicName: packet.MustString("a/+"), QoS: packet.QoS0})
	assert.ErrorIs(t, err, packet.ErrInvalidTopicName)
}

func TestConnFollowsOutboundConnectVersion(t *testing.T) {
	c, server := pipe(t, Options{})
	go io.Copy(io.Discard, server)

	connect := packet.NewConnect(packet.MustString("v5"), 0)
	connect.ProtocolVersion = packet.Version5
	require.NoError(t, c.WritePacket(context.Background(), connect))
	assert.Equal(t, packet.Version5, c.Version())
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.packet(capture.Inbound, packet.TypePublish, 10)
		m.decodeError(packet.ErrMalformedPacket)
	})
}

func TestErrorKind(t *testing.T) {
	_, _, truncated := packet.Decode([]byte{0x30, 0x05, 0x00}, packet.Version311)
	_, _, malformed := packet.Decode([]byte{0x30, 0x01, 0x00}, packet.Version311)
	_, _, flags := packet.Decode([]byte{0x81, 0x00}, packet.Version311)
	_, _, auth := packet.Decode([]byte{0xF0, 0x00}, packet.Version311)

	tests := []struct {
		err  error
		want string
	}{
		{truncated, "incomplete"},
		{malformed, "malformed"},
		{flags, "invalid_flags"},
		{auth, "unsupported_type"},
		{packet.ErrUnknownPacketType, "unknown_type"},
		{packet.ErrPacketTooLarge, "too_large"},
		{io.ErrUnexpectedEOF, "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), "%v", tt.err)
	}
}
