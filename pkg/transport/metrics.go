package transport

import (
	"errors"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts packet traffic on connections. A nil *Metrics records nothing.
type Metrics struct {
	packets      *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		packets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttwire",
			Name:      "packets_total",
			Help:      "MQTT packets read or written, by direction and packet type.",
		}, []string{"direction", "type"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttwire",
			Name:      "bytes_total",
			Help:      "MQTT bytes read or written, fixed headers included.",
		}, []string{"direction"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mqttwire",
			Name:      "decode_errors_total",
			Help:      "Inbound packets that failed to decode, by failure kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) packet(dir capture.Direction, t packet.Type, n int) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(string(dir), t.String()).Inc()
	m.bytes.WithLabelValues(string(dir)).Add(float64(n))
}

func (m *Metrics) decodeError(err error) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind classifies a codec error for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, packet.ErrUnknownPacketType):
		return "unknown_type"
	case errors.Is(err, packet.ErrUnsupportedPacketType):
		return "unsupported_type"
	case errors.Is(err, packet.ErrInvalidFlags):
		return "invalid_flags"
	case errors.Is(err, packet.ErrPacketTooLarge):
		return "too_large"
	case packet.IsIncomplete(err):
		return "incomplete"
	case errors.Is(err, packet.ErrMalformedPacket), errors.Is(err, packet.ErrMalformedVarInt):
		return "malformed"
	default:
		return "other"
	}
}

// isCodecError reports whether err came from the packet codec rather than
// the underlying connection.
func isCodecError(err error) bool {
	return ErrorKind(err) != "other"
}
