package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/packet"
)

// Responder is a ConnectionHandler that acknowledges MQTT traffic without
// routing it: CONNECT gets an accepting CONNACK, SUBSCRIBE grants the
// requested QoS, and the publish flows and pings are answered. It is meant
// for exercising clients and captures, not for delivering messages.
type Responder struct {
	Options Options

	// OnPacket, if set, is called for every packet received.
	OnPacket func(c *Conn, p packet.Packet)

	// ConnectTimeout bounds the wait for CONNECT. Default: 10s.
	ConnectTimeout time.Duration

	// PublishLimit limits inbound publishes per connection. A client over
	// the limit is disconnected, with reason Message rate too high at 5.0.
	PublishLimit RateLimit

	now func() time.Time
}

// HandleConnection serves conn until the client disconnects, keepalive
// expires or a packet fails to decode.
func (r *Responder) HandleConnection(conn net.Conn) {
	c := NewConn(conn, r.Options)
	defer c.Close()

	timeout := r.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	p, err := c.ReadPacket(ctx)
	cancel()
	if err != nil {
		c.log.Debug("no connect received", "error", err)
		return
	}
	connect, ok := p.(*packet.Connect)
	if !ok {
		c.log.Warn("first packet is not CONNECT", "type", p.Type().String())
		return
	}
	r.notify(c, p)

	version := connect.ProtocolVersion
	if err := c.WritePacket(context.Background(), packet.NewConnack(version, false, 0)); err != nil {
		c.log.Warn("write failed", "error", err)
		return
	}
	log := c.log.With("client_id", connect.ClientID.String())
	log.Info("client connected",
		"username", connect.Username.String(),
		"protocol", version.String(),
		"clean_start", connect.CleanSession,
		"keepalive", connect.KeepAlive,
	)

	now := r.now
	if now == nil {
		now = time.Now
	}
	limiter := r.PublishLimit.newBucket(now)

	// Keepalive expires after one and a half intervals without traffic.
	idle := time.Duration(connect.KeepAlive) * 1500 * time.Millisecond

	for {
		ctx, cancel := context.Background(), context.CancelFunc(func() {})
		if idle > 0 {
			ctx, cancel = context.WithTimeout(ctx, idle)
		}
		p, err := c.ReadPacket(ctx)
		cancel()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Info("client disconnected")
			} else {
				log.Info("client disconnected", "error", err)
			}
			return
		}
		r.notify(c, p)

		switch p := p.(type) {
		case *packet.Publish:
			if !limiter.take() {
				log.Warn("publish rate exceeded", "topic", p.TopicName.String())
				if version == packet.Version5 {
					d := packet.NewDisconnect(version)
					d.ReasonCode = packet.ReasonMessageRateTooHigh
					_ = c.WritePacket(context.Background(), d)
				}
				return
			}
			log.Debug("message received", "topic", p.TopicName.String(), "qos", int(p.QoS), "bytes", len(p.Payload))
		case *packet.Subscribe:
			for _, sub := range p.Subscriptions {
				log.Info("client subscribed", "topic", sub.TopicFilter.String(), "qos", int(sub.QoS))
			}
		case *packet.Unsubscribe:
			for _, filter := range p.TopicFilters {
				log.Info("client unsubscribed", "topic", filter.String())
			}
		case *packet.Disconnect:
			log.Info("client disconnected", "reason", p.ReasonCode.String())
		}

		reply, done := respond(version, p)
		if done {
			return
		}
		if reply == nil {
			continue
		}
		if err := c.WritePacket(context.Background(), reply); err != nil {
			c.log.Warn("write failed", "error", err)
			return
		}
	}
}

func (r *Responder) notify(c *Conn, p packet.Packet) {
	if r.OnPacket != nil {
		r.OnPacket(c, p)
	}
}

// respond returns the reply to p, if any, and whether the session is over.
func respond(version packet.Version, p packet.Packet) (packet.Packet, bool) {
	switch p := p.(type) {
	case *packet.Publish:
		switch p.QoS {
		case packet.QoS1:
			return packet.NewPuback(version, p.PacketID), false
		case packet.QoS2:
			return packet.NewPubrec(version, p.PacketID), false
		}
	case *packet.Ack:
		switch p.PacketType {
		case packet.TypePubrec:
			return packet.NewPubrel(version, p.PacketID), false
		case packet.TypePubrel:
			return packet.NewPubcomp(version, p.PacketID), false
		}
	case *packet.Subscribe:
		codes := make([]byte, len(p.Subscriptions))
		for i, sub := range p.Subscriptions {
			codes[i] = byte(sub.QoS)
		}
		return packet.NewSuback(version, p.PacketID, codes), false
	case *packet.Unsubscribe:
		var codes []packet.ReasonCode
		if version == packet.Version5 {
			codes = make([]packet.ReasonCode, len(p.TopicFilters))
		}
		return packet.NewUnsuback(version, p.PacketID, codes...), false
	case *packet.Pingreq:
		return &packet.Pingresp{}, false
	case *packet.Connect:
		// A second CONNECT is a protocol violation.
		return nil, true
	case *packet.Disconnect:
		return nil, true
	}
	return nil, false
}
