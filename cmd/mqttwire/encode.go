package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type encodeFlags struct {
	topic   string
	payload string
	qos     int
	retain  bool
	dup     bool
	id      uint16
	filters []string
	reason  uint8
	session bool
}

func (a *app) encodeCmd() *cobra.Command {
	var flags encodeFlags

	cmd := &cobra.Command{
		Use:   "encode <packet-type>",
		Short: "Print the wire encoding of a packet as hex",
		Long: `Build a packet from flags and print its encoding as hex.

CONNECT is built from the connection settings (--client-id, --keepalive,
--protocol, --username, --will-topic, ...).

Examples:
  mqttwire encode connect -i cutie-tea1234
  mqttwire encode publish --topic a/b --payload hi --qos 1 --id 10
  mqttwire encode subscribe --id 1 --filter 'a/#' --filter b/+ --qos 1
  mqttwire encode pingreq`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.buildPacket(args[0], flags)
			if err != nil {
				return err
			}
			w := packet.NewWriter(hex.NewEncoder(a.out))
			if _, err := w.WritePacket(p); err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.topic, "topic", "", "topic name")
	f.StringVar(&flags.payload, "payload", "", "payload text")
	f.IntVarP(&flags.qos, "qos", "q", 0, "QoS level")
	f.BoolVarP(&flags.retain, "retain", "r", false, "retain flag")
	f.BoolVar(&flags.dup, "dup", false, "duplicate delivery flag")
	f.Uint16Var(&flags.id, "id", 0, "packet identifier")
	f.StringArrayVar(&flags.filters, "filter", nil, "topic filter (repeatable)")
	f.Uint8Var(&flags.reason, "reason", 0, "reason or return code")
	f.BoolVar(&flags.session, "session-present", false, "CONNACK session present flag")

	return cmd
}

func (a *app) buildPacket(kind string, flags encodeFlags) (packet.Packet, error) {
	t, ok := packet.ParseType(strings.ToUpper(kind))
	if !ok {
		return nil, errors.Errorf("unknown packet type %q", kind)
	}
	version := a.cfg.ProtocolVersion()
	qos := packet.QoS(flags.qos)
	reason := packet.ReasonCode(flags.reason)

	switch t {
	case packet.TypeConnect:
		return a.cfg.Connect()
	case packet.TypeConnack:
		return packet.NewConnack(version, flags.session, flags.reason), nil
	case packet.TypePublish:
		topic, err := packet.NewString(flags.topic)
		if err != nil {
			return nil, errors.Wrap(err, "topic")
		}
		p := packet.NewPublish(version, topic, []byte(flags.payload), qos, flags.retain)
		p.Dup = flags.dup
		p.PacketID = flags.id
		return p, nil
	case packet.TypePuback, packet.TypePubrec, packet.TypePubrel, packet.TypePubcomp:
		return &packet.Ack{PacketType: t, PacketID: flags.id, ReasonCode: reason, Version: version}, nil
	case packet.TypeSubscribe:
		filters, err := toStrings(flags.filters)
		if err != nil {
			return nil, err
		}
		subs := make([]packet.Subscription, len(filters))
		for i, filter := range filters {
			subs[i] = packet.Subscription{TopicFilter: filter, QoS: qos}
		}
		return packet.NewSubscribe(version, flags.id, subs...), nil
	case packet.TypeSuback:
		return packet.NewSuback(version, flags.id, []byte{flags.reason}), nil
	case packet.TypeUnsubscribe:
		filters, err := toStrings(flags.filters)
		if err != nil {
			return nil, err
		}
		return packet.NewUnsubscribe(version, flags.id, filters...), nil
	case packet.TypeUnsuback:
		if version == packet.Version5 {
			return packet.NewUnsuback(version, flags.id, reason), nil
		}
		return packet.NewUnsuback(version, flags.id), nil
	case packet.TypePingreq:
		return &packet.Pingreq{}, nil
	case packet.TypePingresp:
		return &packet.Pingresp{}, nil
	case packet.TypeDisconnect:
		d := packet.NewDisconnect(version)
		d.ReasonCode = reason
		return d, nil
	case packet.TypeAuth:
		return &packet.Auth{ReasonCode: reason}, nil
	}
	return nil, errors.Errorf("cannot encode %s", t)
}

func toStrings(values []string) ([]packet.String, error) {
	out := make([]packet.String, len(values))
	for i, v := range values {
		s, err := packet.NewString(v)
		if err != nil {
			return nil, errors.Wrapf(err, "%q", v)
		}
		out[i] = s
	}
	return out, nil
}
