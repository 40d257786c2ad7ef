package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/bromq-dev/mqttwire/pkg/transport"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ErrConnectionRefused is returned when the server answers CONNECT with a
// non-zero return or reason code.
var ErrConnectionRefused = errors.New("connection refused")

func (a *app) probeCmd() *cobra.Command {
	var (
		ping  bool
		stay  bool
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to a server and report its CONNACK",
		Long: `Dial the server, send CONNECT and wait for CONNACK. With --ping a
PINGREQ is sent and PINGRESP awaited. The session ends with DISCONNECT
unless --no-disconnect is given.

Examples:
  mqttwire probe -a tcp://127.0.0.1:1883
  mqttwire probe -a wss://broker.example.com/mqtt -V 5 --ping
  mqttwire probe --capture probe.cap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.probe(cmd.Context(), ping, !stay, quiet)
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "send PINGREQ after connecting")
	cmd.Flags().BoolVar(&stay, "no-disconnect", false, "close without sending DISCONNECT")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing on success")

	return cmd
}

func (a *app) dialOptions() (transport.Options, func() error, error) {
	tlsConfig, err := a.cfg.TLSClientConfig()
	if err != nil {
		return transport.Options{}, nil, err
	}
	opts := transport.Options{
		TLSConfig:     tlsConfig,
		Logger:        a.log,
		Version:       a.cfg.ProtocolVersion(),
		MaxPacketSize: a.cfg.MaxPacketSize,
	}
	closer := func() error { return nil }
	if a.cfg.Capture != "" {
		f, err := os.Create(a.cfg.Capture)
		if err != nil {
			return transport.Options{}, nil, errors.Wrap(err, "creating capture file")
		}
		opts.Capture = capture.NewWriter(f)
		closer = f.Close
	}
	return opts, closer, nil
}

func (a *app) probe(ctx context.Context, ping, disconnect, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	connect, err := a.cfg.Connect()
	if err != nil {
		return err
	}
	opts, closeCapture, err := a.dialOptions()
	if err != nil {
		return err
	}
	defer closeCapture()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	conn, err := transport.Dial(ctx, a.cfg.Addr, opts)
	if err != nil {
		return err
	}
	defer conn.Close()
	a.log.Debug("connected", "addr", a.cfg.Addr)

	if err := conn.WritePacket(ctx, connect); err != nil {
		return errors.Wrap(err, "sending CONNECT")
	}
	p, err := conn.ReadPacket(ctx)
	if err != nil {
		return errors.Wrap(err, "waiting for CONNACK")
	}
	connack, ok := p.(*packet.Connack)
	if !ok {
		return errors.Errorf("expected CONNACK, got %s", p.Type())
	}
	a.report(quiet, connack)
	if !connack.Accepted() {
		return errors.Wrap(ErrConnectionRefused, connack.String())
	}

	if ping {
		if err := conn.WritePacket(ctx, &packet.Pingreq{}); err != nil {
			return errors.Wrap(err, "sending PINGREQ")
		}
		for {
			p, err := conn.ReadPacket(ctx)
			if err != nil {
				return errors.Wrap(err, "waiting for PINGRESP")
			}
			a.report(quiet, p)
			if p.Type() == packet.TypePingresp {
				break
			}
		}
	}

	if disconnect {
		if err := conn.WritePacket(ctx, packet.NewDisconnect(connect.ProtocolVersion)); err != nil {
			return errors.Wrap(err, "sending DISCONNECT")
		}
	}
	return nil
}

func (a *app) report(quiet bool, p packet.Packet) {
	if !quiet {
		fmt.Fprintln(a.out, p)
	}
}
