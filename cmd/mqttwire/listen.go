package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/bromq-dev/mqttwire/pkg/transport"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func (a *app) listenCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Accept MQTT clients and acknowledge their traffic",
		Long: `Run a responder on TCP and/or WebSocket listeners. Clients get an
accepting CONNACK, their subscriptions are granted, publishes are
acknowledged and pings answered; nothing is routed. Every packet received
is printed, and with --capture recorded.

Examples:
  mqttwire listen --listen-tcp :1883
  mqttwire listen --listen-tcp :1883 --listen-ws :8080 --metrics :9100
  mqttwire listen --listen-tcp :8883 --listen-tls --tls-cert c.pem --tls-key k.pem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.listen(ctx, quiet)
		},
	}

	l := &a.cfg.Listen
	f := cmd.Flags()
	f.StringVar(&l.TCP, "listen-tcp", l.TCP, "TCP listen address (empty to disable)")
	f.StringVar(&l.WebSocket, "listen-ws", l.WebSocket, "WebSocket listen address (empty to disable)")
	f.StringVar(&l.WebSocketPath, "ws-path", l.WebSocketPath, "WebSocket URL path")
	f.BoolVar(&l.TLS, "listen-tls", l.TLS, "serve TLS with --tls-cert and --tls-key")
	f.StringVar(&l.Metrics, "metrics", l.Metrics, "serve prometheus metrics on this address")
	f.IntVar(&l.PublishRate, "publish-rate", l.PublishRate, "publishes per second allowed per client (0 for no limit)")
	markConfig(f)
	f.BoolVarP(&quiet, "quiet", "q", false, "do not print packets")

	return cmd
}

// listen serves until ctx is done.
func (a *app) listen(ctx context.Context, quiet bool) error {
	cfg := a.cfg.Listen
	if cfg.TCP == "" && cfg.WebSocket == "" {
		return errors.New("no listener configured")
	}

	reg := prometheus.NewRegistry()
	opts := transport.Options{
		Logger:        a.log,
		Metrics:       transport.NewMetrics(reg),
		MaxPacketSize: a.cfg.MaxPacketSize,
	}
	if a.cfg.Capture != "" {
		f, err := os.Create(a.cfg.Capture)
		if err != nil {
			return errors.Wrap(err, "creating capture file")
		}
		defer f.Close()
		opts.Capture = capture.NewWriter(f)
	}

	var tlsConfig *tls.Config
	if cfg.TLS {
		var err error
		if tlsConfig, err = a.cfg.TLSServerConfig(); err != nil {
			return err
		}
	}

	var printMu sync.Mutex
	responder := &transport.Responder{
		Options:      opts,
		PublishLimit: transport.RateLimit{Rate: cfg.PublishRate},
	}
	if !quiet {
		responder.OnPacket = func(c *transport.Conn, p packet.Packet) {
			printMu.Lock()
			defer printMu.Unlock()
			fmt.Fprintf(a.out, "%s %s\n", c.RemoteAddr(), p)
		}
	}

	var listeners []transport.Listener
	if cfg.TCP != "" {
		listeners = append(listeners, transport.NewTCP("tcp", cfg.TCP, tlsConfig))
	}
	if cfg.WebSocket != "" {
		listeners = append(listeners, transport.NewWebSocket("ws", cfg.WebSocket, &transport.WebSocketConfig{
			TLSConfig: tlsConfig,
			Path:      cfg.WebSocketPath,
		}))
	}

	errc := make(chan error, len(listeners)+1)
	for _, l := range listeners {
		go func(l transport.Listener) {
			errc <- errors.Wrap(l.Serve(responder), l.ID())
		}(l)
		a.log.Info("listening", "listener", l.ID())
	}

	var metricsServer *http.Server
	if cfg.Metrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: cfg.Metrics, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errc <- errors.Wrap(err, "metrics")
			}
		}()
		a.log.Info("serving metrics", "addr", cfg.Metrics)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	for _, l := range listeners {
		l.Close()
	}
	if metricsServer != nil {
		metricsServer.Close()
	}
	return err
}
