// Command mqttwire encodes, decodes and exchanges MQTT packets.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// app carries the state shared by the commands.
type app struct {
	cfg        *Config
	configFile string
	log        *slog.Logger
	out        io.Writer
	errOut     io.Writer
}

func main() {
	a := &app{cfg: defaultConfig(), out: os.Stdout, errOut: os.Stderr}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mqttwire",
		Short: "Encode, decode and exchange MQTT packets",
		Long: `mqttwire is a toolkit for the MQTT 3.1, 3.1.1 and 5.0 wire format.

It prints the encoding of packets built from flags, decodes packets given
as hex or read from files, probes servers with a CONNECT exchange, records
and replays traffic captures, and runs a responder that acknowledges
client traffic.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags())
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	cfg := a.cfg
	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "YAML config file")
	f.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "server address (tcp://, tls://, ws://, wss://)")
	f.StringVarP(&cfg.ClientID, "client-id", "i", cfg.ClientID, "client identifier (random when empty)")
	f.Uint16VarP(&cfg.KeepAlive, "keepalive", "k", cfg.KeepAlive, "keepalive in seconds")
	f.IntVarP(&cfg.Version, "protocol", "V", cfg.Version, "protocol level: 3, 4 (3.1.1) or 5")
	f.BoolVar(&cfg.CleanSession, "clean", cfg.CleanSession, "request a clean session")
	f.StringVarP(&cfg.Username, "username", "u", cfg.Username, "username")
	f.StringVarP(&cfg.Password, "password", "P", cfg.Password, "password")
	f.StringVar(&cfg.Will.Topic, "will-topic", cfg.Will.Topic, "will topic")
	f.StringVar(&cfg.Will.Payload, "will-payload", cfg.Will.Payload, "will payload")
	f.IntVar(&cfg.Will.QoS, "will-qos", cfg.Will.QoS, "will QoS")
	f.BoolVar(&cfg.Will.Retain, "will-retain", cfg.Will.Retain, "retain the will message")
	f.DurationVarP(&cfg.Timeout, "timeout", "t", cfg.Timeout, "network timeout")
	f.StringVar(&cfg.Capture, "capture", cfg.Capture, "capture file")
	f.IntVar(&cfg.MaxPacketSize, "max-packet-size", cfg.MaxPacketSize, "largest inbound packet accepted")
	f.StringVar(&cfg.TLS.CAFile, "tls-ca", cfg.TLS.CAFile, "CA certificate file")
	f.StringVar(&cfg.TLS.CertFile, "tls-cert", cfg.TLS.CertFile, "certificate file")
	f.StringVar(&cfg.TLS.KeyFile, "tls-key", cfg.TLS.KeyFile, "private key file")
	f.BoolVar(&cfg.TLS.InsecureSkipVerify, "tls-insecure", cfg.TLS.InsecureSkipVerify, "skip server certificate verification")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn or error")
	f.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format: text or json")
	markConfig(f)

	root.AddCommand(
		a.encodeCmd(),
		a.decodeCmd(),
		a.probeCmd(),
		a.replayCmd(),
		a.listenCmd(),
		versionCmd(),
	)
	return root
}

const configAnnotation = "mqttwire_config"

// markConfig tags the flags of fs that write into Config.
func markConfig(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" {
			_ = fs.SetAnnotation(f.Name, configAnnotation, []string{"true"})
		}
	})
}

// setup layers the config file and environment under the flags that were
// set explicitly, then builds the logger.
func (a *app) setup(flags *pflag.FlagSet) error {
	explicit := map[string]string{}
	flags.VisitAll(func(f *pflag.Flag) {
		if _, ok := f.Annotations[configAnnotation]; ok && f.Changed {
			explicit[f.Name] = f.Value.String()
		}
	})

	if a.configFile != "" {
		if err := loadFile(a.cfg, a.configFile); err != nil {
			return err
		}
	}
	applyEnvOverrides(a.cfg)
	for name, value := range explicit {
		if err := flags.Set(name, value); err != nil {
			return errors.Wrapf(err, "flag --%s", name)
		}
	}

	if err := a.cfg.Validate(); err != nil {
		return errors.Wrap(err, "validating config")
	}

	logger, err := newLogger(a.errOut, a.cfg.Log)
	if err != nil {
		return err
	}
	a.log = logger
	return nil
}

func newLogger(w io.Writer, cfg LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Errorf("log format %q", cfg.Format)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mqttwire %s (%s)\n", version, commit)
		},
	}
}
