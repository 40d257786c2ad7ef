package main

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"strconv"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the commands. Values come from the
// defaults, then the YAML file, then MQTTWIRE_* environment variables,
// then command-line flags.
type Config struct {
	Addr          string        `yaml:"addr"`
	ClientID      string        `yaml:"client_id"`
	KeepAlive     uint16        `yaml:"keep_alive"`
	Version       int           `yaml:"version"`
	CleanSession  bool          `yaml:"clean_session"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	Will          WillConfig    `yaml:"will"`
	Timeout       time.Duration `yaml:"timeout"`
	Capture       string        `yaml:"capture"`
	MaxPacketSize int           `yaml:"max_packet_size"`
	TLS           TLSConfig     `yaml:"tls"`
	Listen        ListenConfig  `yaml:"listen"`
	Log           LogConfig     `yaml:"log"`
}

// WillConfig describes the will message sent in CONNECT.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload"`
	QoS     int    `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// TLSConfig configures tls://, ssl:// and wss:// connections and TLS listeners.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// ListenConfig configures the listen command.
type ListenConfig struct {
	TCP           string `yaml:"tcp"`
	WebSocket     string `yaml:"websocket"`
	WebSocketPath string `yaml:"websocket_path"`
	TLS           bool   `yaml:"tls"`
	Metrics       string `yaml:"metrics"`
	PublishRate   int    `yaml:"publish_rate"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:         "tcp://127.0.0.1:1883",
		KeepAlive:    60,
		Version:      int(packet.Version311),
		CleanSession: true,
		Timeout:      10 * time.Second,
		Listen: ListenConfig{
			TCP:           "127.0.0.1:1883",
			WebSocketPath: "/mqtt",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadFile reads a YAML file over cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "parsing config file")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MQTTWIRE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("MQTTWIRE_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("MQTTWIRE_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("MQTTWIRE_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("MQTTWIRE_VERSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Version = n
		}
	}
	if v := os.Getenv("MQTTWIRE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks the values that cannot be caught at flag parsing.
func (c *Config) Validate() error {
	if !packet.Version(c.Version).Valid() {
		return errors.Errorf("version must be 3, 4 or 5, got %d", c.Version)
	}
	if c.Will.QoS < 0 || c.Will.QoS > 2 {
		return errors.Errorf("will.qos must be 0, 1 or 2, got %d", c.Will.QoS)
	}
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls.cert_file and tls.key_file must be set together")
	}
	return nil
}

// ProtocolVersion returns the configured protocol level.
func (c *Config) ProtocolVersion() packet.Version {
	return packet.Version(c.Version)
}

// Connect builds the CONNECT packet the configuration describes. An empty
// client ID is replaced by a random one.
func (c *Config) Connect() (*packet.Connect, error) {
	clientID := c.ClientID
	if clientID == "" {
		clientID = "mqttwire-" + uuid.NewString()[:8]
	}
	id, err := packet.NewString(clientID)
	if err != nil {
		return nil, errors.Wrap(err, "client id")
	}

	connect := packet.NewConnectVersion(c.ProtocolVersion(), id, c.KeepAlive)
	connect.CleanSession = c.CleanSession

	if c.Username != "" {
		username, err := packet.NewString(c.Username)
		if err != nil {
			return nil, errors.Wrap(err, "username")
		}
		connect.UsernameFlag = true
		connect.Username = username
	}
	if c.Password != "" {
		password, err := packet.NewBinary([]byte(c.Password))
		if err != nil {
			return nil, errors.Wrap(err, "password")
		}
		connect.PasswordFlag = true
		connect.Password = password
	}

	if c.Will.Topic != "" {
		topic, err := packet.NewString(c.Will.Topic)
		if err != nil {
			return nil, errors.Wrap(err, "will topic")
		}
		payload, err := packet.NewBinary([]byte(c.Will.Payload))
		if err != nil {
			return nil, errors.Wrap(err, "will payload")
		}
		connect.Will = &packet.Will{
			Topic:   topic,
			Payload: payload,
			QoS:     packet.QoS(c.Will.QoS),
			Retain:  c.Will.Retain,
		}
	}
	return connect, nil
}

// TLSClientConfig builds the client TLS settings, or nil when none are set.
func (c *Config) TLSClientConfig() (*tls.Config, error) {
	t := c.TLS
	if t.CAFile == "" && t.CertFile == "" && !t.InsecureSkipVerify {
		return nil, nil
	}
	cfg := &tls.Config{InsecureSkipVerify: t.InsecureSkipVerify}
	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading CA file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates in %s", t.CAFile)
		}
		cfg.RootCAs = pool
	}
	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading key pair")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// TLSServerConfig builds the listener TLS settings from the key pair.
func (c *Config) TLSServerConfig() (*tls.Config, error) {
	if c.TLS.CertFile == "" {
		return nil, errors.New("listen.tls needs tls.cert_file and tls.key_file")
	}
	cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading key pair")
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
