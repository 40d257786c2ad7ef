package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/bromq-dev/mqttwire/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() (*app, *bytes.Buffer) {
	var out bytes.Buffer
	return &app{cfg: defaultConfig(), out: &out, errOut: &bytes.Buffer{}}, &out
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a, out := newTestApp()
	err := runApp(a, args...)
	return out.String(), err
}

func runApp(a *app, args ...string) error {
	root := a.rootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func TestEncodeConnect(t *testing.T) {
	out, err := run(t, "encode", "connect", "-i", "cutie-tea1234", "--clean=false")
	require.NoError(t, err)
	want := "1019" + "00044d515454" + "04" + "00" + "003c" + "000d" + "63757469652d746561" + "31323334"
	assert.Equal(t, want+"\n", out)
}

func TestEncodePublish(t *testing.T) {
	out, err := run(t, "encode", "publish", "--topic", "a/b", "--payload", "hi", "-q", "1", "--id", "10")
	require.NoError(t, err)
	assert.Equal(t, "3209"+"0003612f62"+"000a"+"6869"+"\n", out)
}

func TestEncodeSubscribe(t *testing.T) {
	out, err := run(t, "encode", "subscribe", "--id", "1", "--filter", "a/#", "-q", "1")
	require.NoError(t, err)
	assert.Equal(t, "8208"+"0001"+"0003612f23"+"01"+"\n", out)
}

func TestEncodeErrors(t *testing.T) {
	_, err := run(t, "encode", "bogus")
	assert.Error(t, err)

	_, err = run(t, "encode", "publish", "--topic", "a/+")
	assert.ErrorIs(t, err, packet.ErrInvalidTopicName)

	_, err = run(t, "encode", "puback")
	assert.ErrorIs(t, err, packet.ErrInvalidPacketID)
}

func TestDecodeHex(t *testing.T) {
	out, err := run(t, "decode", "c0 00", "d000")
	require.NoError(t, err)
	assert.Equal(t, "PINGREQ\nPINGRESP\n", out)
}

func TestDecodeJSON(t *testing.T) {
	out, err := run(t, "decode", "--json", "32090003612f62000a6869")
	require.NoError(t, err)
	assert.Contains(t, out, `"type":"PUBLISH"`)
	assert.Contains(t, out, `"size":11`)
	assert.Contains(t, out, `"TopicName":"a/b"`)
	assert.Contains(t, out, `"PacketID":10`)
}

func TestDecodeFollowsConnectVersion(t *testing.T) {
	connect := &packet.Connect{ProtocolVersion: packet.Version5, ClientID: packet.MustString("c")}
	var buf bytes.Buffer
	w := packet.NewWriter(&buf)
	_, err := w.WritePacket(connect)
	require.NoError(t, err)
	_, err = w.WritePacket(&packet.Auth{ReasonCode: packet.ReasonContinueAuth})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "stream.bin")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	out, err := run(t, "decode", "--file", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "CONNECT"))
	assert.True(t, strings.HasPrefix(lines[1], "AUTH"))
}

func TestDecodeErrors(t *testing.T) {
	_, err := run(t, "decode")
	assert.Error(t, err)

	_, err = run(t, "decode", "zz")
	assert.Error(t, err)

	_, err = run(t, "decode", "3005")
	assert.Error(t, err)

	_, err = run(t, "decode", "c000", "0000")
	assert.ErrorIs(t, err, packet.ErrUnknownPacketType)
	assert.Contains(t, err.Error(), "offset 2")
}

func TestConfigLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqttwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: tcp://example.com:1883
client_id: from-file
keep_alive: 30
timeout: 3s
username: file-user
listen:
  tcp: 127.0.0.1:2883
log:
  level: debug
`), 0o600))
	t.Setenv("MQTTWIRE_USERNAME", "env-user")

	a, _ := newTestApp()
	require.NoError(t, runApp(a, "--config", path, "-k", "45", "version"))

	assert.Equal(t, "tcp://example.com:1883", a.cfg.Addr)
	assert.Equal(t, "from-file", a.cfg.ClientID)
	assert.Equal(t, uint16(45), a.cfg.KeepAlive)
	assert.Equal(t, 3*time.Second, a.cfg.Timeout)
	assert.Equal(t, "env-user", a.cfg.Username)
	assert.Equal(t, "127.0.0.1:2883", a.cfg.Listen.TCP)
	assert.Equal(t, 4, a.cfg.Version)
}

func TestConfigValidation(t *testing.T) {
	_, err := run(t, "-V", "7", "version")
	assert.Error(t, err)

	_, err = run(t, "--will-qos", "3", "version")
	assert.Error(t, err)

	_, err = run(t, "--log-level", "loud", "version")
	assert.Error(t, err)

	_, err = run(t, "--log-format", "xml", "version")
	assert.Error(t, err)
}

func TestConfigConnect(t *testing.T) {
	cfg := defaultConfig()
	cfg.Username = "u"
	cfg.Password = "p"
	cfg.Will = WillConfig{Topic: "gone", Payload: "bye", QoS: 1, Retain: true}
	cfg.Version = 5

	connect, err := cfg.Connect()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(connect.ClientID.String(), "mqttwire-"))
	assert.Equal(t, packet.Version5, connect.ProtocolVersion)
	assert.True(t, connect.UsernameFlag)
	assert.True(t, connect.PasswordFlag)
	require.NotNil(t, connect.Will)
	assert.Equal(t, packet.QoS1, connect.Will.QoS)
	assert.Equal(t, byte(0xEE), connect.ConnectFlags())
}

func TestConfigConnectLevels(t *testing.T) {
	for _, level := range []int{3, 4, 5} {
		cfg := defaultConfig()
		cfg.ClientID = "levels"
		cfg.Version = level

		connect, err := cfg.Connect()
		require.NoError(t, err)

		b, err := packet.Encode(connect)
		require.NoError(t, err)
		p, _, err := packet.Decode(b, packet.Version311)
		require.NoError(t, err, "level %d", level)
		assert.Equal(t, packet.Version(level), p.(*packet.Connect).ProtocolVersion)
	}

	cfg := defaultConfig()
	cfg.Version = 3
	connect, err := cfg.Connect()
	require.NoError(t, err)
	assert.Equal(t, "MQIsdp", connect.ProtocolName.String())
}

func startResponder(t *testing.T) string {
	t.Helper()
	l := transport.NewTCP("test", "127.0.0.1:0", nil)
	errc := make(chan error, 1)
	go func() { errc <- l.Serve(&transport.Responder{}) }()
	select {
	case <-l.Ready():
	case err := <-errc:
		t.Fatalf("serve: %v", err)
	}
	t.Cleanup(func() {
		l.Close()
		<-errc
	})
	return l.Addr().String()
}

func TestProbeAndReplay(t *testing.T) {
	addr := startResponder(t)
	capturePath := filepath.Join(t.TempDir(), "probe.cap")

	out, err := run(t, "probe", "-a", "tcp://"+addr, "-i", "probe-test", "-V", "5", "--ping", "--capture", capturePath)
	require.NoError(t, err)
	assert.Contains(t, out, "CONNACK")
	assert.Contains(t, out, "PINGRESP")

	out, err = run(t, "replay", "--capture", capturePath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "out CONNECT")
	assert.Contains(t, lines[1], "in  CONNACK")
	assert.Contains(t, lines[4], "out DISCONNECT")
}

func TestProbeUnreachable(t *testing.T) {
	_, err := run(t, "probe", "-a", "tcp://127.0.0.1:1", "-t", "1s")
	assert.Error(t, err)
}

func TestReplayFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.cap")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := capture.NewWriter(f)
	for _, name := range []string{"sensors/1/temp", "sensors/1/hum", "other"} {
		raw, err := packet.Encode(packet.NewPublish(packet.Version311, packet.MustString(name), []byte("x"), packet.QoS0, false))
		require.NoError(t, err)
		require.NoError(t, w.Record(capture.Inbound, packet.Version311, raw))
	}
	require.NoError(t, f.Close())

	out, err := run(t, "replay", "--capture", path, "--filter", "sensors/+/temp")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "PUBLISH"))
	assert.Contains(t, out, "sensors/1/temp")

	_, err = run(t, "replay", "--capture", path, "--filter", "a/#/b")
	assert.Error(t, err)

	_, err = run(t, "replay")
	assert.Error(t, err)
}

func TestListenNeedsListener(t *testing.T) {
	_, err := run(t, "listen", "--listen-tcp", "")
	assert.Error(t, err)
}
