package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrUnsupportedScheme is returned by Dial for an address scheme it cannot dial.
var ErrUnsupportedScheme = errors.New("unsupported address scheme")

var defaultPorts = map[string]string{
	"tcp":   "1883",
	"mqtt":  "1883",
	"tls":   "8883",
	"ssl":   "8883",
	"mqtts": "8883",
	"ws":    "80",
	"wss":   "443",
}

// Dial connects to an MQTT server. addr is a URL with one of the schemes
// tcp, mqtt, tls, ssl, mqtts, ws or wss; a bare host:port means tcp.
// ctx bounds connection setup only.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	if !strings.Contains(addr, "://") {
		addr = "tcp://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse address %q", addr)
	}
	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return nil, errors.Wrap(ErrUnsupportedScheme, u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), port)
	}

	var conn net.Conn
	switch u.Scheme {
	case "tcp", "mqtt":
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", host)
	case "tls", "ssl", "mqtts":
		d := tls.Dialer{Config: opts.TLSConfig}
		conn, err = d.DialContext(ctx, "tcp", host)
	case "ws", "wss":
		u.Host = host
		conn, err = dialWebSocket(ctx, u, opts)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return NewConn(conn, opts), nil
}

func dialWebSocket(ctx context.Context, u *url.URL, opts Options) (net.Conn, error) {
	if u.Path == "" {
		u.Path = "/mqtt"
	}
	d := websocket.Dialer{
		Subprotocols:    []string{Subprotocol},
		TLSClientConfig: opts.TLSConfig,
		Proxy:           websocket.DefaultDialer.Proxy,
	}
	ws, resp, err := d.DialContext(ctx, u.String(), opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if ws.Subprotocol() != Subprotocol {
		ws.Close()
		return nil, errors.Errorf("server selected subprotocol %q", ws.Subprotocol())
	}
	return newWSConn(ws), nil
}
