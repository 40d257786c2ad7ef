package transport

import (
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Subprotocol is the WebSocket subprotocol MQTT connections negotiate.
const Subprotocol = "mqtt"

// WebSocketConfig holds configuration for WebSocket listeners.
type WebSocketConfig struct {
	// TLSConfig enables TLS if set.
	TLSConfig *tls.Config

	// Path is the URL path to listen on. Default: "/mqtt".
	Path string

	// CheckOrigin validates the Origin header. If nil, all origins are allowed.
	CheckOrigin func(r *http.Request) bool
}

// WebSocket is an MQTT over WebSocket listener.
type WebSocket struct {
	id       string
	addr     string
	config   *WebSocketConfig
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	handler  ConnectionHandler
	conns    connSet
	ready    chan struct{}
	closed   chan struct{}
	mu       sync.Mutex
}

// NewWebSocket creates a WebSocket listener.
func NewWebSocket(id, addr string, config *WebSocketConfig) *WebSocket {
	if config == nil {
		config = &WebSocketConfig{}
	}
	if config.Path == "" {
		config.Path = "/mqtt"
	}
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &WebSocket{
		id:     id,
		addr:   addr,
		config: config,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{Subprotocol},
			CheckOrigin:  checkOrigin,
		},
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// ID returns the listener ID.
func (w *WebSocket) ID() string {
	return w.id
}

// Addr returns the bound address, or nil if the listener hasn't started.
func (w *WebSocket) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// Ready is closed once the listener is bound.
func (w *WebSocket) Ready() <-chan struct{} {
	return w.ready
}

// Serve starts the HTTP server and upgrades requests on the configured path.
func (w *WebSocket) Serve(handler ConnectionHandler) error {
	mux := http.NewServeMux()
	mux.HandleFunc(w.config.Path, w.handleWebSocket)

	var ln net.Listener
	var err error
	if w.config.TLSConfig != nil {
		ln, err = tls.Listen("tcp", w.addr, w.config.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", w.addr)
	}
	if err != nil {
		return errors.Wrapf(err, "listen %s", w.addr)
	}

	w.mu.Lock()
	select {
	case <-w.closed:
		w.mu.Unlock()
		ln.Close()
		return nil
	default:
	}
	w.handler = handler
	w.listener = ln
	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := w.server
	close(w.ready)
	w.mu.Unlock()

	err = server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (w *WebSocket) handleWebSocket(rw http.ResponseWriter, r *http.Request) {
	select {
	case <-w.closed:
		http.Error(rw, "server closing", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}

	conn := newWSConn(ws)
	w.conns.add(conn)
	defer w.conns.remove(conn)

	w.handler.HandleConnection(conn)
}

// Close stops the HTTP server and closes upgraded connections.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	select {
	case <-w.closed:
		w.mu.Unlock()
		return ErrListenerClosed
	default:
		close(w.closed)
	}
	server := w.server
	w.mu.Unlock()

	w.conns.closeAll()
	if server != nil {
		return server.Close()
	}
	return nil
}

// wsConn wraps websocket.Conn to implement net.Conn. MQTT packets may span
// WebSocket messages and a message may carry several packets, so reads
// treat the binary messages as one byte stream.
type wsConn struct {
	*websocket.Conn
	reader io.Reader
	rmu    sync.Mutex
	wmu    sync.Mutex
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{Conn: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for {
		if c.reader == nil {
			messageType, r, err := c.Conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.Conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame when possible and closes the socket.
func (c *wsConn) Close() error {
	c.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.Conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return &wsAddr{addr: c.Conn.RemoteAddr().String()}
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.Conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.Conn.SetWriteDeadline(t)
}

// wsAddr implements net.Addr for WebSocket connections.
type wsAddr struct {
	addr string
}

func (a *wsAddr) Network() string { return "websocket" }
func (a *wsAddr) String() string  { return a.addr }
