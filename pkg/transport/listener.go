package transport

import (
	"net"
	"sync"
)

// ConnectionHandler handles connections accepted by a Listener.
type ConnectionHandler interface {
	HandleConnection(conn net.Conn)
}

// HandlerFunc adapts a function to ConnectionHandler.
type HandlerFunc func(conn net.Conn)

// HandleConnection calls f(conn).
func (f HandlerFunc) HandleConnection(conn net.Conn) { f(conn) }

// Listener accepts MQTT connections on one transport.
type Listener interface {
	// ID returns the identifier the listener was created with.
	ID() string

	// Addr returns the bound address, or nil before Serve has bound it.
	Addr() net.Addr

	// Serve accepts connections and passes them to the handler.
	// It blocks until Close is called.
	Serve(handler ConnectionHandler) error

	// Close stops the listener.
	Close() error
}

// connSet tracks accepted connections so Close can end them.
type connSet struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func (s *connSet) add(c net.Conn) {
	s.mu.Lock()
	if s.conns == nil {
		s.conns = make(map[net.Conn]struct{})
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *connSet) remove(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *connSet) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}
