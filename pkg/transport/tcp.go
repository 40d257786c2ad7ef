package transport

import (
	"crypto/tls"
	"net"
	"sync"

	"github.com/pkg/errors"
)

// ErrListenerClosed is returned by Close on a listener that is already closed.
var ErrListenerClosed = errors.New("listener already closed")

// TCP is a plain or TLS TCP listener.
type TCP struct {
	id        string
	addr      string
	tlsConfig *tls.Config
	listener  net.Listener
	ready     chan struct{}
	conns     connSet
	wg        sync.WaitGroup
	closed    chan struct{}
	mu        sync.Mutex
}

// NewTCP creates a TCP listener on addr. A non-nil tlsConfig enables TLS.
func NewTCP(id, addr string, tlsConfig *tls.Config) *TCP {
	return &TCP{
		id:        id,
		addr:      addr,
		tlsConfig: tlsConfig,
		ready:     make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

// ID returns the listener ID.
func (t *TCP) ID() string {
	return t.id
}

// Addr returns the bound address, or nil if the listener hasn't started.
func (t *TCP) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Ready is closed once the listener is bound.
func (t *TCP) Ready() <-chan struct{} {
	return t.ready
}

// Serve binds the listener and hands every accepted connection to handler
// on its own goroutine.
func (t *TCP) Serve(handler ConnectionHandler) error {
	var l net.Listener
	var err error

	if t.tlsConfig != nil {
		l, err = tls.Listen("tcp", t.addr, t.tlsConfig)
	} else {
		l, err = net.Listen("tcp", t.addr)
	}
	if err != nil {
		return errors.Wrapf(err, "listen %s", t.addr)
	}

	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		l.Close()
		return nil
	default:
	}
	t.listener = l
	close(t.ready)
	t.mu.Unlock()

	t.wg.Add(1)
	defer t.wg.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return nil
			default:
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return errors.Wrap(err, "accept")
			}
		}
		t.conns.add(conn)
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer t.conns.remove(conn)
			handler.HandleConnection(conn)
		}()
	}
}

// Close stops the listener, closes accepted connections and waits for
// running handlers to return.
func (t *TCP) Close() error {
	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		return ErrListenerClosed
	default:
		close(t.closed)
	}
	if t.listener != nil {
		t.listener.Close()
	}
	t.mu.Unlock()
	t.conns.closeAll()

	t.wg.Wait()
	return nil
}
