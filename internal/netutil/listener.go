// Package netutil provides listener helpers shared by the server and its
// tests: a real TCP/Unix-domain listener with the permission handling
// 9P servers need, and an in-memory PipeListener for tests that would
// rather not touch the filesystem or a real port.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
)

var errClosed = errors.New("listener closed")

// Listen opens a listener for a 9P server on addr. Forms of
// "unix!/path/to/socket" and "tcp!host:port" are accepted, matching the
// network!address convention used in 9P configuration; a bare
// "host:port" is treated as tcp. When network is unix and mode is
// non-zero, the socket file's permission bits are set to mode after
// creation: binding a unix socket applies the process umask, which
// does not let a server opt into group/world access the way a normal
// open(2) call can.
func Listen(addr string, mode os.FileMode) (net.Listener, error) {
	network, address := "tcp", addr
	if i := strings.IndexByte(addr, '!'); i >= 0 {
		network, address = addr[:i], addr[i+1:]
	}
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	if network == "unix" && mode != 0 {
		if err := os.Chmod(address, mode); err != nil {
			l.Close()
			return nil, fmt.Errorf("chmod %s: %w", address, err)
		}
	}
	return l, nil
}

// PipeListener is a net.Listener that does not need permission to bind
// to a port or create a socket file. Useful for testing in heavily
// sandboxed environments or in-process client/server round trips.
type PipeListener struct {
	once     sync.Once
	incoming chan net.Conn
	shutdown chan struct{}
}

func (l *PipeListener) init() {
	l.once.Do(func() {
		l.incoming = make(chan net.Conn)
		l.shutdown = make(chan struct{})
	})
}

// Accept accepts a new connection on a PipeListener. Accept blocks
// until a new connection is made or the PipeListener is closed.
func (l *PipeListener) Accept() (net.Conn, error) {
	l.init()
	select {
	case c := <-l.incoming:
		return c, nil
	case <-l.shutdown:
		return nil, errClosed
	}
}

// Dial creates a new in-memory connection to a PipeListener, for use by
// a client under test.
func (l *PipeListener) Dial() (net.Conn, error) {
	l.init()
	x, y := net.Pipe()
	select {
	case <-l.shutdown:
		x.Close()
		y.Close()
		return nil, errClosed
	case l.incoming <- x:
		return y, nil
	}
}

// Close closes a PipeListener. The returned error is always nil.
func (l *PipeListener) Close() error {
	l.init()
	select {
	case <-l.shutdown:
		// avoid a panic on double close
	default:
		close(l.shutdown)
	}
	return nil
}

type dummyAddress struct{}

func (dummyAddress) String() string  { return "pipe" }
func (dummyAddress) Network() string { return "pipe" }

// Addr returns a placeholder net.Addr; a PipeListener isn't bound to a
// real network address.
func (l *PipeListener) Addr() net.Addr {
	l.init()
	return dummyAddress{}
}
