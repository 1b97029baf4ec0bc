package server

import (
	"net"
	"os"
	"time"

	"aqwari.net/retry"

	"github.com/ninefs/ninep/internal/netutil"
	"github.com/ninefs/ninep/internal/util"
	"github.com/ninefs/ninep/wire"
)

// Logger receives diagnostic output from a Server. *log.Logger
// satisfies this interface.
type Logger interface {
	Printf(format string, v ...interface{})
}

// A Server exports a Backend's file tree over 9P connections accepted
// from a net.Listener. The zero value is not usable; Backend must be
// set before calling Serve or ListenAndServe.
type Server struct {
	// Backend handles every 9P transaction once the dispatcher has
	// validated the request against protocol invariants.
	Backend Backend

	// AuthBackend, if set, answers Tauth requests. A nil AuthBackend
	// makes every attach unauthenticated and every Tauth fail with
	// "authentication not required".
	AuthBackend AuthBackend

	// Msize bounds the message size negotiated with clients. Zero
	// means wire.DefaultMsize.
	Msize uint32

	// AllowDotu enables negotiating the 9P2000.u extension when a
	// client asks for it. Classic 9P2000 is always accepted.
	AllowDotu bool

	// SocketMode chmods a newly created Unix-domain socket, if
	// ListenAndServe creates the listener itself. Ignored for TCP.
	SocketMode os.FileMode

	Logger Logger
}

func (s *Server) msize() uint32 {
	if s.Msize == 0 {
		return wire.DefaultMsize
	}
	return s.Msize
}

func (s *Server) allowDotu() bool { return s.AllowDotu }

func (s *Server) logf(format string, v ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, v...)
	}
}

// ListenAndServe opens a listener on addr (a "network!address" string,
// or a bare "host:port" taken as tcp) and serves connections accepted
// from it until the listener errors.
func (s *Server) ListenAndServe(addr string) error {
	l, err := netutil.Listen(addr, s.SocketMode)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections from l until it returns a non-temporary
// error, dispatching each on its own goroutine. Temporary Accept
// errors (transient resource exhaustion and the like) are retried
// with exponential backoff rather than aborting the whole server.
func (s *Server) Serve(l net.Listener) error {
	backoff := retry.Exponential(time.Millisecond).Max(time.Second)
	try := 0

	for {
		rwc, err := l.Accept()
		if err != nil {
			if util.IsTempErr(err) {
				try++
				d := backoff(try)
				s.logf("9p: accept error: %v; retrying in %v", err, d)
				time.Sleep(d)
				continue
			}
			return err
		}
		try = 0
		c := newConn(s, rwc)
		go c.serve()
	}
}
