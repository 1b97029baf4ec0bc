package server

import (
	"context"
	"net"
	"runtime/debug"
	"sync"

	"github.com/ninefs/ninep/wire"
)

type transaction struct {
	cancel context.CancelFunc
	req    *Req
}

// A Conn is one accepted connection: its fid table, its outstanding
// request table, and the negotiated version state. The fields below
// are normally only touched by the connection's own dispatch goroutine,
// which never runs concurrently with itself, but a Backend may defer a
// request and complete it (Req.Respond/Error) from a goroutine of its
// own choosing; mu guards every field a deferred completion can reach
// so that path is safe alongside the dispatch goroutine's own access.
type Conn struct {
	srv *Server
	rwc net.Conn
	enc *wire.Encoder
	dec *wire.Decoder

	msize   uint32
	dotu    bool
	version bool // true once Tversion has negotiated successfully
	uname   string

	mu      sync.Mutex
	fids    map[uint32]*Fid
	pending map[uint16]*transaction

	closing bool
}

func newConn(srv *Server, rwc net.Conn) *Conn {
	msize := srv.msize()
	return &Conn{
		srv:     srv,
		rwc:     rwc,
		enc:     wire.NewEncoder(rwc, false),
		dec:     wire.NewDecoder(rwc, msize, false),
		msize:   msize,
		fids:    make(map[uint32]*Fid),
		pending: make(map[uint16]*transaction),
	}
}

// Msize returns the negotiated maximum message size for c.
func (c *Conn) Msize() uint32 { return c.msize }

// Dotu reports whether c negotiated the 9P2000.u extension.
func (c *Conn) Dotu() bool { return c.dotu }

// Uname returns the user name bound by the connection's Tattach, or
// the empty string before attach.
func (c *Conn) Uname() string { return c.uname }

// Fid looks up a fid previously bound on this connection.
func (c *Conn) Fid(num uint32) (*Fid, bool) {
	f, ok := c.fids[num]
	return f, ok
}

func (c *Conn) serve() {
	defer func() {
		if e := recover(); e != nil {
			c.srv.logf("9p: panic serving %s: %v\n%s", c.rwc.RemoteAddr(), e, debug.Stack())
		}
		c.teardown()
		c.rwc.Close()
	}()

	for {
		f, err := c.dec.Recv()
		if err != nil {
			return
		}
		c.dispatch(f)
	}
}

func (c *Conn) dispatch(f *wire.Fcall) {
	if !c.version {
		if f.Type != wire.Tversion {
			c.sendError(f.Tag, "Tversion expected")
			return
		}
		c.handleVersion(f)
		return
	}
	if f.Type == wire.Tversion {
		// a fresh Tversion re-initializes the session
		c.resetSession()
		c.handleVersion(f)
		return
	}
	if f.Type == wire.Tflush {
		c.handleFlush(f)
		return
	}

	c.mu.Lock()
	if _, dup := c.pending[f.Tag]; dup {
		c.mu.Unlock()
		c.sendError(f.Tag, wire.ErrDupTag)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := &Req{
		Ifcall: f,
		Ofcall: &wire.Fcall{Tag: f.Tag},
		conn:   c,
		ctx:    ctx,
		done:   make(chan struct{}),
	}
	c.pending[f.Tag] = &transaction{cancel: cancel, req: req}
	c.mu.Unlock()

	switch f.Type {
	case wire.Tauth:
		c.handleAuth(req)
	case wire.Tattach:
		c.handleAttach(req)
	case wire.Twalk:
		c.handleWalk(req)
	case wire.Topen:
		c.handleOpen(req)
	case wire.Tcreate:
		c.handleCreate(req)
	case wire.Tread:
		c.handleRead(req)
	case wire.Twrite:
		c.handleWrite(req)
	case wire.Tclunk:
		c.handleClunk(req)
	case wire.Tremove:
		c.handleRemove(req)
	case wire.Tstat:
		c.handleStat(req)
	case wire.Twstat:
		c.handleWstat(req)
	default:
		req.Error(wire.ErrBotch)
	}
}

func (c *Conn) resetSession() {
	c.mu.Lock()
	for _, t := range c.pending {
		t.cancel()
	}
	c.pending = make(map[uint16]*transaction)
	c.mu.Unlock()

	c.fids = make(map[uint32]*Fid)
	c.version = false
}

func (c *Conn) handleVersion(f *wire.Fcall) {
	msize := f.Msize
	if msize > c.srv.msize() {
		msize = c.srv.msize()
	}
	if msize < wire.MinMsgSize {
		c.sendError(wire.NOTAG, "msize too small")
		c.closing = true
		return
	}

	reply := &wire.Fcall{Type: wire.Rversion, Tag: f.Tag, Msize: msize}

	switch {
	case len(f.Version) < 2 || f.Version[:2] != "9P":
		reply.Version = wire.VersionUnknown
	case f.Version == wire.VersionDotu && c.srv.allowDotu():
		reply.Version = wire.VersionDotu
		c.dotu = true
	default:
		reply.Version = wire.VersionClassic
		c.dotu = false
	}

	c.msize = msize
	c.dec.SetMsize(msize)
	c.dec.SetDotu(c.dotu)
	c.enc.SetDotu(c.dotu)
	c.send(reply)

	if reply.Version != wire.VersionUnknown {
		c.version = true
	}
}

// handleFlush implements Tflush. It cancels the named request's
// context (a Backend method selecting on Req.Context unblocks) and
// drops it from the pending table so any late Respond/Error from the
// flushed handler is a silent no-op, then calls a FlushBackend's Flush
// if there is one, and finally sends Rflush.
func (c *Conn) handleFlush(f *wire.Fcall) {
	c.mu.Lock()
	t, ok := c.pending[f.Oldtag]
	if ok {
		delete(c.pending, f.Oldtag)
	}
	c.mu.Unlock()

	if ok {
		t.cancel()
		if be, ok := c.srv.Backend.(FlushBackend); ok {
			be.Flush(c, t.req)
		}
	}
	c.send(&wire.Fcall{Type: wire.Rflush, Tag: f.Tag})
}

func (c *Conn) sendError(tag uint16, ename string) {
	c.send(wire.RerrorFor(&wire.Fcall{Tag: tag}, ename, errnoFor[ename], c.dotu))
}

// send serializes writes to the connection's encoder: Req.Respond/Error
// may be called for a deferred request from a goroutine other than the
// one running serve's decode loop, and both sides write to the same
// underlying wire.Encoder.
func (c *Conn) send(f *wire.Fcall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enc.Send(f)
}

// finishReq is called by Req.Respond/Error to deliver the final reply
// and retire the transaction's bookkeeping. It is a no-op if the
// request's tag has already been retired by a Tflush. Safe to call
// from any goroutine, which is what lets a Backend defer a request and
// complete it later outside the dispatch goroutine.
func (c *Conn) finishReq(r *Req, reply *wire.Fcall) {
	c.mu.Lock()
	t, ok := c.pending[r.Ifcall.Tag]
	if ok {
		delete(c.pending, r.Ifcall.Tag)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	c.send(reply)
}

// teardown runs when the connection's socket loop exits for any
// reason: it cancels every outstanding request's context and gives
// the Backend a chance to release per-fid state, mirroring the
// synthesized Tflush/Tclunk sweep a reference 9P server performs on
// disconnect, without generating wire traffic for a socket that is
// already going away.
func (c *Conn) teardown() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, t := range pending {
		t.cancel()
	}

	doneCtx, cancel := context.WithCancel(context.Background())
	cancel()
	for num, fid := range c.fids {
		req := &Req{
			Ifcall: &wire.Fcall{Type: wire.Tclunk, Fid: num},
			Ofcall: &wire.Fcall{Type: wire.Rclunk},
			Fid:    fid,
			conn:   c,
			ctx:    doneCtx,
			done:   make(chan struct{}),
		}
		close(req.done) // discard the reply; the socket is going away
		func() {
			defer func() { recover() }()
			c.srv.Backend.Clunk(c, req)
		}()
	}
	c.fids = nil
}
