// Package client implements a 9P client: dialing a server, negotiating
// a session, and issuing the walk/open/create/read/write/stat family of
// requests against the resulting file tree.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/ninefs/ninep/auth"
	"github.com/ninefs/ninep/internal/pool"
	"github.com/ninefs/ninep/wire"
)

// RPCError wraps an Rerror reply's error string. Under 9P2000.u it
// also carries the numeric errno the server supplied.
type RPCError struct {
	Ename string
	Errno uint32
}

func (e *RPCError) Error() string { return e.Ename }

// ClientError reports a protocol violation the client itself detected,
// such as a reply tagged for a request that was never sent.
type ClientError string

func (e ClientError) Error() string { return "client: " + string(e) }

// EofError is returned by an rpc when the connection is closed, or the
// decode loop fails, before a reply for that tag arrives.
type EofError string

func (e EofError) Error() string { return "client: " + string(e) }

// VersionError is returned by login when the server proposes a version
// string the client did not offer and cannot speak.
type VersionError string

func (e VersionError) Error() string { return "client: unsupported version " + string(e) }

// A Client is one authenticated session against a 9P server. It is
// safe for concurrent use: concurrent calls get distinct tags and
// their replies are routed back to the right caller.
type Client struct {
	rwc  net.Conn
	enc  *wire.Encoder
	dec  *wire.Decoder
	dotu bool
	msize uint32

	tags pool.TagPool
	fids pool.FidPool

	mu      sync.Mutex
	pending map[uint16]chan *wire.Fcall
	recvErr error

	root uint32
	cwd  uint32
}

// Options configures Dial.
type Options struct {
	Uname     string
	Aname     string
	Msize     uint32
	Dotu      bool
	AuthBytes []byte // sent verbatim over the afid before attach, if non-nil

	// Creds, if its Authmode is set, derives the afid exchange via
	// Credentials.Token instead of AuthBytes, and supplies Uname when
	// Uname is left blank. AuthBytes takes precedence when both are set.
	Creds auth.Credentials
}

// Dial connects to addr (host:port, or "unix!/path/to/socket"),
// negotiates a version, authenticates if the server requires it, and
// attaches, returning a Client positioned with its working directory
// at the attach point's root.
func Dial(addr string, opts Options) (*Client, error) {
	network, address := "tcp", addr
	if i := strings.IndexByte(addr, '!'); i >= 0 {
		network, address = addr[:i], addr[i+1:]
	}
	rwc, err := net.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return NewClient(rwc, opts)
}

// NewClient runs the same negotiation as Dial over an already-open
// connection.
func NewClient(rwc net.Conn, opts Options) (*Client, error) {
	msize := opts.Msize
	if msize == 0 {
		msize = wire.DefaultMsize
	}
	c := &Client{
		rwc:     rwc,
		enc:     wire.NewEncoder(rwc, opts.Dotu),
		dec:     wire.NewDecoder(bufio.NewReader(rwc), msize, opts.Dotu),
		msize:   msize,
		pending: make(map[uint16]chan *wire.Fcall),
	}
	go c.recvLoop()

	if err := c.login(opts); err != nil {
		c.rwc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) login(opts Options) error {
	version := wire.VersionClassic
	if opts.Dotu {
		version = wire.VersionDotu
	}
	rv, err := c.rpc(&wire.Fcall{Type: wire.Tversion, Tag: wire.NOTAG, Msize: c.msize, Version: version})
	if err != nil {
		return err
	}
	if rv.Version != version && rv.Version != wire.VersionClassic {
		return VersionError(rv.Version)
	}
	c.msize = rv.Msize
	c.dotu = rv.Version == wire.VersionDotu
	c.dec.SetMsize(c.msize)
	c.dec.SetDotu(c.dotu)
	c.enc.SetDotu(c.dotu)

	uname := opts.Uname
	if uname == "" {
		uname = opts.Creds.User
	}

	authBytes := opts.AuthBytes
	if authBytes == nil && opts.Creds.Authmode != "" {
		tok, err := opts.Creds.Token()
		if err != nil {
			return err
		}
		authBytes = tok
	}

	root, ok := c.fids.Get()
	if !ok {
		return ClientError("fid pool exhausted")
	}
	cwd, ok := c.fids.Get()
	if !ok {
		return ClientError("fid pool exhausted")
	}
	c.root, c.cwd = root, cwd

	afid := uint32(wire.NOFID)
	if authBytes != nil {
		afid, ok = c.fids.Get()
		if !ok {
			return ClientError("fid pool exhausted")
		}
		if _, err := c.rpc(&wire.Fcall{Type: wire.Tauth, Afid: afid, Uname: uname, Aname: opts.Aname}); err != nil {
			c.fids.Free(afid)
			afid = wire.NOFID
		} else if err := c.authenticate(afid, authBytes); err != nil {
			return err
		}
	}

	if _, err := c.rpc(&wire.Fcall{Type: wire.Tattach, Fid: c.root, Afid: afid, Uname: uname, Aname: opts.Aname}); err != nil {
		return err
	}
	if afid != wire.NOFID {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: afid})
		c.fids.Free(afid)
	}
	if _, err := c.rpc(&wire.Fcall{Type: wire.Twalk, Fid: c.root, Newfid: c.cwd}); err != nil {
		return err
	}
	return nil
}

func (c *Client) authenticate(afid uint32, auth []byte) error {
	off := uint64(0)
	for off < uint64(len(auth)) {
		end := off + uint64(c.msize-wire.IOHDRSZ)
		if end > uint64(len(auth)) {
			end = uint64(len(auth))
		}
		if _, err := c.rpc(&wire.Fcall{Type: wire.Twrite, Fid: afid, Offset: off, Data: auth[off:end]}); err != nil {
			return err
		}
		off = end
	}
	// a zero-length read signals the server to finish evaluating the
	// exchange, mirroring the convention auth.TokenFunc relies on.
	_, err := c.rpc(&wire.Fcall{Type: wire.Tread, Fid: afid, Offset: off, Count: 0})
	return err
}

// Close clunks the client's root and working-directory fids and
// closes the underlying connection.
func (c *Client) Close() error {
	c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: c.cwd})
	c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: c.root})
	return c.rwc.Close()
}

func (c *Client) recvLoop() {
	for {
		f, err := c.dec.Recv()
		if err != nil {
			if err == io.EOF {
				err = EofError("connection closed")
			}
			c.mu.Lock()
			c.recvErr = err
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = nil
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[f.Tag]
		if ok {
			delete(c.pending, f.Tag)
		}
		c.mu.Unlock()
		if ok {
			ch <- f
		}
	}
}

// rpc sends f and blocks until its matching reply arrives or the
// connection fails. It takes no context and never sends a Tflush
// itself; callers that need cancellation use Flush.
func (c *Client) rpc(f *wire.Fcall) (*wire.Fcall, error) {
	var tag uint16
	if f.Type == wire.Tversion {
		tag = wire.NOTAG
		f.Tag = tag
	} else {
		t, ok := c.tags.Get()
		if !ok {
			return nil, ClientError("tag pool exhausted")
		}
		tag = t
		f.Tag = tag
		defer c.tags.Free(tag)
	}

	ch := make(chan *wire.Fcall, 1)
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, c.recvErr
	}
	c.pending[tag] = ch
	c.mu.Unlock()

	if err := c.enc.Send(f); err != nil {
		c.mu.Lock()
		delete(c.pending, tag)
		c.mu.Unlock()
		return nil, err
	}

	reply, ok := <-ch
	if !ok {
		return nil, c.recvErr
	}
	if reply.Type == wire.Rerror {
		return nil, &RPCError{Ename: reply.Ename, Errno: reply.Errno}
	}
	if reply.Type != f.Type+1 {
		return nil, ClientError(fmt.Sprintf("reply type %d does not match request type %d", reply.Type, f.Type))
	}
	return reply, nil
}

// Flush sends a Tflush for a request tag this Client is no longer
// waiting on. It exists for callers building their own cancellation
// on top of rpc; Client's own convenience methods don't need it since
// they block until the matching reply arrives.
func (c *Client) Flush(oldtag uint16) error {
	_, err := c.rpc(&wire.Fcall{Type: wire.Tflush, Oldtag: oldtag})
	return err
}
