package server

import "github.com/ninefs/ninep/wire"

// AccessMode is the read/write/execute access a Backend checks
// permissions against, as derived from an open mode by
// wire.AccessModeFor.
type AccessMode = wire.AccessMode

const (
	AREAD  = wire.AREAD
	AWRITE = wire.AWRITE
	AEXEC  = wire.AEXEC
)

// A Backend implements the file-tree semantics a Server exposes to its
// clients. The dispatcher invokes exactly one of these methods per
// incoming request (after checking the protocol invariants it owns
// itself — duplicate fids, open-mode legality, directory offsets), and
// a Backend completes the request by calling Req.Respond or Req.Error,
// possibly from another goroutine if the work needs to be deferred.
type Backend interface {
	Walk(c *Conn, r *Req)
	Open(c *Conn, r *Req)
	Create(c *Conn, r *Req)
	Read(c *Conn, r *Req)
	Write(c *Conn, r *Req)
	Clunk(c *Conn, r *Req)
	Remove(c *Conn, r *Req)
	Stat(c *Conn, r *Req)
	Wstat(c *Conn, r *Req)
}

// An AttachBackend lets a Backend customize the reply to a Tattach;
// without one, the dispatcher binds a directory Qid (type QTDIR,
// version and path zero) to the fid, replies with it, and accepts the
// attach once any auth check has passed.
type AttachBackend interface {
	Attach(c *Conn, r *Req)
}

// A FlushBackend is notified of a Tflush. For every Tflush naming a
// pending request, the dispatcher cancels that request's Req.Context
// (unblocking any Backend method selecting on it) and drops it from
// the connection's pending-request table; with a FlushBackend it then
// calls Flush with the flushed Req. The dispatcher sends the Rflush
// itself after Flush returns.
type FlushBackend interface {
	Flush(c *Conn, r *Req)
}

// HasPerm implements the Unix-style rwx permission check a Backend can
// use to decide whether uid may access a file with the given mode,
// owner and group, against the requested access bits.
func HasPerm(mode uint32, owner, group, uid string, acc AccessMode) bool {
	var bits uint32
	switch {
	case uid == owner:
		bits = (mode >> 6) & 7
	case uid == group:
		bits = (mode >> 3) & 7
	default:
		bits = mode & 7
	}
	want := uint32(0)
	if acc&AREAD != 0 {
		want |= 4
	}
	if acc&AWRITE != 0 {
		want |= 2
	}
	if acc&AEXEC != 0 {
		want |= 1
	}
	return bits&want == want
}
