package server

import "github.com/ninefs/ninep/wire"

// noMode marks a Fid that has not been opened.
const noMode = -1

// A Fid is the server's bookkeeping for one client-visible handle into
// the file tree on a single connection. Fids are never shared across
// connections, and are only ever touched from their connection's
// dispatch goroutine.
type Fid struct {
	Num uint32
	Qid wire.Qid
	Uid string      // user this fid is authenticated/bound as
	Aux interface{} // back-end-owned per-fid state

	omode     int // noMode if not opened
	diroffset uint64
	auth      bool // true for an afid awaiting authentication
	refs      int  // walk-in-place clones sharing this entry
}

// Opened reports whether the fid has an open mode bound to it.
func (f *Fid) Opened() bool { return f.omode != noMode }

// Mode returns the open mode the fid was opened with. Only meaningful
// if Opened returns true.
func (f *Fid) Mode() uint8 { return uint8(f.omode) }

// IsAuth reports whether this fid is an authentication fid allocated by
// a Tauth request.
func (f *Fid) IsAuth() bool { return f.auth }

// clone returns a copy of f suitable for binding to a different fid
// number, as happens on a zero-length Twalk.
func (f *Fid) clone(num uint32) *Fid {
	dup := *f
	dup.Num = num
	return &dup
}

// ref records another walk-in-place clone (newfid == fid) sharing this
// entry. The count is informational bookkeeping matching the wire
// protocol's fid reference count; since a walk-in-place never changes
// the fid number under which an entry is stored, a single Tclunk on
// that number always releases it regardless of how many times it was
// walked in place.
func (f *Fid) ref() { f.refs++ }
