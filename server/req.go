package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/ninefs/ninep/wire"
)

// errno maps the standard error strings to a plausible Unix errno, for
// servers running 9P2000.u. A back end returning some other string
// gets errno 0, leaving the client to interpret the string itself;
// this is a best-effort convenience, not a protocol requirement.
var errnoFor = map[string]uint32{
	wire.ErrBadOffset:        22, // EINVAL
	wire.ErrBotch:            71, // EPROTO
	wire.ErrCreateNondir:     20, // ENOTDIR
	wire.ErrDupFid:           17, // EEXIST
	wire.ErrDupTag:           17, // EEXIST
	wire.ErrIsDir:            21, // EISDIR
	wire.ErrCreateProhibited: 1,  // EPERM
	wire.ErrRemoveProhibited: 1,  // EPERM
	wire.ErrStatProhibited:   1,  // EPERM
	wire.ErrNotFound:         2,  // ENOENT
	wire.ErrWstatProhibited:  1,  // EPERM
	wire.ErrPermDenied:       13, // EACCES
	wire.ErrUnknownFid:       9,  // EBADF
	wire.ErrBadWstatDir:      22, // EINVAL
	wire.ErrWalkNondir:       20, // ENOTDIR
	wire.ErrNotOpen:          9,  // EBADF
	wire.ErrAuthNotRequired:  22, // EINVAL
}

// A Req is the server-side context for one in-flight 9P transaction. It
// is created when a request is decoded and lives until Respond or Error
// is called. Back ends read Ifcall to learn what was asked, populate
// the relevant fields of Ofcall, and call Respond to send the reply
// (Error for a failure); both may be called from a goroutine other
// than the one that created the Req, to support back ends that need to
// suspend a request pending some other event. The connection state
// Respond/Error touch (the pending-request table and the encoder) is
// synchronized for exactly this case; only one of Respond/Error/a
// Tflush ever wins for a given Req.
type Req struct {
	Ifcall *wire.Fcall
	Ofcall *wire.Fcall

	// Fid is the resolved Fid named by Ifcall, if any; for Tauth and
	// Tattach it is the freshly allocated afid or fid. Newfid is set
	// only for Twalk, to the Fid bound to Ifcall.Newfid.
	Fid    *Fid
	Newfid *Fid

	conn *Conn
	ctx  context.Context
	done chan struct{}
	once sync.Once
}

// Conn returns the connection this request arrived on.
func (r *Req) Conn() *Conn { return r.conn }

// Context is canceled when the request is done for any reason other
// than the Backend answering it: a Tflush naming this request's tag,
// or the connection itself going away. A Backend that defers a request
// should select on this alongside whatever it's waiting for, so it can
// abandon the work instead of calling Respond/Error on a request no one
// is listening for anymore.
func (r *Req) Context() context.Context { return r.ctx }

// Respond sends r.Ofcall, which the caller must have filled in with the
// appropriate Rxxx type and tag (Respond fills in Tag and Type from
// Ifcall if they are left zero, as a convenience). Respond is a no-op
// if the request has already been answered or flushed.
func (r *Req) Respond() {
	r.finish(func() *wire.Fcall {
		if r.Ofcall.Tag == 0 {
			r.Ofcall.Tag = r.Ifcall.Tag
		}
		if r.Ofcall.Type == 0 {
			r.Ofcall.Type = r.Ifcall.Type + 1
		}
		return r.Ofcall
	})
}

// Error replies to r with an Rerror carrying ename, deriving an errno
// for 9P2000.u connections from the standard error-string table.
func (r *Req) Error(ename string) {
	r.finish(func() *wire.Fcall {
		return wire.RerrorFor(r.Ifcall, ename, errnoFor[ename], r.conn.dotu)
	})
}

// Errorf is like Error, formatting its own ename.
func (r *Req) Errorf(format string, v ...interface{}) {
	r.Error(fmt.Sprintf(format, v...))
}

func (r *Req) finish(build func() *wire.Fcall) {
	select {
	case <-r.done:
		return // already answered or flushed
	default:
	}
	r.once.Do(func() {
		close(r.done)
		r.conn.finishReq(r, build())
	})
}
