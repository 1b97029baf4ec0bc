package server

import (
	"hash/fnv"
	"io"

	"github.com/ninefs/ninep/wire"
)

func (c *Conn) allocFid(num uint32) (*Fid, bool) {
	if _, dup := c.fids[num]; dup {
		return nil, false
	}
	f := &Fid{Num: num, omode: noMode}
	c.fids[num] = f
	return f, true
}

func authQid() wire.Qid {
	h := fnv.New64a()
	io.WriteString(h, "#a")
	return wire.Qid{Type: wire.QTAUTH, Path: h.Sum64()}
}

func (c *Conn) handleAuth(r *Req) {
	if c.srv.AuthBackend == nil {
		r.Error(wire.ErrAuthNotRequired)
		return
	}
	fid, ok := c.allocFid(r.Ifcall.Afid)
	if !ok {
		r.Error(wire.ErrDupFid)
		return
	}
	ch, err := c.srv.AuthBackend.NewChannel(r.Ifcall.Uname, r.Ifcall.Aname)
	if err != nil {
		delete(c.fids, r.Ifcall.Afid)
		r.Error(err.Error())
		return
	}
	fid.auth = true
	fid.Qid = authQid()
	fid.Aux = ch
	r.Fid = fid
	r.Ofcall = &wire.Fcall{Type: wire.Rauth, Tag: r.Ifcall.Tag, Qid: fid.Qid}
	r.Respond()
}

func (c *Conn) handleAttach(r *Req) {
	fid, ok := c.allocFid(r.Ifcall.Fid)
	if !ok {
		r.Error(wire.ErrDupFid)
		return
	}

	if r.Ifcall.Afid != wire.NOFID {
		afid, ok := c.fids[r.Ifcall.Afid]
		if !ok {
			delete(c.fids, r.Ifcall.Fid)
			r.Error(wire.ErrUnknownFid)
			return
		}
		ch, _ := afid.Aux.(Channel)
		uname, done := "", false
		if ch != nil {
			uname, done = ch.Done()
		}
		if !done || uname != r.Ifcall.Uname {
			delete(c.fids, r.Ifcall.Fid)
			r.Errorf("not authenticated as %q", r.Ifcall.Uname)
			return
		}
	} else if c.srv.AuthBackend != nil {
		delete(c.fids, r.Ifcall.Fid)
		r.Error("authentication not complete")
		return
	}

	fid.Uid = r.Ifcall.Uname
	c.uname = r.Ifcall.Uname
	r.Fid = fid

	if be, ok := c.srv.Backend.(AttachBackend); ok {
		be.Attach(c, r)
		return
	}
	fid.Qid = wire.Qid{Type: wire.QTDIR}
	r.Ofcall = &wire.Fcall{Type: wire.Rattach, Tag: r.Ifcall.Tag, Qid: fid.Qid}
	r.Respond()
}

func (c *Conn) handleWalk(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	if fid.Opened() {
		r.Error("cannot clone open fid")
		return
	}
	if len(r.Ifcall.Wname) > 0 && !fid.Qid.IsDir() {
		r.Error(wire.ErrWalkNondir)
		return
	}
	r.Fid = fid

	if r.Ifcall.Fid == r.Ifcall.Newfid {
		fid.ref()
		r.Newfid = fid
	} else {
		if _, dup := c.fids[r.Ifcall.Newfid]; dup {
			r.Error(wire.ErrDupFid)
			return
		}
		nf := fid.clone(r.Ifcall.Newfid)
		nf.omode = noMode
		nf.auth = false
		nf.refs = 0
		c.fids[r.Ifcall.Newfid] = nf
		r.Newfid = nf
	}

	if len(r.Ifcall.Wname) == 0 {
		r.Newfid.Qid = fid.Qid
		r.Ofcall = &wire.Fcall{Type: wire.Rwalk, Tag: r.Ifcall.Tag}
		r.Respond()
		return
	}
	c.srv.Backend.Walk(c, r)
}

// FinishWalk is called by a Backend's Walk implementation once
// r.Ofcall.Wqid has been populated (possibly partially). It applies
// the partial-walk rule from the wire protocol and binds the new
// fid's Qid before replying.
func (r *Req) FinishWalk() {
	c := r.conn
	wqid := r.Ofcall.Wqid
	wname := r.Ifcall.Wname

	if len(wqid) < len(wname) {
		if r.Ifcall.Fid != r.Ifcall.Newfid {
			delete(c.fids, r.Ifcall.Newfid)
		}
		if len(wqid) == 0 {
			r.Error(wire.ErrNotFound)
			return
		}
	} else if len(wqid) > 0 {
		r.Newfid.Qid = wqid[len(wqid)-1]
	}
	r.Ofcall.Type = wire.Rwalk
	r.Respond()
}

func (c *Conn) handleOpen(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	if fid.Opened() {
		r.Error(wire.ErrBotch)
		return
	}
	if fid.Qid.IsDir() {
		if r.Ifcall.Mode&^wire.ORCLOSE != wire.OREAD {
			r.Error(wire.ErrIsDir)
			return
		}
	}
	r.Fid = fid
	c.srv.Backend.Open(c, r)
}

// FinishOpen is called by a Backend's Open implementation once
// r.Ofcall.Qid and r.Ofcall.Iounit have been populated, to bind the
// resulting open mode onto the fid before replying.
func (r *Req) FinishOpen() {
	r.Fid.omode = int(r.Ifcall.Mode)
	r.Fid.Qid = r.Ofcall.Qid
	if r.Fid.Qid.IsDir() {
		r.Fid.diroffset = 0
	}
	r.Ofcall.Type = wire.Ropen
	r.Respond()
}

func (c *Conn) handleCreate(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	if fid.Opened() {
		r.Error(wire.ErrBotch)
		return
	}
	if !fid.Qid.IsDir() {
		r.Error(wire.ErrCreateNondir)
		return
	}
	r.Fid = fid
	c.srv.Backend.Create(c, r)
}

// FinishCreate mirrors FinishOpen for Tcreate: the fid is implicitly
// opened with the mode from the request once creation succeeds.
func (r *Req) FinishCreate() {
	r.Fid.omode = int(r.Ifcall.Mode)
	r.Fid.Qid = r.Ofcall.Qid
	r.Ofcall.Type = wire.Rcreate
	r.Respond()
}

func (c *Conn) handleRead(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	r.Fid = fid

	if fid.Qid.IsDir() && r.Ifcall.Offset != 0 && r.Ifcall.Offset != fid.diroffset {
		r.Error(wire.ErrBadOffset)
		return
	}
	if fid.IsAuth() {
		ch, _ := fid.Aux.(Channel)
		buf := make([]byte, clampCount(r.Ifcall.Count, c.msize))
		n, err := ch.Read(buf)
		if err != nil && err != io.EOF {
			r.Error(err.Error())
			return
		}
		r.Ofcall = &wire.Fcall{Type: wire.Rread, Tag: r.Ifcall.Tag, Data: buf[:n]}
		r.Respond()
		return
	}
	if !fid.Opened() {
		r.Error(wire.ErrNotOpen)
		return
	}
	mode := fid.Mode() & 3
	if mode != wire.OREAD && mode != wire.ORDWR && mode != wire.OEXEC {
		r.Error(wire.ErrBotch)
		return
	}
	r.Ifcall.Count = clampCount(r.Ifcall.Count, c.msize)
	c.srv.Backend.Read(c, r)
}

// FinishReadDir is called by a directory Backend's Read implementation
// with the full, unconditional listing of the directory's entries. The
// concatenation of their encoded records is the directory's byte
// stream; r.Ifcall.Offset is a byte position into that stream, not an
// index into dirs, so whole records that end at or before Offset are
// skipped, and the following whole records are emitted up to Count,
// never splitting a record. Once Offset reaches the end of the stream
// this returns an empty Rread, which is how a client's directory
// reader knows the listing is exhausted.
func (r *Req) FinishReadDir(dirs []wire.Dir) {
	recs := make([][]byte, len(dirs))
	for i, d := range dirs {
		d.Dotu = r.conn.dotu
		recs[i] = wire.EncodeDir(d)
	}

	off := r.Ifcall.Offset
	var data []byte
	var pos uint64
	for _, rec := range recs {
		end := pos + uint64(len(rec))
		if end <= off {
			pos = end
			continue
		}
		if pos < off {
			// Offset landed inside this record instead of on a record
			// boundary; nothing more can be served from here.
			break
		}
		if uint32(len(data)+len(rec)) > r.Ifcall.Count {
			break
		}
		data = append(data, rec...)
		pos = end
	}
	r.Fid.diroffset = off + uint64(len(data))
	r.Ofcall = &wire.Fcall{Type: wire.Rread, Tag: r.Ifcall.Tag, Data: data}
	r.Respond()
}

func clampCount(count, msize uint32) uint32 {
	max := msize - wire.IOHDRSZ
	if count > max {
		return max
	}
	return count
}

func (c *Conn) handleWrite(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	r.Fid = fid

	if fid.IsAuth() {
		ch, _ := fid.Aux.(Channel)
		n, err := ch.Write(r.Ifcall.Data)
		if err != nil {
			r.Error(err.Error())
			return
		}
		r.Ofcall = &wire.Fcall{Type: wire.Rwrite, Tag: r.Ifcall.Tag, Count: uint32(n)}
		r.Respond()
		return
	}
	if !fid.Opened() {
		r.Error(wire.ErrNotOpen)
		return
	}
	mode := fid.Mode() & 3
	if mode != wire.OWRITE && mode != wire.ORDWR {
		r.Error(wire.ErrNotOpen)
		return
	}
	if uint32(len(r.Ifcall.Data)) > c.msize-wire.IOHDRSZ {
		r.Ifcall.Data = r.Ifcall.Data[:c.msize-wire.IOHDRSZ]
	}
	c.srv.Backend.Write(c, r)
}

func (c *Conn) handleClunk(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	r.Fid = fid
	delete(c.fids, r.Ifcall.Fid)
	if fid.IsAuth() {
		r.Ofcall = &wire.Fcall{Type: wire.Rclunk, Tag: r.Ifcall.Tag}
		r.Respond()
		return
	}
	c.srv.Backend.Clunk(c, r)
}

func (c *Conn) handleRemove(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	r.Fid = fid
	delete(c.fids, r.Ifcall.Fid) // remove implies clunk even on error
	c.srv.Backend.Remove(c, r)
}

func (c *Conn) handleStat(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	r.Fid = fid
	c.srv.Backend.Stat(c, r)
}

func (c *Conn) handleWstat(r *Req) {
	fid, ok := c.fids[r.Ifcall.Fid]
	if !ok {
		r.Error(wire.ErrUnknownFid)
		return
	}
	r.Fid = fid
	c.srv.Backend.Wstat(c, r)
}
