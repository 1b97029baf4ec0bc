package client

import (
	"errors"
	"io"
	"path"
	"strings"

	"github.com/ninefs/ninep/wire"
)

// File is a handle returned by Open or Create: a fid walked to a path
// and opened for some mode, positioned at offset 0.
type File struct {
	c    *Client
	fid  uint32
	qid  wire.Qid
	pos  uint64
	mode uint8
}

// Qid returns the file's qid as of the walk that produced it.
func (f *File) Qid() wire.Qid { return f.qid }

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// walk resolves p (possibly empty, relative or rooted at "/") to a
// fresh fid, returning the Qids walked through.
func (c *Client) walk(p string) (fid uint32, qids []wire.Qid, err error) {
	root := c.cwd
	if strings.HasPrefix(p, "/") {
		root = c.root
	}
	elems := splitPath(p)

	newfid, ok := c.fids.Get()
	if !ok {
		return 0, nil, errors.New("client: fid pool exhausted")
	}
	rf, err := c.rpc(&wire.Fcall{Type: wire.Twalk, Fid: root, Newfid: newfid, Wname: elems})
	if err != nil {
		c.fids.Free(newfid)
		return 0, nil, err
	}
	if len(rf.Wqid) < len(elems) {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: newfid})
		c.fids.Free(newfid)
		return 0, nil, &RPCError{Ename: wire.ErrNotFound}
	}
	return newfid, rf.Wqid, nil
}

// Open walks to p and opens it with the given 9P open mode (OREAD,
// OWRITE, ORDWR, optionally combined with OTRUNC).
func (c *Client) Open(p string, mode uint8) (*File, error) {
	fid, qids, err := c.walk(p)
	if err != nil {
		return nil, err
	}
	ro, err := c.rpc(&wire.Fcall{Type: wire.Topen, Fid: fid, Mode: mode})
	if err != nil {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: fid})
		c.fids.Free(fid)
		return nil, err
	}
	q := ro.Qid
	if len(qids) > 0 {
		q = qids[len(qids)-1]
	}
	return &File{c: c, fid: fid, qid: q, mode: mode}, nil
}

// Create walks to the directory containing p, creates an entry named
// by p's final element with the given permission bits, and opens it
// with mode.
func (c *Client) Create(p string, perm uint32, mode uint8) (*File, error) {
	dir, name := path.Split(strings.TrimSuffix(p, "/"))
	fid, _, err := c.walk(dir)
	if err != nil {
		return nil, err
	}
	rc, err := c.rpc(&wire.Fcall{Type: wire.Tcreate, Fid: fid, Name: name, Perm: perm, Mode: mode})
	if err != nil {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: fid})
		c.fids.Free(fid)
		return nil, err
	}
	return &File{c: c, fid: fid, qid: rc.Qid, mode: mode}, nil
}

// Remove walks to p and removes it; the walked fid is clunked by the
// server as part of Tremove regardless of the outcome.
func (c *Client) Remove(p string) error {
	fid, _, err := c.walk(p)
	if err != nil {
		return err
	}
	_, err = c.rpc(&wire.Fcall{Type: wire.Tremove, Fid: fid})
	c.fids.Free(fid)
	return err
}

// Stat walks to p and returns its directory entry.
func (c *Client) Stat(p string) (wire.Dir, error) {
	fid, _, err := c.walk(p)
	if err != nil {
		return wire.Dir{}, err
	}
	defer func() {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: fid})
		c.fids.Free(fid)
	}()
	rs, err := c.rpc(&wire.Fcall{Type: wire.Tstat, Fid: fid})
	if err != nil {
		return wire.Dir{}, err
	}
	return rs.Stat, nil
}

// Wstat applies changes described by d to the file at p. Fields left
// at their "don't touch" sentinel values are unaffected, per the wire
// protocol's Twstat semantics.
func (c *Client) Wstat(p string, d wire.Dir) error {
	fid, _, err := c.walk(p)
	if err != nil {
		return err
	}
	defer func() {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: fid})
		c.fids.Free(fid)
	}()
	_, err = c.rpc(&wire.Fcall{Type: wire.Twstat, Fid: fid, Stat: d})
	return err
}

// Cd walks to p and, if it names a directory, makes it the client's
// new working directory.
func (c *Client) Cd(p string) error {
	fid, qids, err := c.walk(p)
	if err != nil {
		return err
	}
	if len(qids) > 0 && !qids[len(qids)-1].IsDir() {
		c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: fid})
		c.fids.Free(fid)
		return errors.New("client: not a directory")
	}
	old := c.cwd
	c.cwd = fid
	c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: old})
	c.fids.Free(old)
	return nil
}

// Close clunks the file's fid.
func (f *File) Close() error {
	_, err := f.c.rpc(&wire.Fcall{Type: wire.Tclunk, Fid: f.fid})
	f.c.fids.Free(f.fid)
	return err
}

// Read implements io.Reader, reading from the file's current offset
// and advancing it by the number of bytes returned.
func (f *File) Read(p []byte) (int, error) {
	count := uint32(len(p))
	if max := f.c.msize - wire.IOHDRSZ; count > max {
		count = max
	}
	rr, err := f.c.rpc(&wire.Fcall{Type: wire.Tread, Fid: f.fid, Offset: f.pos, Count: count})
	if err != nil {
		return 0, err
	}
	n := copy(p, rr.Data)
	f.pos += uint64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements io.Writer, writing at the file's current offset
// and advancing it by the number of bytes accepted.
func (f *File) Write(p []byte) (int, error) {
	max := int(f.c.msize - wire.IOHDRSZ)
	total := 0
	for total < len(p) {
		end := total + max
		if end > len(p) {
			end = len(p)
		}
		rw, err := f.c.rpc(&wire.Fcall{Type: wire.Twrite, Fid: f.fid, Offset: f.pos, Data: p[total:end]})
		if err != nil {
			return total, err
		}
		f.pos += uint64(rw.Count)
		total += int(rw.Count)
		if rw.Count == 0 {
			break
		}
	}
	return total, nil
}

// ReadDir reads every directory entry from an opened directory file,
// starting at the file's current offset.
func (f *File) ReadDir() ([]wire.Dir, error) {
	var all []wire.Dir
	buf := make([]byte, f.c.msize-wire.IOHDRSZ)
	for {
		n, err := f.Read(buf)
		if n == 0 {
			if err == io.EOF {
				break
			}
			return all, err
		}
		dirs, err := wire.DecodeDirs(buf[:n], f.c.dotu)
		if err != nil {
			return all, err
		}
		all = append(all, dirs...)
	}
	return all, nil
}

// Ls lists the entries of the directory named by p, or of the
// client's current working directory if p is empty.
func (c *Client) Ls(p string) ([]wire.Dir, error) {
	f, err := c.Open(p, wire.OREAD)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir()
}
