// Package memfs implements an in-memory server.Backend, useful for
// tests and as a starting point for a real file-backed Backend.
package memfs

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ninefs/ninep/internal/filetree"
	"github.com/ninefs/ninep/internal/qidpool"
	"github.com/ninefs/ninep/internal/sys"
	"github.com/ninefs/ninep/server"
	"github.com/ninefs/ninep/wire"
)

// A node is the value stored in the tree for each path: a file's
// bytes, or nothing for a directory (the tree's Children do the work).
type node struct {
	mu      sync.RWMutex
	data    []byte
	uid     string
	gid     string
	modTime time.Time
	dir     bool
	perm    uint32
}

// FS is an in-memory file tree. An FS must be created with New; the
// zero value has no tree and is not usable.
type FS struct {
	mu    sync.Mutex
	tree  *filetree.Tree
	qids  *qidpool.Pool
	owner string
}

// New returns an empty FS whose root is owned by owner.
func New(owner string) *FS {
	fs := &FS{tree: filetree.New(), qids: qidpool.New(), owner: owner}
	fs.tree.Put("/", 0, &node{dir: true, uid: owner, gid: owner, modTime: time.Now(), perm: 0755})
	return fs
}

func (fs *FS) qidFor(p string, dir bool) wire.Qid {
	qtype := uint8(0)
	if dir {
		qtype = wire.QTDIR
	}
	return fs.qids.LoadOrStore(p, qtype)
}

func (fs *FS) lookup(p string) (*node, bool) {
	e, ok := fs.tree.Get(p)
	if !ok {
		return nil, false
	}
	return e.Value.(*node), true
}

func (fs *FS) dirOf(n *node, p string) wire.Dir {
	n.mu.RLock()
	defer n.mu.RUnlock()
	mode := n.perm
	if n.dir {
		mode |= wire.DMDIR
	}
	uidnum, gidnum := sys.NumericOwner(n.uid, n.gid)
	return wire.Dir{
		Qid:     fs.qidFor(p, n.dir),
		Mode:    mode,
		Atime:   n.modTime,
		Mtime:   n.modTime,
		Length:  uint64(len(n.data)),
		Name:    path.Base(p),
		Uid:     n.uid,
		Gid:     n.gid,
		Muid:    n.uid,
		Uidnum:  uidnum,
		Gidnum:  gidnum,
		Muidnum: uidnum,
	}
}

// Attach implements server.AttachBackend: every attach lands at the
// tree's root, which is owned by the owner given to New.
func (fs *FS) Attach(c *server.Conn, r *server.Req) {
	r.Fid.Qid = fs.qidFor("/", true)
	r.Ofcall = &wire.Fcall{Type: wire.Rattach, Tag: r.Ifcall.Tag, Qid: r.Fid.Qid}
	r.Respond()
}

// fidPath returns the tree path bound to a Fid. server.Fid carries no
// name of its own, so memfs stashes the resolved path in Aux when it
// binds a fid in Walk or Create and reads it back here. Attach leaves
// Aux nil, which reads back as the root.
func fidPath(f *server.Fid) string {
	if f.Aux == nil {
		return "/"
	}
	return f.Aux.(string)
}

func (fs *FS) Walk(c *server.Conn, r *server.Req) {
	base := fidPath(r.Fid)
	p := base
	var wqid []wire.Qid
	for _, name := range r.Ifcall.Wname {
		next := path.Join(p, name)
		n, ok := fs.lookup(next)
		if !ok {
			break
		}
		p = next
		wqid = append(wqid, fs.qidFor(p, n.dir))
	}
	r.Newfid.Aux = p
	r.Ofcall = &wire.Fcall{Type: wire.Rwalk, Tag: r.Ifcall.Tag, Wqid: wqid}
	r.FinishWalk()
}

func (fs *FS) Open(c *server.Conn, r *server.Req) {
	p := fidPath(r.Fid)
	n, ok := fs.lookup(p)
	if !ok {
		r.Error(wire.ErrNotFound)
		return
	}
	acc := wire.AccessModeFor(r.Ifcall.Mode)
	n.mu.RLock()
	perm, uid, gid := n.perm, n.uid, n.gid
	n.mu.RUnlock()
	if !server.HasPerm(perm, uid, gid, r.Fid.Uid, acc) {
		r.Error(wire.ErrPermDenied)
		return
	}
	if r.Ifcall.Mode&wire.OTRUNC != 0 {
		n.mu.Lock()
		n.data = nil
		n.mu.Unlock()
	}
	r.Ofcall = &wire.Fcall{Type: wire.Ropen, Tag: r.Ifcall.Tag, Qid: fs.qidFor(p, n.dir), Iounit: 0}
	r.FinishOpen()
}

func (fs *FS) Create(c *server.Conn, r *server.Req) {
	dir := fidPath(r.Fid)
	dn, ok := fs.lookup(dir)
	if !ok || !dn.dir {
		r.Error(wire.ErrCreateNondir)
		return
	}
	if !server.HasPerm(dn.perm, dn.uid, dn.gid, r.Fid.Uid, server.AWRITE) {
		r.Error(wire.ErrPermDenied)
		return
	}
	p := path.Join(dir, r.Ifcall.Name)
	isDir := r.Ifcall.Perm&wire.DMDIR != 0

	fs.mu.Lock()
	fs.tree.Put(p, 0, &node{
		dir:     isDir,
		uid:     r.Fid.Uid,
		gid:     dn.gid,
		modTime: time.Now(),
		perm:    r.Ifcall.Perm &^ wire.DMDIR,
	})
	fs.mu.Unlock()

	r.Fid.Aux = p
	r.Ofcall = &wire.Fcall{Type: wire.Rcreate, Tag: r.Ifcall.Tag, Qid: fs.qidFor(p, isDir)}
	r.FinishCreate()
}

func (fs *FS) Read(c *server.Conn, r *server.Req) {
	p := fidPath(r.Fid)
	n, ok := fs.lookup(p)
	if !ok {
		r.Error(wire.ErrNotFound)
		return
	}
	if n.dir {
		var names []string
		for name := range fs.tree.Index {
			if name != p && path.Dir(name) == p {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		var dirs []wire.Dir
		for _, name := range names {
			cn, _ := fs.lookup(name)
			dirs = append(dirs, fs.dirOf(cn, name))
		}
		r.FinishReadDir(dirs)
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	off := r.Ifcall.Offset
	if off >= uint64(len(n.data)) {
		r.Ofcall = &wire.Fcall{Type: wire.Rread, Tag: r.Ifcall.Tag}
		r.Respond()
		return
	}
	end := off + uint64(r.Ifcall.Count)
	if end > uint64(len(n.data)) {
		end = uint64(len(n.data))
	}
	r.Ofcall = &wire.Fcall{Type: wire.Rread, Tag: r.Ifcall.Tag, Data: n.data[off:end]}
	r.Respond()
}

func (fs *FS) Write(c *server.Conn, r *server.Req) {
	p := fidPath(r.Fid)
	n, ok := fs.lookup(p)
	if !ok {
		r.Error(wire.ErrNotFound)
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	off := r.Ifcall.Offset
	end := off + uint64(len(r.Ifcall.Data))
	if end > uint64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[off:end], r.Ifcall.Data)
	n.modTime = time.Now()
	r.Ofcall = &wire.Fcall{Type: wire.Rwrite, Tag: r.Ifcall.Tag, Count: uint32(len(r.Ifcall.Data))}
	r.Respond()
}

func (fs *FS) Clunk(c *server.Conn, r *server.Req) {
	r.Ofcall = &wire.Fcall{Type: wire.Rclunk, Tag: r.Ifcall.Tag}
	r.Respond()
}

func (fs *FS) Remove(c *server.Conn, r *server.Req) {
	p := fidPath(r.Fid)
	if _, ok := fs.lookup(p); !ok {
		r.Error(wire.ErrNotFound)
		return
	}
	dir, _ := path.Split(p)
	dn, ok := fs.lookup(strings.TrimSuffix(dir, "/"))
	if ok && !server.HasPerm(dn.perm, dn.uid, dn.gid, r.Fid.Uid, server.AWRITE) {
		r.Error(wire.ErrPermDenied)
		return
	}
	fs.mu.Lock()
	fs.tree.Delete(p)
	fs.mu.Unlock()
	r.Ofcall = &wire.Fcall{Type: wire.Rremove, Tag: r.Ifcall.Tag}
	r.Respond()
}

func (fs *FS) Stat(c *server.Conn, r *server.Req) {
	p := fidPath(r.Fid)
	n, ok := fs.lookup(p)
	if !ok {
		r.Error(wire.ErrNotFound)
		return
	}
	r.Ofcall = &wire.Fcall{Type: wire.Rstat, Tag: r.Ifcall.Tag, Stat: fs.dirOf(n, p)}
	r.Respond()
}

func (fs *FS) Wstat(c *server.Conn, r *server.Req) {
	p := fidPath(r.Fid)
	n, ok := fs.lookup(p)
	if !ok {
		r.Error(wire.ErrNotFound)
		return
	}
	if !server.HasPerm(n.perm, n.uid, n.gid, r.Fid.Uid, server.AWRITE) {
		r.Error(wire.ErrPermDenied)
		return
	}
	d := r.Ifcall.Stat
	n.mu.Lock()
	if d.Mode != ^uint32(0) {
		n.perm = d.Mode &^ wire.DMDIR
	}
	if d.Uid != "" {
		n.uid = d.Uid
	}
	if d.Gid != "" {
		n.gid = d.Gid
	}
	n.mu.Unlock()

	if d.Name != "" && d.Name != path.Base(p) {
		newp := path.Join(path.Dir(p), d.Name)
		fs.mu.Lock()
		e, _ := fs.tree.Get(p)
		fs.tree.Delete(p)
		fs.tree.Put(newp, e.FileMode, n)
		fs.qids.Rename(p, newp)
		fs.mu.Unlock()
		r.Fid.Aux = newp
	}

	r.Ofcall = &wire.Fcall{Type: wire.Rwstat, Tag: r.Ifcall.Tag}
	r.Respond()
}
