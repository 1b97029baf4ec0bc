// Package qidpool hands out unique Qid paths for named files, so a
// Backend can give the same file the same Qid across repeated walks
// without keeping its own path allocator.
package qidpool

import (
	"sync"
	"sync/atomic"

	"github.com/ninefs/ninep/wire"
)

// A Pool maintains the name-to-Qid mapping for one file tree. The
// zero value is an empty pool.
type Pool struct {
	m    sync.Map
	path uint64
}

// New returns a new, empty Pool.
func New() *Pool {
	return &Pool{}
}

// LoadOrStore returns the Qid already associated with name, if any,
// or allocates a fresh one of the given type.
func (p *Pool) LoadOrStore(name string, qtype uint8) wire.Qid {
	if v, ok := p.m.Load(name); ok {
		return v.(wire.Qid)
	}
	path := atomic.AddUint64(&p.path, 1)
	return p.LoadOrStoreQid(name, wire.Qid{Type: qtype, Path: path})
}

// LoadOrStoreQid is LoadOrStore for a caller that already has a
// specific Qid value to associate with name.
func (p *Pool) LoadOrStoreQid(name string, qid wire.Qid) wire.Qid {
	actual, _ := p.m.LoadOrStore(name, qid)
	return actual.(wire.Qid)
}

// Del removes name from the pool. Once removed, a later LoadOrStore
// for the same name allocates a brand new Qid.
func (p *Pool) Del(name string) {
	p.m.Delete(name)
}

// Load fetches the Qid currently associated with name. The Qid is
// only valid if the second return value is true.
func (p *Pool) Load(name string) (wire.Qid, bool) {
	if v, ok := p.m.Load(name); ok {
		return v.(wire.Qid), true
	}
	return wire.Qid{}, false
}

// Rename moves the Qid associated with oldname to newname, used when
// a Backend handles Twstat renaming a file in place; the file keeps
// its identity across the rename.
func (p *Pool) Rename(oldname, newname string) {
	if v, ok := p.m.LoadAndDelete(oldname); ok {
		p.m.Store(newname, v)
	}
}
