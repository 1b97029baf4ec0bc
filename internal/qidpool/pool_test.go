package qidpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ninefs/ninep/wire"
)

func TestLoadOrStore(t *testing.T) {
	pool := New()

	q1 := pool.LoadOrStore("/foo/bar", wire.QTDIR)
	assert.Equal(t, uint8(wire.QTDIR), q1.Type)

	q2, ok := pool.Load("/foo/bar")
	assert.True(t, ok)
	assert.Equal(t, q1, q2)

	q3 := pool.LoadOrStore("/foo/bar", wire.QTDIR)
	assert.Equal(t, q1, q3, "a second LoadOrStore for the same name must return the same qid")
}

func TestDel(t *testing.T) {
	pool := New()
	q1 := pool.LoadOrStore("/foo/bar", 0)

	pool.Del("/foo/bar")
	_, ok := pool.Load("/foo/bar")
	assert.False(t, ok, "Del did not remove the qid")

	q2 := pool.LoadOrStore("/foo/bar", 0)
	assert.NotEqual(t, q1.Path, q2.Path, "a qid reallocated after Del must get a fresh path")
}

func TestRename(t *testing.T) {
	pool := New()
	q1 := pool.LoadOrStore("/foo/bar", 0)

	pool.Rename("/foo/bar", "/foo/baz")

	_, ok := pool.Load("/foo/bar")
	assert.False(t, ok, "old name must no longer resolve after Rename")

	q2, ok := pool.Load("/foo/baz")
	assert.True(t, ok, "new name must resolve after Rename")
	assert.Equal(t, q1, q2, "Rename must preserve file identity")
}

func TestLoadOrStoreQid(t *testing.T) {
	pool := New()
	want := wire.Qid{Type: wire.QTAUTH, Path: 42}

	got := pool.LoadOrStoreQid("#a", want)
	assert.Equal(t, want, got)

	again := pool.LoadOrStoreQid("#a", wire.Qid{Type: wire.QTDIR, Path: 7})
	assert.Equal(t, want, again, "LoadOrStoreQid must not overwrite an existing entry")
}
