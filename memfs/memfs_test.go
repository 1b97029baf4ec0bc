package memfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninefs/ninep/internal/sys"
	"github.com/ninefs/ninep/server"
	"github.com/ninefs/ninep/wire"
)

// The Backend method set (Walk/Open/Create/Read/Write/...) is exercised
// end to end in github.com/ninefs/ninep/server's tests, since each
// method there completes a server.Req by calling Respond/Error on its
// owning Conn. The pieces below are the ones usable in isolation.

func TestNewRootNode(t *testing.T) {
	fs := New("glenda")
	n, ok := fs.lookup("/")
	require.True(t, ok)
	assert.True(t, n.dir)
	assert.Equal(t, "glenda", n.uid)
}

func TestQidForStableAcrossCalls(t *testing.T) {
	fs := New("glenda")
	q1 := fs.qidFor("/usr", true)
	q2 := fs.qidFor("/usr", true)
	assert.Equal(t, q1, q2)
	assert.True(t, q1.IsDir())
}

func TestDirOfPopulatesNumericOwner(t *testing.T) {
	fs := New("glenda")
	n, _ := fs.lookup("/")
	d := fs.dirOf(n, "/")
	assert.Equal(t, "glenda", d.Uid)
	assert.True(t, d.Mode&wire.DMDIR != 0)

	uidnum, gidnum := sys.NumericOwner("glenda", "glenda")
	assert.Equal(t, uidnum, d.Uidnum)
	assert.Equal(t, gidnum, d.Gidnum)
	assert.Equal(t, d.Uidnum, d.Muidnum)
}

func TestFidPathDefaultsToRoot(t *testing.T) {
	assert.Equal(t, "/", fidPath(&server.Fid{}))
}

func TestFidPathReadsAux(t *testing.T) {
	assert.Equal(t, "/usr/bin", fidPath(&server.Fid{Aux: "/usr/bin"}))
}
