package server_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninefs/ninep/client"
	"github.com/ninefs/ninep/internal/netutil"
	"github.com/ninefs/ninep/memfs"
	"github.com/ninefs/ninep/server"
	"github.com/ninefs/ninep/wire"
)

// newTestServer starts a Server backed by memfs over an in-memory
// PipeListener and returns a Client already attached to it.
func newTestServer(t *testing.T, dotu bool) (*server.Server, *client.Client) {
	t.Helper()

	var l netutil.PipeListener
	srv := &server.Server{Backend: memfs.New("glenda"), AllowDotu: dotu}
	go srv.Serve(&l)
	t.Cleanup(func() { l.Close() })

	rwc, err := l.Dial()
	require.NoError(t, err)

	c, err := client.NewClient(rwc, client.Options{Uname: "glenda", Dotu: dotu})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return srv, c
}

func TestWriteReadRoundTrip(t *testing.T) {
	_, c := newTestServer(t, true)

	_, err := c.Create("/greeting", 0644, wire.ORDWR)
	require.NoError(t, err)

	f, err := c.Open("/greeting", wire.ORDWR)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("hello, 9p"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	f2, err := c.Open("/greeting", wire.OREAD)
	require.NoError(t, err)
	defer f2.Close()

	buf := make([]byte, 64)
	n, err = f2.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello, 9p", string(buf[:n]))
}

func TestLsAndStat(t *testing.T) {
	_, c := newTestServer(t, true)

	_, err := c.Create("/dir", wire.DMDIR|0755, wire.OREAD)
	require.NoError(t, err)
	_, err = c.Create("/dir/file", 0644, wire.OREAD)
	require.NoError(t, err)

	dirs, err := c.Ls("/dir")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "file", dirs[0].Name)

	st, err := c.Stat("/dir/file")
	require.NoError(t, err)
	assert.Equal(t, "file", st.Name)
	assert.False(t, st.IsDir())
}

func TestRemove(t *testing.T) {
	_, c := newTestServer(t, true)

	_, err := c.Create("/tmpfile", 0644, wire.OREAD)
	require.NoError(t, err)

	require.NoError(t, c.Remove("/tmpfile"))

	_, err = c.Stat("/tmpfile")
	assert.Error(t, err)
}

func TestUnknownFidIsRejected(t *testing.T) {
	_, c := newTestServer(t, true)
	_, err := c.Stat("/nonexistent")
	assert.Error(t, err)
}

func TestWstatRename(t *testing.T) {
	_, c := newTestServer(t, true)

	_, err := c.Create("/old", 0644, wire.OREAD)
	require.NoError(t, err)

	st, err := c.Stat("/old")
	require.NoError(t, err)
	st.Name = "new"
	require.NoError(t, c.Wstat("/old", st))

	_, err = c.Stat("/new")
	assert.NoError(t, err)
	_, err = c.Stat("/old")
	assert.Error(t, err)
}
