package client_test

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

func dialTestServer(t *testing.T) *client.Client {
	t.Helper()
	var l netutil.PipeListener
	srv := &server.Server{Backend: memfs.New("glenda"), AllowDotu: true}
	go srv.Serve(&l)
	t.Cleanup(func() { l.Close() })

	rwc, err := l.Dial()
	require.NoError(t, err)
	c, err := client.NewClient(rwc, client.Options{Uname: "glenda", Dotu: true})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRPCErrorOnMissingFile(t *testing.T) {
	c := dialTestServer(t)
	_, err := c.Stat("/does-not-exist")
	require.Error(t, err)

	rpcErr, ok := err.(*client.RPCError)
	require.True(t, ok, "expected an *RPCError, got %T", err)
	assert.Equal(t, wire.ErrNotFound, rpcErr.Ename)
}

func TestCdRejectsFile(t *testing.T) {
	c := dialTestServer(t)
	_, err := c.Create("/afile", 0644, wire.OREAD)
	require.NoError(t, err)

	err = c.Cd("/afile")
	assert.Error(t, err, "Cd into a non-directory must fail")
}

func TestCdIntoDirectoryThenRelativeOpen(t *testing.T) {
	c := dialTestServer(t)
	_, err := c.Create("/sub", wire.DMDIR|0755, wire.OREAD)
	require.NoError(t, err)
	f, err := c.Create("/sub/leaf", 0644, wire.ORDWR)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, c.Cd("/sub"))

	got, err := c.Stat("leaf")
	require.NoError(t, err)
	assert.Equal(t, "leaf", got.Name)
}
