//go:build linux

package auth

import (
	"net"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeerCredBackendMatchesOwnUser(t *testing.T) {
	me, err := user.Current()
	require.NoError(t, err)

	sock := filepath.Join(t.TempDir(), "peercred.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan *net.UnixConn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c.(*net.UnixConn)
		}
	}()

	client, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer client.Close()

	uc := <-accepted
	defer uc.Close()

	be := PeerCredBackend(uc)

	ch, err := be.NewChannel(me.Username, "")
	require.NoError(t, err)
	uname, ok := ch.Done()
	assert.True(t, ok, "connecting process's own uid must match its own username")
	assert.Equal(t, me.Username, uname)

	ch2, err := be.NewChannel("root-does-not-match-nobody", "")
	if err == nil {
		_, ok := ch2.Done()
		assert.False(t, ok, "an unrelated uname must not authenticate")
	}
}
