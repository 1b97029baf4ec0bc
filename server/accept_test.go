package server_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninefs/ninep/internal/netutil"
	"github.com/ninefs/ninep/memfs"
	"github.com/ninefs/ninep/server"
)

type tempAcceptErr struct{}

func (tempAcceptErr) Error() string   { return "temporary accept failure" }
func (tempAcceptErr) Temporary() bool { return true }

// flakyListener fails its first Accept with a temporary error, then
// delegates to a real PipeListener.
type flakyListener struct {
	*netutil.PipeListener
	failed bool
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if !l.failed {
		l.failed = true
		return nil, tempAcceptErr{}
	}
	return l.PipeListener.Accept()
}

func TestServeRetriesTemporaryAcceptError(t *testing.T) {
	fl := &flakyListener{PipeListener: &netutil.PipeListener{}}
	srv := &server.Server{Backend: memfs.New("glenda")}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(fl) }()
	t.Cleanup(func() { fl.Close() })

	// A connection made after the flaky first Accept should still be
	// served once the retry succeeds.
	conn, err := fl.Dial()
	require.NoError(t, err)
	conn.Close()

	select {
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, fl.failed)
}
