//go:build linux

package auth

import (
	"errors"
	"net"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/ninefs/ninep/server"
)

var errSocketConn = errors.New("underlying connection is not a unix socket")

// PeerCredBackend builds an AuthBackend bound to a specific accepted
// Unix-domain connection, checking the process credentials the kernel
// attached to it (SO_PEERCRED) against the uname a Tauth names. A
// server accepting both TCP and Unix-domain clients constructs one of
// these per accepted unix connection and uses it only for that Conn's
// AuthBackend; aname is ignored.
func PeerCredBackend(uc *net.UnixConn) server.AuthBackend {
	return peerCredBackend{uc}
}

type peerCredBackend struct {
	uc *net.UnixConn
}

func (b peerCredBackend) NewChannel(uname, aname string) (server.Channel, error) {
	connUid, err := peerUid(b.uc)
	if err != nil {
		return nil, errSocketConn
	}
	reqUid, err := lookupUid(uname)
	if err != nil {
		return nil, err
	}
	return &peerCredChannel{uname: uname, ok: connUid == reqUid}, nil
}

// peerCredChannel never actually exchanges bytes: the credential
// check already ran in NewChannel, so Read/Write are no-ops and Done
// is immediately satisfied.
type peerCredChannel struct {
	uname string
	ok    bool
}

func (c *peerCredChannel) Write(p []byte) (int, error) { return len(p), nil }
func (c *peerCredChannel) Read(p []byte) (int, error)  { return 0, nil }

func (c *peerCredChannel) Done() (string, bool) {
	if c.ok {
		return c.uname, true
	}
	return "", false
}

func lookupUid(name string) (uint32, error) {
	pw, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(pw.Uid, 10, 32)
	return uint32(n), err
}

func peerUid(uc *net.UnixConn) (uint32, error) {
	f, err := uc.File()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	cred, err := unix.GetsockoptUcred(int(f.Fd()), unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return 0, err
	}
	return cred.Uid, nil
}
