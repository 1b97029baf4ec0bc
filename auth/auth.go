// Package auth provides Channel and AuthBackend implementations
// satisfying the server package's authentication interfaces, plus
// combinators for building one backend out of several.
package auth

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ninefs/ninep/server"
)

var errAuthFailure = errors.New("authentication failed")

// Credentials describes how a session should identify and authenticate
// a user: the name to attach as, which scheme (if any) the exchange
// over the afid should speak, and the key material that scheme needs.
// client.Dial uses it to build the bytes it writes to the afid before
// attaching; cmd/ninepd uses it to decide which AuthBackend to install.
// The cryptographic backends for "pki" and "sk1" themselves remain
// external collaborators - Credentials only carries the shape a caller
// uses to reach them.
type Credentials struct {
	User     string
	Authmode string // "", "none", "pki", or "sk1"
	Domain   string
	Keyfile  string
}

// Token renders c as the opaque bytes a TokenFunc-style AuthBackend
// expects to receive over its afid before a zero-length read ends the
// exchange. "" and "none" need no exchange at all and return nil. "pki"
// returns the keyfile's contents; "sk1" returns "user@domain".
func (c Credentials) Token() ([]byte, error) {
	switch c.Authmode {
	case "", "none":
		return nil, nil
	case "pki":
		if c.Keyfile == "" {
			return nil, errors.New("auth: pki authmode requires a keyfile")
		}
		return os.ReadFile(c.Keyfile)
	case "sk1":
		u := c.User
		if c.Domain != "" {
			u = u + "@" + c.Domain
		}
		return []byte(u), nil
	default:
		return nil, fmt.Errorf("auth: unknown authmode %q", c.Authmode)
	}
}

// bufChannel runs a one-shot exchange: the client writes some opaque
// token, and the first Read hands the buffered token to verify. Until
// that Read, Done reports false; after it, Done returns the verified
// uname.
type bufChannel struct {
	buf  bytes.Buffer
	verify func(token []byte) (uname string, err error)

	uname string
	done  bool
	err   error
}

func (c *bufChannel) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *bufChannel) Read(p []byte) (int, error) {
	if !c.done {
		c.uname, c.err = c.verify(c.buf.Bytes())
		c.done = true
	}
	if c.err != nil {
		return 0, c.err
	}
	return 0, io.EOF
}

func (c *bufChannel) Done() (string, bool) {
	if !c.done {
		return "", false
	}
	return c.uname, c.err == nil
}

// TokenFunc builds an AuthBackend that buffers whatever bytes the
// client writes to its afid and hands them to verify once the client
// reads back (a zero-length read is the conventional end-of-exchange
// signal the client package's Client.authenticate uses).
func TokenFunc(verify func(token []byte) (uname string, err error)) server.AuthBackend {
	return tokenBackend(verify)
}

type tokenBackend func(token []byte) (string, error)

func (f tokenBackend) NewChannel(uname, aname string) (server.Channel, error) {
	return &bufChannel{verify: func(token []byte) (string, error) { return f(token) }}, nil
}

// All combines multiple AuthBackends into one that succeeds only if
// every backend issues a channel without error; the resulting Channel
// authenticates only once every constituent channel reports done.
func All(backends ...server.AuthBackend) server.AuthBackend {
	return allStack(backends)
}

type allStack []server.AuthBackend

func (s allStack) NewChannel(uname, aname string) (server.Channel, error) {
	chans := make([]server.Channel, 0, len(s))
	for _, b := range s {
		ch, err := b.NewChannel(uname, aname)
		if err != nil {
			return nil, err
		}
		chans = append(chans, ch)
	}
	return &stackChannel{chans: chans, uname: uname, all: true}, nil
}

// Any combines multiple AuthBackends into one that succeeds as soon as
// any one constituent channel authenticates the user.
func Any(backends ...server.AuthBackend) server.AuthBackend {
	return anyStack(backends)
}

type anyStack []server.AuthBackend

func (s anyStack) NewChannel(uname, aname string) (server.Channel, error) {
	chans := make([]server.Channel, 0, len(s))
	for _, b := range s {
		ch, err := b.NewChannel(uname, aname)
		if err != nil {
			continue
		}
		chans = append(chans, ch)
	}
	if len(chans) == 0 {
		return nil, errAuthFailure
	}
	return &stackChannel{chans: chans, uname: uname, all: false}, nil
}

// stackChannel fans writes out to every constituent channel and
// evaluates Done according to the combinator (all must agree, or any
// one suffices).
type stackChannel struct {
	chans []server.Channel
	uname string
	all   bool
}

func (s *stackChannel) Write(p []byte) (int, error) {
	for _, ch := range s.chans {
		if _, err := ch.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (s *stackChannel) Read(p []byte) (int, error) {
	for _, ch := range s.chans {
		ch.Read(p)
	}
	return 0, io.EOF
}

func (s *stackChannel) Done() (string, bool) {
	ok := s.all
	for _, ch := range s.chans {
		_, done := ch.Done()
		if s.all {
			ok = ok && done
		} else if done {
			return s.uname, true
		}
	}
	if s.all && ok {
		return s.uname, true
	}
	return "", false
}
