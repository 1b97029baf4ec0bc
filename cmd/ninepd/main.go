// Command ninepd serves an in-memory file tree over 9P.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ninefs/ninep/auth"
	"github.com/ninefs/ninep/memfs"
	"github.com/ninefs/ninep/server"
)

func main() {
	var (
		addr     = flag.String("addr", "tcp!:564", "listen address, as network!address (unix!/path or tcp!host:port)")
		owner    = flag.String("owner", "glenda", "owner of the exported tree's root")
		msize    = flag.Uint("msize", 0, "maximum message size, 0 for the default")
		dotu     = flag.Bool("dotu", true, "allow negotiating the 9P2000.u extension")
		sockMode = flag.Uint("sockmode", 0, "chmod applied to a created unix-domain socket, octal, 0 to leave as-is")
		authmode = flag.String("authmode", "none", "authentication scheme clients must speak: none, pki, or sk1")
		user     = flag.String("user", "glenda", "user name the auth channel authenticates against")
		domain   = flag.String("domain", "", "authentication domain, for sk1")
		keyfile  = flag.String("keyfile", "", "private key file, for pki")
		debug    = flag.Bool("debug", false, "log extra detail about each connection")
	)
	flag.Parse()

	logFlags := log.LstdFlags
	if *debug {
		logFlags |= log.Lmicroseconds | log.Lshortfile
	}
	logger := log.New(os.Stderr, "ninepd: ", logFlags)

	creds := auth.Credentials{User: *user, Authmode: *authmode, Domain: *domain, Keyfile: *keyfile}
	authBackend, err := authBackendFor(creds)
	if err != nil {
		logger.Fatal(err)
	}

	srv := &server.Server{
		Backend:     memfs.New(*owner),
		AuthBackend: authBackend,
		Msize:       uint32(*msize),
		AllowDotu:   *dotu,
		SocketMode:  os.FileMode(*sockMode),
		Logger:      logger,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(*addr); err != nil {
		logger.Fatal(err)
	}
}

// authBackendFor builds the AuthBackend implied by creds.Authmode. The
// "pki"/"sk1" cases wire the exchange's shape (afid bytes in, user name
// out) through to Credentials.Token; they don't themselves implement
// the cryptographic verification a real authentication server performs
// for those schemes, which remains an external collaborator.
func authBackendFor(creds auth.Credentials) (server.AuthBackend, error) {
	switch creds.Authmode {
	case "", "none":
		return nil, nil
	case "pki", "sk1":
		return auth.TokenFunc(func(token []byte) (string, error) {
			if len(token) == 0 {
				return "", fmt.Errorf("ninepd: empty %s token", creds.Authmode)
			}
			return creds.User, nil
		}), nil
	default:
		return nil, fmt.Errorf("ninepd: unknown authmode %q", creds.Authmode)
	}
}
