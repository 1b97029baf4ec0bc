package server

// A Channel drives one authentication exchange to completion. The
// dispatcher routes Tread/Twrite on a QTAUTH fid to Read/Write; once
// the exchange is complete, Done returns the authenticated user name
// and true, and a subsequent Tattach naming this afid is accepted.
type Channel interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Done() (uname string, ok bool)
}

// An AuthBackend issues a Channel for a Tauth request naming uname and
// aname. A Server with no AuthBackend configured rejects every Tauth
// with "authentication not required", matching a server that has no
// use for the auth channel at all.
type AuthBackend interface {
	NewChannel(uname, aname string) (Channel, error)
}
