// Package sys resolves file ownership across platforms for the parts of
// the wire format that carry user and group names: the classic
// uid/gid/muid strings on every Stat, and their numeric counterparts
// added by the .u extension.
package sys

import (
	"os"
	"os/user"
	"strconv"
)

// DefaultUid, DefaultGid and DefaultMuid are used when ownership
// information cannot be retrieved for a file.
const (
	DefaultUid  = "none"
	DefaultGid  = "none"
	DefaultMuid = "none"
)

// NoUid is the numeric uid/gid/muid reported when a backend or platform
// has no numeric identity to give, mirroring the -1 sentinel the .u
// extension uses for its uidnum/gidnum/muidnum fields.
const NoUid = 0xFFFFFFFF

type hasUid interface {
	Uid() string
}
type hasGid interface {
	Gid() string
}
type hasMuid interface {
	Muid() string
}

// FileOwner retrieves ownership information for a file. uid and gid are
// the owner and group of the file; muid is the uid of the user who
// last modified it.
//
// FileOwner tries fi and fi.Sys() against the hasUid/hasGid/hasMuid
// interfaces first, so a backend can report its own ownership model
// directly. Failing that, it falls back to the host operating system's
// notion of ownership, and finally to DefaultUid/DefaultGid/DefaultMuid.
func FileOwner(fi os.FileInfo) (uid, gid, muid string) {
	var ok bool
	if uid, gid, muid, ok = ownerInfo(fi); ok {
		return
	}
	if uid, gid, muid, ok = ownerInfo(fi.Sys()); ok {
		return
	}
	return fileOwner(fi.Sys())
}

func ownerInfo(v interface{}) (uid, gid, muid string, ok bool) {
	meets := false
	if v, ok := v.(hasUid); ok {
		meets = true
		uid = v.Uid()
		muid = v.Uid()
	}
	if v, ok := v.(hasGid); ok {
		gid = v.Gid()
	}
	if v, ok := v.(hasMuid); ok {
		muid = v.Muid()
	}
	return uid, gid, muid, meets
}

// NumericOwner resolves the numeric uid/gid for a named user and group,
// for the .u extension's uidnum/gidnum fields. NoUid is returned for
// either value that cannot be resolved on this host.
func NumericOwner(uname, gname string) (uid, gid uint32) {
	uid, gid = NoUid, NoUid
	if u, err := user.Lookup(uname); err == nil {
		if n, err := strconv.ParseUint(u.Uid, 10, 32); err == nil {
			uid = uint32(n)
		}
	}
	if g, err := user.LookupGroup(gname); err == nil {
		if n, err := strconv.ParseUint(g.Gid, 10, 32); err == nil {
			gid = uint32(n)
		}
	}
	return uid, gid
}
