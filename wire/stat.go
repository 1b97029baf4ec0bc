package wire

import (
	"fmt"
	"os"
	"time"
)

// A Dir describes one file or directory entry, as returned by Tstat and
// carried in a directory's Tread stream. The classic wire layout is
// `size[2] type[2] dev[4] qid[13] mode[4] atime[4] mtime[4] length[8]
// name[s] uid[s] gid[s] muid[s]`; under 9P2000.u, `extension[s]
// uidnum[4] gidnum[4] muidnum[4]` are appended.
type Dir struct {
	Type uint16 // implementation-specific, opaque to the protocol
	Dev  uint32 // implementation-specific
	Qid  Qid
	Mode uint32 // DM* bits plus unix permission bits
	Atime time.Time
	Mtime time.Time
	Length uint64
	Name   string
	Uid    string
	Gid    string
	Muid   string

	// Dotu is set when this Dir carries the 9P2000.u extension fields
	// below. A Dir decoded from a classic-version connection never sets
	// this, and EncodeDir omits the extension fields accordingly.
	Dotu      bool
	Extension string // symlink target, or "b %d %d"/"c %d %d" for devices
	Uidnum    uint32
	Gidnum    uint32
	Muidnum   uint32
}

func (d Dir) String() string {
	return fmt.Sprintf("qid=%s mode=%#o length=%d name=%q uid=%q gid=%q",
		d.Qid, d.Mode, d.Length, d.Name, d.Uid, d.Gid)
}

// IsDir reports whether d describes a directory.
func (d Dir) IsDir() bool { return d.Mode&DMDIR != 0 }

// FileModeToDir translates a host os.FileMode into the DM*/permission
// bits used by Dir.Mode.
func FileModeToDir(fm os.FileMode) uint32 {
	mode := uint32(fm.Perm())
	switch {
	case fm&os.ModeDir != 0:
		mode |= DMDIR
	case fm&os.ModeSymlink != 0:
		mode |= DMSYMLINK
	case fm&os.ModeNamedPipe != 0:
		mode |= DMNAMEDPIPE
	case fm&os.ModeSocket != 0:
		mode |= DMSOCKET
	case fm&os.ModeDevice != 0:
		mode |= DMDEVICE
	}
	if fm&os.ModeAppend != 0 {
		mode |= DMAPPEND
	}
	if fm&os.ModeExclusive != 0 {
		mode |= DMEXCL
	}
	if fm&os.ModeSetuid != 0 {
		mode |= DMSETUID
	}
	if fm&os.ModeSetgid != 0 {
		mode |= DMSETGID
	}
	return mode
}

// DirModeToFileMode translates Dir.Mode bits back into a host
// os.FileMode, the inverse of FileModeToDir.
func DirModeToFileMode(mode uint32) os.FileMode {
	fm := os.FileMode(mode & 0777)
	switch {
	case mode&DMDIR != 0:
		fm |= os.ModeDir
	case mode&DMSYMLINK != 0:
		fm |= os.ModeSymlink
	case mode&DMNAMEDPIPE != 0:
		fm |= os.ModeNamedPipe
	case mode&DMSOCKET != 0:
		fm |= os.ModeSocket
	case mode&DMDEVICE != 0:
		fm |= os.ModeDevice
	}
	if mode&DMAPPEND != 0 {
		fm |= os.ModeAppend
	}
	if mode&DMEXCL != 0 {
		fm |= os.ModeExclusive
	}
	if mode&DMSETUID != 0 {
		fm |= os.ModeSetuid
	}
	if mode&DMSETGID != 0 {
		fm |= os.ModeSetgid
	}
	return fm
}

// QidTypeForMode derives the Qid.Type bits that correspond to a Dir's
// Mode, mirroring the relationship the protocol requires between a
// file's mode and the type byte of its Qid.
func QidTypeForMode(mode uint32) uint8 {
	var t uint8
	if mode&DMDIR != 0 {
		t |= QTDIR
	}
	if mode&DMAPPEND != 0 {
		t |= QTAPPEND
	}
	if mode&DMEXCL != 0 {
		t |= QTEXCL
	}
	if mode&DMAUTH != 0 {
		t |= QTAUTH
	}
	if mode&DMTMP != 0 {
		t |= QTTMP
	}
	if mode&DMSYMLINK != 0 {
		t |= QTSYMLINK
	}
	return t
}

// LongString formats d the way `ls -l` would; ninepcl's stat command
// prints it.
func (d Dir) LongString() string {
	return fmt.Sprintf("%s %8s %8s %12d %s %s",
		DirModeToFileMode(d.Mode), d.Uid, d.Gid, d.Length,
		d.Mtime.Format("Jan _2 15:04"), d.Name)
}
