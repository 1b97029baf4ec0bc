package wire

import "fmt"

// A Qid is the server's unique identification for a file: two files on
// the same tree are the same file if and only if their Qids are equal.
type Qid struct {
	Type    uint8  // bitmask: QTDIR, QTAPPEND, QTAUTH, ...
	Version uint32 // incremented on each modification
	Path    uint64 // unique among all files in the hierarchy
}

// QidLen is the wire size of an encoded Qid.
const QidLen = 13

func (q Qid) String() string {
	return fmt.Sprintf("(%02x %d %x)", q.Type, q.Version, q.Path)
}

// IsDir reports whether q identifies a directory.
func (q Qid) IsDir() bool { return q.Type&QTDIR != 0 }
