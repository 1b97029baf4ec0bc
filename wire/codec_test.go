package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, dotu bool, f *Fcall) *Fcall {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf, dotu)
	require.NoError(t, enc.Send(f))

	dec := NewDecoder(&buf, DefaultMsize, dotu)
	got, err := dec.Recv()
	require.NoError(t, err)
	return got
}

func TestEncodeDecodeTversion(t *testing.T) {
	f := &Fcall{Type: Tversion, Tag: NOTAG, Msize: 8192, Version: VersionClassic}
	got := roundTrip(t, false, f)
	assert.Equal(t, f.Msize, got.Msize)
	assert.Equal(t, f.Version, got.Version)
	assert.Equal(t, f.Tag, got.Tag)
}

func TestEncodeDecodeTwalk(t *testing.T) {
	f := &Fcall{Type: Twalk, Tag: 1, Fid: 1, Newfid: 2, Wname: []string{"usr", "glenda"}}
	got := roundTrip(t, false, f)
	assert.Equal(t, f.Fid, got.Fid)
	assert.Equal(t, f.Newfid, got.Newfid)
	assert.Equal(t, f.Wname, got.Wname)
}

func TestEncodeDecodeTattachDotu(t *testing.T) {
	f := &Fcall{Type: Tattach, Tag: 1, Fid: 1, Afid: NOFID, Uname: "glenda", Aname: "", Uidnum: 42}
	got := roundTrip(t, true, f)
	assert.Equal(t, f.Uname, got.Uname)
	assert.Equal(t, uint32(42), got.Uidnum)

	// without dotu, uidnum is neither sent nor expected back
	got2 := roundTrip(t, false, f)
	assert.Equal(t, uint32(0), got2.Uidnum)
}

func TestEncodeDecodeRerrorDotu(t *testing.T) {
	f := &Fcall{Type: Rerror, Tag: 1, Ename: ErrPermDenied, Errno: 13}
	got := roundTrip(t, true, f)
	assert.Equal(t, ErrPermDenied, got.Ename)
	assert.Equal(t, uint32(13), got.Errno)
}

func TestEncodeDecodeRreadData(t *testing.T) {
	data := []byte("hello, 9p")
	f := &Fcall{Type: Rread, Tag: 1, Data: data}
	got := roundTrip(t, false, f)
	assert.Equal(t, data, got.Data)
}

func TestDirRoundTripViaDecodeDirs(t *testing.T) {
	d := Dir{
		Qid:    Qid{Type: QTDIR, Path: 7},
		Mode:   DMDIR | 0755,
		Atime:  time.Unix(1000, 0),
		Mtime:  time.Unix(2000, 0),
		Name:   "bin",
		Uid:    "glenda",
		Gid:    "glenda",
		Muid:   "glenda",
		Dotu:   true,
		Uidnum: 1, Gidnum: 1, Muidnum: 1,
	}
	rec := EncodeDir(d)

	dirs, err := DecodeDirs(rec, true)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, d.Name, dirs[0].Name)
	assert.Equal(t, d.Qid, dirs[0].Qid)
	assert.Equal(t, d.Uidnum, dirs[0].Uidnum)
}

func TestDecodeDirsConcatenated(t *testing.T) {
	a := EncodeDir(Dir{Qid: Qid{Path: 1}, Name: "a"})
	b := EncodeDir(Dir{Qid: Qid{Path: 2}, Name: "b"})
	dirs, err := DecodeDirs(append(a, b...), false)
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "a", dirs[0].Name)
	assert.Equal(t, "b", dirs[1].Name)
}

func TestDecodeRejectsOversizeMessage(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, false)
	require.NoError(t, enc.Send(&Fcall{Type: Tversion, Tag: NOTAG, Msize: 8192, Version: VersionClassic}))

	dec := NewDecoder(&buf, 4, false) // msize smaller than the message
	_, err := dec.Recv()
	assert.Equal(t, ErrMaxSize, err)
}

func TestDecodeTwalkTooManyElements(t *testing.T) {
	names := make([]string, MaxWElem+1)
	for i := range names {
		names[i] = "x"
	}
	f := &Fcall{Type: Twalk, Tag: 1, Fid: 1, Newfid: 2, Wname: names}

	var buf bytes.Buffer
	enc := NewEncoder(&buf, false)
	require.NoError(t, enc.Send(f))

	dec := NewDecoder(&buf, DefaultMsize, false)
	_, err := dec.Recv()
	var fe FormatError
	assert.ErrorAs(t, err, &fe)
}
