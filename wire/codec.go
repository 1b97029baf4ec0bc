package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ninefs/ninep/internal/bin"
)

// An Encoder writes Fcall values to an underlying stream, framing each
// one with its little-endian size[4] prefix. An Encoder is safe for
// concurrent use: writes are serialized so that two goroutines sending
// on the same connection never interleave a single message's bytes.
type Encoder struct {
	mu   sync.Mutex
	w    io.Writer
	dotu bool
}

// NewEncoder returns an Encoder that writes to w. dotu selects whether
// messages are packed with the 9P2000.u extension fields.
func NewEncoder(w io.Writer, dotu bool) *Encoder {
	return &Encoder{w: w, dotu: dotu}
}

// SetDotu changes whether subsequent messages are packed with the .u
// extension fields, once a connection's Tversion negotiation completes.
func (e *Encoder) SetDotu(dotu bool) {
	e.mu.Lock()
	e.dotu = dotu
	e.mu.Unlock()
}

// Send encodes and writes f, prefixed with its size.
func (e *Encoder) Send(f *Fcall) error {
	var buf bytes.Buffer
	ew := &bin.ErrWriter{W: &buf}
	packBody(ew, f, e.dotu)
	if ew.Err != nil {
		return ew.Err
	}

	size := uint32(buf.Len() + 4 + 1 + 2)
	e.mu.Lock()
	defer e.mu.Unlock()

	hw := &bin.ErrWriter{W: e.w}
	bin.PutHeader(hw, size, f.Type, f.Tag)
	hw.Write(buf.Bytes())
	return hw.Err
}

func packBody(w *bin.ErrWriter, f *Fcall, dotu bool) {
	switch f.Type {
	case Tversion, Rversion:
		bin.PutUint32(w, f.Msize)
		bin.PutString(w, f.Version)
	case Tauth:
		bin.PutUint32(w, f.Afid)
		bin.PutString(w, f.Uname, f.Aname)
		if dotu {
			bin.PutUint32(w, f.Uidnum)
		}
	case Rauth:
		putQid(w, f.Qid)
	case Tattach:
		bin.PutUint32(w, f.Fid, f.Afid)
		bin.PutString(w, f.Uname, f.Aname)
		if dotu {
			bin.PutUint32(w, f.Uidnum)
		}
	case Rattach:
		putQid(w, f.Qid)
	case Rerror:
		bin.PutString(w, f.Ename)
		if dotu {
			bin.PutUint32(w, f.Errno)
		}
	case Tflush:
		bin.PutUint16(w, f.Oldtag)
	case Rflush:
	case Twalk:
		bin.PutUint32(w, f.Fid, f.Newfid)
		bin.PutUint16(w, uint16(len(f.Wname)))
		bin.PutString(w, f.Wname...)
	case Rwalk:
		bin.PutUint16(w, uint16(len(f.Wqid)))
		for _, q := range f.Wqid {
			putQid(w, q)
		}
	case Topen:
		bin.PutUint32(w, f.Fid)
		bin.PutUint8(w, f.Mode)
	case Ropen, Rcreate:
		putQid(w, f.Qid)
		bin.PutUint32(w, f.Iounit)
	case Tcreate:
		bin.PutUint32(w, f.Fid)
		bin.PutString(w, f.Name)
		bin.PutUint32(w, f.Perm)
		bin.PutUint8(w, f.Mode)
		if dotu {
			bin.PutString(w, f.Extension)
		}
	case Tread:
		bin.PutUint32(w, f.Fid)
		bin.PutUint64(w, f.Offset)
		bin.PutUint32(w, f.Count)
	case Rread:
		bin.PutUint32(w, uint32(len(f.Data)))
		w.Write(f.Data)
	case Twrite:
		bin.PutUint32(w, f.Fid)
		bin.PutUint64(w, f.Offset)
		bin.PutUint32(w, uint32(len(f.Data)))
		w.Write(f.Data)
	case Rwrite:
		bin.PutUint32(w, f.Count)
	case Tclunk, Tremove, Tstat:
		bin.PutUint32(w, f.Fid)
	case Rclunk, Rremove, Rwstat:
	case Rstat:
		putStatField(w, f.Stat, dotu)
	case Twstat:
		bin.PutUint32(w, f.Fid)
		putStatField(w, f.Stat, dotu)
	default:
		if w.Err == nil {
			w.Err = FormatError(fmt.Sprintf("wire: unknown message type %d", f.Type))
		}
	}
}

func putQid(w *bin.ErrWriter, q Qid) {
	bin.PutUint8(w, q.Type)
	bin.PutUint32(w, q.Version)
	bin.PutUint64(w, q.Path)
}

// EncodeDir encodes d as a self-describing Dir record: a leading
// size[2] followed by the fields named in that size. Concatenating
// several such records (as the dispatcher does for a directory read)
// produces a stream a decoder can split back into individual records
// without any outer framing.
func EncodeDir(d Dir) []byte {
	var body bytes.Buffer
	w := &bin.ErrWriter{W: &body}
	putStatBody(w, d, d.Dotu)

	var out bytes.Buffer
	ow := &bin.ErrWriter{W: &out}
	bin.PutUint16(ow, uint16(body.Len()))
	ow.Write(body.Bytes())
	return out.Bytes()
}

func putStatField(w *bin.ErrWriter, d Dir, dotu bool) {
	w.Write(EncodeDir(Dir{
		Type: d.Type, Dev: d.Dev, Qid: d.Qid, Mode: d.Mode,
		Atime: d.Atime, Mtime: d.Mtime, Length: d.Length,
		Name: d.Name, Uid: d.Uid, Gid: d.Gid, Muid: d.Muid,
		Dotu: dotu, Extension: d.Extension, Uidnum: d.Uidnum,
		Gidnum: d.Gidnum, Muidnum: d.Muidnum,
	}))
}

func putStatBody(w *bin.ErrWriter, d Dir, dotu bool) {
	bin.PutUint16(w, d.Type)
	bin.PutUint32(w, d.Dev)
	putQid(w, d.Qid)
	bin.PutUint32(w, d.Mode)
	bin.PutUint32(w, uint32(d.Atime.Unix()))
	bin.PutUint32(w, uint32(d.Mtime.Unix()))
	bin.PutUint64(w, d.Length)
	bin.PutString(w, d.Name, d.Uid, d.Gid, d.Muid)
	if dotu {
		bin.PutString(w, d.Extension)
		bin.PutUint32(w, d.Uidnum, d.Gidnum, d.Muidnum)
	}
}

// A Decoder reads a stream of Fcall values from an underlying
// io.Reader. A Decoder is not safe for concurrent use; serialize calls
// to Recv through a single goroutine or a mutex.
type Decoder struct {
	r     *bufio.Reader
	msize uint32
	dotu  bool
}

// NewDecoder returns a Decoder reading from r. msize bounds the size of
// any single message; a message whose declared size exceeds msize is
// rejected with ErrMaxSize. dotu selects whether messages are unpacked with the
// 9P2000.u extension fields.
func NewDecoder(r io.Reader, msize uint32, dotu bool) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, int(msize)), msize: msize, dotu: dotu}
}

// SetDotu changes whether subsequent messages are unpacked with the .u
// extension fields.
func (d *Decoder) SetDotu(dotu bool) { d.dotu = dotu }

// SetMsize changes the maximum accepted message size, once a
// Tversion/Rversion negotiation has settled on a value.
func (d *Decoder) SetMsize(msize uint32) { d.msize = msize }

// Recv reads and decodes the next Fcall from the stream. It returns
// io.EOF if the peer closed the connection cleanly between messages,
// and io.ErrUnexpectedEOF if it closed mid-message.
func (d *Decoder) Recv() (*Fcall, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return nil, err
	}
	size := bin.Uint32(hdr[:])
	if size < MinMsgSize {
		return nil, FormatError("message too small")
	}
	if d.msize != 0 && size > d.msize {
		return nil, ErrMaxSize
	}

	body := make([]byte, size-4)
	if _, err := io.ReadFull(d.r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	mtype := body[0]
	tag := bin.Uint16(body[1:3])
	f, err := unpackBody(mtype, tag, body[3:], d.dotu)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func unpackBody(mtype uint8, tag uint16, b []byte, dotu bool) (*Fcall, error) {
	f := &Fcall{Type: mtype, Tag: tag}
	r := newFieldReader(b)

	switch mtype {
	case Tversion, Rversion:
		f.Msize = r.u32()
		f.Version = r.str()
	case Tauth:
		f.Afid = r.u32()
		f.Uname = r.str()
		f.Aname = r.str()
		if dotu && r.remaining() >= 4 {
			f.Uidnum = r.u32()
		}
	case Rauth:
		f.Qid = r.qid()
	case Tattach:
		f.Fid = r.u32()
		f.Afid = r.u32()
		f.Uname = r.str()
		f.Aname = r.str()
		if dotu && r.remaining() >= 4 {
			f.Uidnum = r.u32()
		}
	case Rattach:
		f.Qid = r.qid()
	case Rerror:
		f.Ename = r.str()
		if dotu && r.remaining() >= 4 {
			f.Errno = r.u32()
		}
	case Tflush:
		f.Oldtag = r.u16()
	case Rflush:
	case Twalk:
		f.Fid = r.u32()
		f.Newfid = r.u32()
		n := r.u16()
		if int(n) > MaxWElem {
			return nil, FormatError("too many walk elements")
		}
		f.Wname = make([]string, n)
		for i := range f.Wname {
			f.Wname[i] = r.str()
		}
	case Rwalk:
		n := r.u16()
		f.Wqid = make([]Qid, n)
		for i := range f.Wqid {
			f.Wqid[i] = r.qid()
		}
	case Topen:
		f.Fid = r.u32()
		f.Mode = r.u8()
	case Ropen, Rcreate:
		f.Qid = r.qid()
		f.Iounit = r.u32()
	case Tcreate:
		f.Fid = r.u32()
		f.Name = r.str()
		f.Perm = r.u32()
		f.Mode = r.u8()
		if dotu && r.remaining() > 0 {
			f.Extension = r.str()
		}
	case Tread:
		f.Fid = r.u32()
		f.Offset = r.u64()
		f.Count = r.u32()
	case Rread:
		n := r.u32()
		f.Data = r.bytes(int(n))
	case Twrite:
		f.Fid = r.u32()
		f.Offset = r.u64()
		n := r.u32()
		f.Data = r.bytes(int(n))
	case Rwrite:
		f.Count = r.u32()
	case Tclunk, Tremove, Tstat:
		f.Fid = r.u32()
	case Rclunk, Rremove, Rwstat:
	case Rstat:
		f.Stat = r.dir(dotu)
	case Twstat:
		f.Fid = r.u32()
		f.Stat = r.dir(dotu)
	default:
		return nil, FormatError(fmt.Sprintf("wire: unknown message type %d", mtype))
	}

	if r.err != nil {
		return nil, r.err
	}
	return f, nil
}

// DecodeDirs splits a byte stream produced by concatenating EncodeDir
// records (as returned by a directory Tread) back into individual Dir
// values. It never splits a record across the returned slice; if b
// ends mid-record, DecodeDirs returns what it could parse along with
// an error.
func DecodeDirs(b []byte, dotu bool) ([]Dir, error) {
	var dirs []Dir
	for len(b) > 0 {
		if len(b) < 2 {
			return dirs, FormatError("short stat record")
		}
		n := int(bin.Uint16(b))
		if len(b) < 2+n {
			return dirs, FormatError("truncated stat record")
		}
		r := newFieldReader(b[2 : 2+n])
		dirs = append(dirs, r.dir(dotu))
		if r.err != nil {
			return dirs, r.err
		}
		b = b[2+n:]
	}
	return dirs, nil
}

// fieldReader walks sequential fields out of a message body. A short
// read sets err once and all further reads become no-ops returning
// zero values, mirroring bin.ErrWriter's deferred-error style for
// decoding.
type fieldReader struct {
	b   []byte
	err error
}

func newFieldReader(b []byte) *fieldReader { return &fieldReader{b: b} }

func (r *fieldReader) remaining() int { return len(r.b) }

func (r *fieldReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.b) < n {
		r.err = FormatError("short message field")
		return false
	}
	return true
}

func (r *fieldReader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v
}

func (r *fieldReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := bin.Uint16(r.b)
	r.b = r.b[2:]
	return v
}

func (r *fieldReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := bin.Uint32(r.b)
	r.b = r.b[4:]
	return v
}

func (r *fieldReader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := bin.Uint64(r.b)
	r.b = r.b[8:]
	return v
}

func (r *fieldReader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *fieldReader) str() string {
	n := r.u16()
	if r.err != nil {
		return ""
	}
	return string(r.bytes(int(n)))
}

func (r *fieldReader) qid() Qid {
	if !r.need(QidLen) {
		return Qid{}
	}
	q := Qid{Type: r.b[0], Version: bin.Uint32(r.b[1:5]), Path: bin.Uint64(r.b[5:13])}
	r.b = r.b[QidLen:]
	return q
}

func (r *fieldReader) dir(dotu bool) Dir {
	var d Dir
	d.Type = r.u16()
	d.Dev = r.u32()
	d.Qid = r.qid()
	d.Mode = r.u32()
	d.Atime = time.Unix(int64(r.u32()), 0)
	d.Mtime = time.Unix(int64(r.u32()), 0)
	d.Length = r.u64()
	d.Name = r.str()
	d.Uid = r.str()
	d.Gid = r.str()
	d.Muid = r.str()
	if dotu {
		d.Dotu = true
		d.Extension = r.str()
		d.Uidnum = r.u32()
		d.Gidnum = r.u32()
		d.Muidnum = r.u32()
	}
	return d
}
