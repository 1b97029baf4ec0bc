// Package bin provides little-endian bit-packing helpers shared by the
// wire codec. Callers are expected to size their buffers correctly;
// these functions extend their argument slice/writer by the amount of
// data encoded and never attempt to recover from a short buffer.
package bin

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
)

// An ErrWriter defers error checking across several successive writes
// to an underlying io.Writer. Once Err is set, subsequent Write calls
// are no-ops, so a caller can pack an entire message and check Err
// exactly once at the end.
type ErrWriter struct {
	W   io.Writer
	Err error
	N   int
}

func (w *ErrWriter) Write(p []byte) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err := w.W.Write(p)
	w.Err = err
	w.N += n
	return n, err
}

func (w *ErrWriter) WriteByte(v byte) error {
	if w.Err != nil {
		return w.Err
	}
	if wb, ok := w.W.(io.ByteWriter); ok {
		w.Err = wb.WriteByte(v)
		if w.Err == nil {
			w.N++
		}
		return w.Err
	}
	var buf [1]byte
	buf[0] = v
	n, err := w.W.Write(buf[:])
	w.N += n
	w.Err = err
	return err
}

var bufPool = sync.Pool{
	New: func() interface{} { return make([]byte, 8) },
}

// PutUint8 writes a single byte.
func PutUint8(w *ErrWriter, v uint8) {
	w.WriteByte(v)
}

// PutUint16 writes v as a little-endian uint16.
func PutUint16(w *ErrWriter, v uint16) {
	buf := bufPool.Get().([]byte)
	binary.LittleEndian.PutUint16(buf[:2], v)
	w.Write(buf[:2])
	bufPool.Put(buf)
}

// PutUint32 writes each value in v as a little-endian uint32, in order.
func PutUint32(w *ErrWriter, v ...uint32) {
	buf := bufPool.Get().([]byte)
	for _, vv := range v {
		binary.LittleEndian.PutUint32(buf[:4], vv)
		w.Write(buf[:4])
	}
	bufPool.Put(buf)
}

// PutUint64 writes v as a little-endian uint64.
func PutUint64(w *ErrWriter, v uint64) {
	buf := bufPool.Get().([]byte)
	binary.LittleEndian.PutUint64(buf[:8], v)
	w.Write(buf[:8])
	bufPool.Put(buf)
}

// PutString writes each string in s as a 9P string: a uint16 byte
// count followed by the raw bytes. It panics if a string is longer
// than fits in a uint16, which a caller should have validated against
// the relevant Max*Len constant before reaching here.
func PutString(w *ErrWriter, s ...string) {
	for _, ss := range s {
		if len(ss) > math.MaxUint16 {
			panic("bin: string too long to encode")
		}
		PutUint16(w, uint16(len(ss)))
		io.WriteString(w, ss)
	}
}

// PutBytes writes p as a 9P string: a uint16 byte count followed by
// the raw bytes.
func PutBytes(w *ErrWriter, p []byte) {
	if len(p) > math.MaxUint16 {
		panic("bin: byte slice too long to encode")
	}
	PutUint16(w, uint16(len(p)))
	w.Write(p)
}

// PutQidBytes writes the raw 13-byte wire encoding of each qid.
func PutQidBytes(w *ErrWriter, qids ...[13]byte) {
	for _, q := range qids {
		w.Write(q[:])
	}
}

// PutHeader writes the common size[4] type[1] tag[2] message header,
// followed by any trailing fixed-width uint32 fields (e.g. Twalk's
// fid/newfid).
func PutHeader(w *ErrWriter, size uint32, mtype uint8, tag uint16, extra ...uint32) {
	PutUint32(w, size)
	PutUint8(w, mtype)
	PutUint16(w, tag)
	PutUint32(w, extra...)
}

// Uint16 decodes a little-endian uint16 from the front of b.
func Uint16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// Uint32 decodes a little-endian uint32 from the front of b.
func Uint32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// Uint64 decodes a little-endian uint64 from the front of b.
func Uint64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }
