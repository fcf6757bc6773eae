// Package bitstream records MSB-first bit fields into memory.
//
// A Recorder is used both as the frameset output sink and as the scratch
// buffer for trial encodes: sibling recorders are compared with Len and the
// winner is spliced into its parent with Append.
package bitstream

import (
	"errors"
	"io"
)

// ErrUnaligned is returned by WriteTo when the recorder holds a partial byte.
var ErrUnaligned = errors.New("bitstream: recorder is not byte aligned")

// Recorder accumulates bits, most significant bit first.
type Recorder struct {
	buf   []byte
	acc   uint64 // pending bits, right-aligned
	nbits uint   // number of pending bits in acc (0-7 between calls)
}

// Reset discards all recorded bits, keeping the allocated storage.
func (r *Recorder) Reset() {
	r.buf = r.buf[:0]
	r.acc = 0
	r.nbits = 0
}

// Len returns the number of bits written since the last Reset.
func (r *Recorder) Len() int {
	return len(r.buf)*8 + int(r.nbits)
}

// WriteBits writes the low n bits of v. n must be at most 32.
func (r *Recorder) WriteBits(n uint, v uint32) {
	if n == 0 {
		return
	}
	r.acc = r.acc<<n | uint64(v)&(1<<n-1)
	r.nbits += n
	for r.nbits >= 8 {
		r.nbits -= 8
		r.buf = append(r.buf, byte(r.acc>>r.nbits))
	}
	r.acc &= 1<<r.nbits - 1
}

// WriteBit writes a single bit.
func (r *Recorder) WriteBit(b bool) {
	if b {
		r.WriteBits(1, 1)
	} else {
		r.WriteBits(1, 0)
	}
}

// WriteSigned writes v as an n-bit two's complement field.
func (r *Recorder) WriteSigned(n uint, v int32) {
	r.WriteBits(n, uint32(v))
}

// WriteUnary writes n one bits followed by a terminating zero bit.
func (r *Recorder) WriteUnary(n uint) {
	for n >= 32 {
		r.WriteBits(32, 0xFFFFFFFF)
		n -= 32
	}
	r.WriteBits(n+1, uint32(1<<(n+1)-2))
}

// ByteAlign pads with zero bits up to the next byte boundary.
func (r *Recorder) ByteAlign() {
	if r.nbits > 0 {
		r.WriteBits(8-r.nbits, 0)
	}
}

// Aligned reports whether the recorder ends on a byte boundary.
func (r *Recorder) Aligned() bool {
	return r.nbits == 0
}

// Append writes every bit recorded in src to r. src is left untouched.
func (r *Recorder) Append(src *Recorder) {
	if r.nbits == 0 {
		r.buf = append(r.buf, src.buf...)
	} else {
		for _, b := range src.buf {
			r.WriteBits(8, uint32(b))
		}
	}
	r.WriteBits(src.nbits, uint32(src.acc))
}

// Bytes returns the recorded bytes. A trailing partial byte is returned
// zero padded, without changing the recorder.
func (r *Recorder) Bytes() []byte {
	if r.nbits == 0 {
		return r.buf
	}
	out := make([]byte, len(r.buf), len(r.buf)+1)
	copy(out, r.buf)
	return append(out, byte(r.acc<<(8-r.nbits)))
}

// WriteTo writes the recorded bytes to w. The recorder must be byte aligned.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	if r.nbits != 0 {
		return 0, ErrUnaligned
	}
	n, err := w.Write(r.buf)
	return int64(n), err
}
