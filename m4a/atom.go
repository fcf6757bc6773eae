package m4a

import (
	"encoding/binary"
)

// atom serializes one ISO base media box. Children are appended to the
// body; the size field is filled in by bytes.
type atom struct {
	buf []byte
}

func newAtom(typ string) *atom {
	a := &atom{buf: make([]byte, 8, 64)}
	copy(a.buf[4:], typ)
	return a
}

// newFullAtom starts a box with a version and 24-bit flags field.
func newFullAtom(typ string, version byte, flags uint32) *atom {
	a := newAtom(typ)
	a.u32(uint32(version)<<24 | flags&0xFFFFFF)
	return a
}

func (a *atom) u8(v uint8) *atom {
	a.buf = append(a.buf, v)
	return a
}

func (a *atom) u16(v uint16) *atom {
	a.buf = binary.BigEndian.AppendUint16(a.buf, v)
	return a
}

func (a *atom) u32(v uint32) *atom {
	a.buf = binary.BigEndian.AppendUint32(a.buf, v)
	return a
}

func (a *atom) str(s string) *atom {
	a.buf = append(a.buf, s...)
	return a
}

func (a *atom) zeros(n int) *atom {
	for range n {
		a.buf = append(a.buf, 0)
	}
	return a
}

func (a *atom) add(children ...[]byte) *atom {
	for _, c := range children {
		a.buf = append(a.buf, c...)
	}
	return a
}

func (a *atom) bytes() []byte {
	binary.BigEndian.PutUint32(a.buf, uint32(len(a.buf)))
	return a.buf
}

// unityMatrix is the identity transform used by mvhd and tkhd.
func (a *atom) unityMatrix() *atom {
	return a.
		u32(0x00010000).u32(0).u32(0).
		u32(0).u32(0x00010000).u32(0).
		u32(0).u32(0).u32(0x40000000)
}
