package alac

import (
	"errors"
	"fmt"
	"math/bits"
)

// A reference ALAC decoder used to check that encoder output round-trips.
// It follows the decoding rules of Apple's decoder, including the int32
// arithmetic of the predictor.

var errShortFrame = errors.New("frameset ended early")

type bitReader struct {
	buf []byte
	pos uint // bit position
}

func (r *bitReader) peek(n uint) uint32 {
	var v uint32
	for i := range n {
		p := r.pos + i
		var b uint32
		if p/8 < uint(len(r.buf)) {
			b = uint32(r.buf[p/8]>>(7-p%8)) & 1
		}
		v = v<<1 | b
	}
	return v
}

func (r *bitReader) skip(n uint) error {
	r.pos += n
	if r.pos > uint(len(r.buf))*8 {
		return errShortFrame
	}
	return nil
}

func (r *bitReader) read(n uint) (uint32, error) {
	v := r.peek(n)
	return v, r.skip(n)
}

func (r *bitReader) readSigned(n uint) (int32, error) {
	v, err := r.read(n)
	shift := 32 - n
	return int32(v<<shift) >> shift, err
}

// readRice reads one value with parameter k and divisor m, or an escaped
// raw value of escapeBits bits.
func (r *bitReader) readRice(m, k, escapeBits uint32) (uint32, error) {
	var pre uint32
	for pre < 9 {
		b, err := r.read(1)
		if err != nil {
			return 0, err
		}
		if b == 0 {
			break
		}
		pre++
	}
	if pre == 9 {
		return r.read(uint(escapeBits))
	}
	if k <= 1 {
		return pre * m, nil
	}
	v := r.peek(uint(k))
	if v >= 2 {
		return pre*m + v - 1, r.skip(uint(k))
	}
	return pre * m, r.skip(uint(k - 1))
}

type riceParams struct {
	mb, pb, kb uint32
}

func (r *bitReader) decodeResiduals(p riceParams, n int, chanBits uint) ([]int32, error) {
	out := make([]int32, n)
	history := p.mb
	var zmode uint32

	for i := 0; i < n; {
		k := min(uint32(bits.Len32(history>>9+3)-1), p.kb)
		value, err := r.readRice(1<<k-1, k, uint32(chanBits))
		if err != nil {
			return nil, err
		}
		u := value + zmode
		out[i] = unfold(u)
		i++

		history = p.pb*u + history - (p.pb*history)>>9
		if value > 0xFFFF {
			history = 0xFFFF
		}
		zmode = 0

		if history<<2 < 512 && i < n {
			zk := max(bits.LeadingZeros32(history)-24+int((history+16)>>6), 0)
			m := (uint32(1)<<zk - 1) & (1<<p.kb - 1)
			run, err := r.readRice(m, uint32(zk), 16)
			if err != nil {
				return nil, err
			}
			if i+int(run) > n {
				return nil, fmt.Errorf("zero run of %d at %d overruns %d samples", run, i, n)
			}
			i += int(run) // out is zeroed already
			if run < 65535 {
				zmode = 1
			}
			history = 0
		}
	}
	return out, nil
}

func signOf32(x int32) int32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// unpredict rebuilds samples from residuals with the adaptive predictor.
func unpredict(res []int32, header []int16, chanBits, denShift uint) []int32 {
	n := len(res)
	out := make([]int32, n)
	coefs := append([]int16(nil), header...)
	order := len(coefs)
	chanShift := 32 - chanBits
	wrap := func(x int32) int32 { return x << chanShift >> chanShift }

	out[0] = res[0]
	if order == 0 {
		copy(out, res)
		return out
	}
	for i := 1; i <= order && i < n; i++ {
		out[i] = wrap(res[i] + out[i-1])
	}

	var denHalf int32
	if denShift > 0 {
		denHalf = 1 << (denShift - 1)
	}
	for i := order + 1; i < n; i++ {
		top := out[i-order-1]
		var sum int32
		for k, c := range coefs {
			sum += int32(c) * (out[i-1-k] - top)
		}
		del := res[i]
		out[i] = wrap(del + top + (sum+denHalf)>>denShift)

		switch sign := signOf32(del); {
		case sign > 0:
			for k := order - 1; k >= 0; k-- {
				dd := top - out[i-1-k]
				sgn := signOf32(dd)
				coefs[k] -= int16(sgn)
				del -= int32(order-k) * ((sgn * dd) >> denShift)
				if del <= 0 {
					break
				}
			}
		case sign < 0:
			for k := order - 1; k >= 0; k-- {
				dd := top - out[i-1-k]
				sgn := signOf32(dd)
				coefs[k] += int16(sgn)
				del -= int32(order-k) * ((-sgn * dd) >> denShift)
				if del >= 0 {
					break
				}
			}
		}
	}
	return out
}

// decodeFrameset decodes one frameset into per-channel samples in WAVE
// order.
func decodeFrameset(data []byte, cfg Config) ([][]int32, error) {
	r := &bitReader{buf: data}
	out := make([][]int32, cfg.NumChannels)
	layout := channelLayout[cfg.NumChannels]

	for elem := 0; ; elem++ {
		tag, err := r.read(3)
		if err != nil {
			return nil, err
		}
		if tag == elemEND {
			break
		}
		if elem >= len(layout) {
			return nil, fmt.Errorf("element %d beyond layout of %d channels", elem, cfg.NumChannels)
		}
		group := layout[elem]
		want := uint32(elemSCE)
		if len(group) == 2 {
			want = elemCPE
		}
		if tag != want {
			return nil, fmt.Errorf("element %d: tag %d, want %d", elem, tag, want)
		}

		samples, err := r.decodeElement(cfg, len(group))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", elem, err)
		}
		for i, c := range group {
			out[c] = samples[i]
		}
	}

	if r.pos%8 != 0 {
		pad, _ := r.read(8 - r.pos%8)
		if pad != 0 {
			return nil, fmt.Errorf("nonzero padding %#x", pad)
		}
	}
	if r.pos != uint(len(data))*8 {
		return nil, fmt.Errorf("%d trailing bytes", len(data)-int(r.pos/8))
	}
	for c, ch := range out {
		if ch == nil || len(ch) != len(out[0]) {
			return nil, fmt.Errorf("channel %d missing or short", c)
		}
	}
	return out, nil
}

func (r *bitReader) decodeElement(cfg Config, nch int) ([][]int32, error) {
	header, err := r.read(16)
	if err != nil {
		return nil, err
	}
	if header != 0 {
		return nil, fmt.Errorf("element header %#x, want 0", header)
	}
	partial, _ := r.read(1)
	lsbBytes, _ := r.read(2)
	uncompressed, err := r.read(1)
	if err != nil {
		return nil, err
	}
	n := uint32(cfg.FrameSize)
	if partial == 1 {
		if n, err = r.read(32); err != nil {
			return nil, err
		}
	}

	out := make([][]int32, nch)
	for c := range out {
		out[c] = make([]int32, n)
	}

	if uncompressed == 1 {
		for i := range n {
			for c := range out {
				if out[c][i], err = r.readSigned(uint(cfg.SampleSize)); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}

	shift, _ := r.read(8)
	lw, err := r.read(8)
	if err != nil {
		return nil, err
	}
	leftweight := int32(int8(lw))
	chanBits := uint(cfg.SampleSize) - uint(lsbBytes)*8 + uint(nch-1)

	type sub struct {
		mode, den, pbFactor uint32
		coefs               []int16
	}
	subs := make([]sub, nch)
	for c := range subs {
		s := &subs[c]
		s.mode, _ = r.read(4)
		s.den, _ = r.read(4)
		s.pbFactor, _ = r.read(3)
		order, err := r.read(5)
		if err != nil {
			return nil, err
		}
		for range order {
			v, err := r.readSigned(16)
			if err != nil {
				return nil, err
			}
			s.coefs = append(s.coefs, int16(v))
		}
		if s.mode != 0 {
			return nil, fmt.Errorf("prediction mode %d", s.mode)
		}
	}

	var lsbs [][]uint32
	if lsbBytes > 0 {
		lsbs = make([][]uint32, nch)
		for c := range lsbs {
			lsbs[c] = make([]uint32, n)
		}
		for i := range n {
			for c := range lsbs {
				if lsbs[c][i], err = r.read(uint(lsbBytes) * 8); err != nil {
					return nil, err
				}
			}
		}
	}

	for c, s := range subs {
		p := riceParams{
			mb: uint32(cfg.InitialHistory),
			pb: uint32(cfg.HistoryMultiplier) * s.pbFactor / 4,
			kb: uint32(cfg.MaximumK),
		}
		res, err := r.decodeResiduals(p, int(n), chanBits)
		if err != nil {
			return nil, fmt.Errorf("channel %d residuals: %w", c, err)
		}
		out[c] = unpredict(res, s.coefs, chanBits, uint(s.den))
	}

	if nch == 2 && leftweight != 0 {
		u, v := out[0], out[1]
		for i := range u {
			left := u[i] + v[i] - (leftweight*v[i])>>shift
			u[i], v[i] = left, left-v[i]
		}
	}

	for c := range lsbs {
		for i := range out[c] {
			out[c][i] = out[c][i]<<(lsbBytes*8) | int32(lsbs[c][i])
		}
	}
	return out, nil
}
