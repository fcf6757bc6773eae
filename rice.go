package alac

import (
	"math/bits"

	"github.com/alicebob/alacenc/internal/bitstream"
)

// Adaptive Rice coder constants.
const (
	historyShift     = 9      // history is a mean in 9-bit fixed point
	historyClamp     = 0xFFFF // history after a residual too large to track
	zeroRunThreshold = 128    // histories below this start a zero run
	escapePrefix     = 0x1FF  // 9 one bits
	escapeAfter      = 8      // longest unary prefix before the escape code
	runSampleSize    = 16     // zero run lengths escape as 16-bit values
)

// fold maps a signed residual to an unsigned code: 0,-1,1,-2,... to 0,1,2,3,...
func fold(r int32) uint32 {
	if r >= 0 {
		return uint32(r) << 1
	}
	return uint32(-r)<<1 - 1
}

// unfold is the inverse of fold.
func unfold(u uint32) int32 {
	if u&1 == 0 {
		return int32(u >> 1)
	}
	return -int32(u>>1) - 1
}

// log2 returns the index of the highest set bit of x, or -1 for zero.
func log2(x uint32) int {
	return bits.Len32(x) - 1
}

// riceK is the code parameter for the next residual.
func riceK(history uint32) uint {
	return uint(log2(history>>historyShift + 3))
}

// zeroRunK is the code parameter for a zero run length. For history 0 it
// is 8.
func zeroRunK(history uint32) uint {
	k := bits.LeadingZeros32(history) - 24 + int((history+16)>>6)
	return uint(max(k, 0))
}

// nextHistory moves the running mean towards u, the folded residual that
// was coded as value. Values too large to track reset it to historyClamp.
func nextHistory(history, u, value, multiplier uint32) uint32 {
	if value > historyClamp {
		return historyClamp
	}
	return history + u*multiplier - (history*multiplier)>>historyShift
}

// encodeResiduals writes residuals with the adaptive Rice code. It returns
// errResidualOverflow when a residual does not fit in sampleSize bits.
func (e *Encoder) encodeResiduals(out *bitstream.Recorder, sampleSize uint, residuals []int32) error {
	var (
		history      = uint32(e.cfg.InitialHistory)
		multiplier   = uint32(e.cfg.HistoryMultiplier)
		maxK         = uint(e.cfg.MaximumK)
		limit        = uint64(1) << sampleSize
		signModifier uint32
	)

	for i := 0; i < len(residuals); {
		u := fold(residuals[i])
		if uint64(u) >= limit {
			return errResidualOverflow
		}

		k := min(riceK(history), maxK)
		value := u - signModifier
		writeResidual(out, value, k, sampleSize)
		signModifier = 0
		i++

		// The clamp tests value, not u. Right after a zero run u=0x10000 is
		// coded as 0xFFFF and still updates history.
		history = nextHistory(history, u, value, multiplier)

		if history < zeroRunThreshold && i < len(residuals) {
			k := min(zeroRunK(history), maxK)
			var zeros uint32
			for i < len(residuals) && residuals[i] == 0 {
				zeros++
				i++
			}
			writeResidual(out, zeros, k, runSampleSize)
			if zeros < historyClamp {
				signModifier = 1
			}
			history = 0
		}
	}
	return nil
}

// writeResidual writes value with Rice parameter k, escaping to a raw
// sampleSize-bit field when the unary prefix would exceed escapeAfter.
func writeResidual(out *bitstream.Recorder, value uint32, k, sampleSize uint) {
	m := uint32(1)<<k - 1
	msb := value / m
	lsb := value % m

	if msb > escapeAfter {
		out.WriteBits(9, escapePrefix)
		out.WriteBits(sampleSize, value)
		return
	}

	out.WriteUnary(uint(msb))
	if k > 1 {
		if lsb > 0 {
			out.WriteBits(k, lsb+1)
		} else {
			out.WriteBits(k-1, 0)
		}
	}
}
