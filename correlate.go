package alac

// correlate converts a left/right pair into the channels that get predicted.
// With leftweight 0 both channels pass through unchanged; otherwise out1 is
// the difference and out0 the right channel plus the weighted difference.
// The decoder reverses this with left = out0 + out1 - (leftweight*out1)>>shift.
func correlate(ch0, ch1 []int32, shift, leftweight uint, out0, out1 []int32) {
	if leftweight == 0 {
		copy(out0, ch0)
		copy(out1, ch1)
		return
	}
	for i := range ch0 {
		diff := int64(ch0[i]) - int64(ch1[i])
		out0[i] = ch1[i] + int32(diff*int64(leftweight)>>shift)
		out1[i] = int32(diff)
	}
}

// fits reports whether every sample is a signed bits-wide value.
func fits(samples []int32, bits uint) bool {
	lo, hi := int32(-1)<<(bits-1), int32(1)<<(bits-1)-1
	for _, s := range samples {
		if s < lo || s > hi {
			return false
		}
	}
	return true
}
