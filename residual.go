package alac

// truncate wraps x into a bits-wide two's complement value (1 <= bits <= 32).
func truncate(x int64, bits uint) int32 {
	shift := 64 - bits
	return int32(x << shift >> shift)
}

func signOf(x int64) int64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// calculateResiduals computes the prediction residuals of samples for the
// quantized predictor coefs. The predictor adapts its coefficients after
// every sample the same way the decoder does; the adaptation happens on
// working, a copy of coefs, so coefs stays equal to what goes into the
// subframe header.
func calculateResiduals(samples []int32, sampleSize uint, coefs, working, residuals []int32) {
	order := len(coefs)
	working = working[:order]
	copy(working, coefs)
	n := len(samples)

	residuals[0] = samples[0]

	i := 1
	for ; i <= order && i < n; i++ {
		residuals[i] = truncate(int64(samples[i])-int64(samples[i-1]), sampleSize)
	}

	for ; i < n; i++ {
		base := int64(samples[i-order-1])
		sum := int64(1) << (qlpShift - 1)
		for j, c := range working {
			sum += int64(c) * (int64(samples[i-j-1]) - base)
		}
		residual := truncate(int64(samples[i])-base-sum>>qlpShift, sampleSize)
		residuals[i] = residual

		err := int64(residual)
		switch {
		case err > 0:
			for j := range order {
				diff := base - int64(samples[i-order+j])
				sign := signOf(diff)
				working[order-j-1] -= int32(sign)
				err -= (diff * sign >> qlpShift) * int64(j+1)
				if err <= 0 {
					break
				}
			}
		case err < 0:
			for j := range order {
				diff := base - int64(samples[i-order+j])
				sign := signOf(diff)
				working[order-j-1] += int32(sign)
				err -= (diff * -sign >> qlpShift) * int64(j+1)
				if err >= 0 {
					break
				}
			}
		}
	}
}
