package alac

import (
	"math"

	"github.com/alicebob/alacenc/internal/bitstream"
)

// Linear prediction parameters.
const (
	maxOrder     = 8   // highest predictor order; autocorrelation uses lags 0..maxOrder
	qlpShift     = 9   // right shift applied to the coefficient dot product
	qlpPrecision = 16  // quantized coefficients are signed 16-bit
	tukeyAlpha   = 0.5 // taper fraction of the analysis window
	orderTax     = 64  // 8 bits per extra coefficient of order 8 over order 4
)

// lpcState holds the scratch buffers of the predictor search. It is reused
// for every subframe.
type lpcState struct {
	window    []float64
	windowLen int
	windowed  []float64
	autocorr  [maxOrder + 1]float64
	ladder    [maxOrder][maxOrder]float64 // ladder[m-1][:m] holds the order m coefficients

	qlp4    [4]int32
	qlp8    [8]int32
	working [maxOrder]int32

	residual4 []int32
	residual8 []int32
	block4    bitstream.Recorder
	block8    bitstream.Recorder
}

// subframe is the predictor chosen for one channel and its coded residuals.
type subframe struct {
	coefs    []int32 // header coefficients, never adapted
	residual bitstream.Recorder
}

// computeCoefficients picks a predictor for samples and entropy codes the
// residuals into sf. It fails only with errResidualOverflow.
func (e *Encoder) computeCoefficients(samples []int32, sampleSize uint, sf *subframe) error {
	st := &e.lpc
	n := len(samples)

	if st.windowLen != n || len(st.window) != n {
		st.window = tukeyWindow(st.window, n)
		st.windowLen = n
	}
	st.windowed = resize(st.windowed, n)
	for i, s := range samples {
		st.windowed[i] = st.window[i] * float64(s)
	}
	autocorrelate(st.windowed, &st.autocorr)

	st.residual4 = resize(st.residual4, n)
	st.residual8 = resize(st.residual8, n)

	if st.autocorr[0] == 0 {
		// Silent block: order 4, all-zero coefficients.
		sf.coefs = append(sf.coefs[:0], 0, 0, 0, 0)
		calculateResiduals(samples, sampleSize, sf.coefs, st.working[:], st.residual4)
		sf.residual.Reset()
		return e.encodeResiduals(&sf.residual, sampleSize, st.residual4)
	}

	levinsonDurbin(&st.autocorr, &st.ladder)
	quantizeCoefficients(st.ladder[3][:4], st.qlp4[:])
	quantizeCoefficients(st.ladder[7][:8], st.qlp8[:])

	calculateResiduals(samples, sampleSize, st.qlp4[:], st.working[:], st.residual4)
	calculateResiduals(samples, sampleSize, st.qlp8[:], st.working[:], st.residual8)

	st.block4.Reset()
	if err := e.encodeResiduals(&st.block4, sampleSize, st.residual4); err != nil {
		return err
	}
	st.block8.Reset()
	if err := e.encodeResiduals(&st.block8, sampleSize, st.residual8); err != nil {
		return err
	}

	sf.residual.Reset()
	if chooseOrder(st.block4.Len(), st.block8.Len()) == 8 {
		sf.coefs = append(sf.coefs[:0], st.qlp8[:]...)
		sf.residual.Append(&st.block8)
	} else {
		sf.coefs = append(sf.coefs[:0], st.qlp4[:]...)
		sf.residual.Append(&st.block4)
	}
	return nil
}

// chooseOrder returns 8 when the order 8 residuals are more than orderTax
// bits smaller than the order 4 ones, 4 otherwise.
func chooseOrder(bits4, bits8 int) int {
	if bits8 < bits4-orderTax {
		return 8
	}
	return 4
}

// tukeyWindow fills dst with a Tukey window of length n: a plateau of 1.0
// with raised-cosine tapers over the first and last np+1 samples.
func tukeyWindow(dst []float64, n int) []float64 {
	dst = resize(dst, n)
	np := int(tukeyAlpha/2*float64(n)) - 1
	if np < 1 {
		for i := range dst {
			dst[i] = 1
		}
		return dst
	}
	for i := range dst {
		switch {
		case i <= np:
			dst[i] = (1 - math.Cos(math.Pi*float64(i)/float64(np))) / 2
		case i >= n-np-1:
			dst[i] = (1 - math.Cos(math.Pi*float64(n-i-1)/float64(np))) / 2
		default:
			dst[i] = 1
		}
	}
	return dst
}

func autocorrelate(windowed []float64, ac *[maxOrder + 1]float64) {
	for lag := range ac {
		var sum float64
		for i := 0; i < len(windowed)-lag; i++ {
			sum += windowed[i] * windowed[i+lag]
		}
		ac[lag] = sum
	}
}

// levinsonDurbin runs the recursion for orders 1..maxOrder. ac[0] must be
// nonzero. Once the prediction error reaches zero the remaining reflection
// coefficients are zero.
func levinsonDurbin(ac *[maxOrder + 1]float64, ladder *[maxOrder][maxOrder]float64) {
	lpErr := ac[0]
	for m := 1; m <= maxOrder; m++ {
		q := ac[m]
		for j := 0; j < m-1; j++ {
			q -= ladder[m-2][j] * ac[m-1-j]
		}
		var k float64
		if lpErr != 0 {
			k = q / lpErr
		}

		row := &ladder[m-1]
		for j := 0; j < m-1; j++ {
			row[j] = ladder[m-2][j] - k*ladder[m-2][m-2-j]
		}
		row[m-1] = k
		lpErr *= 1 - k*k
	}
}

// quantizeCoefficients converts lp into signed qlpPrecision-bit integers at
// qlpShift, carrying the rounding error from one coefficient to the next.
func quantizeCoefficients(lp []float64, dst []int32) {
	const (
		qlpMax = 1<<(qlpPrecision-1) - 1
		qlpMin = -(1 << (qlpPrecision - 1))
	)
	var carry float64
	for i, c := range lp {
		carry += c * (1 << qlpShift)
		q := math.Round(carry)
		if math.IsNaN(q) {
			q, carry = 0, 0
		}
		q = min(max(q, qlpMin), qlpMax)
		dst[i] = int32(q)
		carry -= q
	}
}
