package alac

import (
	"errors"

	"github.com/alicebob/alacenc/internal/bitstream"
)

// Frame layout constants.
const (
	minCompressedFrames = 10 // shorter frames are always written uncompressed
	maxFrameSize        = 0xFFFF

	predictionType = 0 // plain linear prediction
	riceModifier   = 4 // decoder rice bound is HistoryMultiplier*riceModifier/4
)

// writeCompressed encodes a compressed frame; tests replace it to force the
// uncompressed fallback.
var writeCompressed = (*Encoder).writeCompressedFrame

// writeFrame writes one mono or stereo element body. It tries a compressed
// frame first and falls back to an uncompressed one on residual overflow.
func (e *Encoder) writeFrame(out *bitstream.Recorder, pcmFrames int, chans [][]int32) {
	if pcmFrames < minCompressedFrames {
		e.writeUncompressedFrame(out, pcmFrames, chans)
		return
	}

	e.compressed.Reset()
	if err := writeCompressed(e, &e.compressed, pcmFrames, chans); err != nil {
		// errResidualOverflow: the attempt is discarded.
		e.writeUncompressedFrame(out, pcmFrames, chans)
		return
	}
	out.Append(&e.compressed)
}

// writeFrameHeader writes the fields shared by every frame: 16 reserved
// bits, the partial block flag, the uncompressed LSB byte count, the not
// compressed flag and, for partial blocks, the explicit frame count.
func (e *Encoder) writeFrameHeader(out *bitstream.Recorder, pcmFrames int, lsbBytes uint, compressed bool) {
	partial := pcmFrames != e.cfg.FrameSize

	out.WriteBits(16, 0)
	out.WriteBit(partial)
	out.WriteBits(2, uint32(lsbBytes))
	out.WriteBit(!compressed)
	if partial {
		out.WriteBits(32, uint32(pcmFrames))
	}
}

func (e *Encoder) writeUncompressedFrame(out *bitstream.Recorder, pcmFrames int, chans [][]int32) {
	e.writeFrameHeader(out, pcmFrames, 0, false)

	bps := uint(e.cfg.SampleSize)
	for i := range pcmFrames {
		for _, ch := range chans {
			out.WriteSigned(bps, ch[i])
		}
	}
}

// writeCompressedFrame writes a compressed frame for one or two channels.
// Samples wider than 16 bits are split into raw low bytes and a predicted
// 16-bit remainder.
func (e *Encoder) writeCompressedFrame(out *bitstream.Recorder, pcmFrames int, chans [][]int32) error {
	var lsbBytes uint
	msb := chans

	if e.cfg.SampleSize > 16 {
		shift := uint(e.cfg.SampleSize - 16)
		mask := int32(1)<<shift - 1
		lsbBytes = shift / 8

		e.lsbs = resize(e.lsbs, pcmFrames*len(chans))
		for c, ch := range chans {
			e.msb[c] = resize(e.msb[c], pcmFrames)
			for i, s := range ch[:pcmFrames] {
				e.msb[c][i] = s >> shift
				e.lsbs[i*len(chans)+c] = s & mask
			}
		}
		msb = e.msb[:len(chans)]
	}

	sampleSize := uint(e.cfg.SampleSize) - lsbBytes*8

	if len(chans) == 1 {
		return e.writeNonInterlacedFrame(out, pcmFrames, lsbBytes, sampleSize, msb[0])
	}

	// Every leftweight is tried; the shortest encoding wins, the lowest
	// leftweight on ties.
	best, trial := &e.best, &e.trial
	found := false
	for lw := e.cfg.MinLeftweight; lw <= e.cfg.MaxLeftweight; lw++ {
		trial.Reset()
		err := e.writeInterlacedFrame(trial, pcmFrames, lsbBytes, sampleSize+1, msb[0], msb[1], uint(lw))
		if errors.Is(err, errMixOverflow) {
			continue
		}
		if err != nil {
			return err
		}
		if !found || trial.Len() < best.Len() {
			best, trial = trial, best
			found = true
		}
	}
	if !found {
		return errResidualOverflow
	}
	out.Append(best)
	return nil
}

func (e *Encoder) writeNonInterlacedFrame(out *bitstream.Recorder, pcmFrames int, lsbBytes, sampleSize uint, samples []int32) error {
	e.writeFrameHeader(out, pcmFrames, lsbBytes, true)
	out.WriteBits(8, 0) // interlacing shift
	out.WriteBits(8, 0) // interlacing leftweight

	sf := &e.sub[0]
	if err := e.computeCoefficients(samples, sampleSize, sf); err != nil {
		return err
	}

	writeSubframeHeader(out, sf.coefs)
	e.writeLSBs(out, lsbBytes)
	out.Append(&sf.residual)
	return nil
}

func (e *Encoder) writeInterlacedFrame(out *bitstream.Recorder, pcmFrames int, lsbBytes, sampleSize uint, ch0, ch1 []int32, leftweight uint) error {
	shift := uint(e.cfg.InterlacingShift)

	e.writeFrameHeader(out, pcmFrames, lsbBytes, true)
	out.WriteBits(8, uint32(shift))
	out.WriteBits(8, uint32(leftweight))

	e.correlated[0] = resize(e.correlated[0], pcmFrames)
	e.correlated[1] = resize(e.correlated[1], pcmFrames)
	correlate(ch0, ch1, shift, leftweight, e.correlated[0], e.correlated[1])
	if !fits(e.correlated[0], sampleSize) {
		return errMixOverflow
	}

	for c := range e.correlated {
		if err := e.computeCoefficients(e.correlated[c], sampleSize, &e.sub[c]); err != nil {
			return err
		}
	}

	writeSubframeHeader(out, e.sub[0].coefs)
	writeSubframeHeader(out, e.sub[1].coefs)
	e.writeLSBs(out, lsbBytes)
	out.Append(&e.sub[0].residual)
	out.Append(&e.sub[1].residual)
	return nil
}

// writeSubframeHeader writes prediction type, QLP shift, Rice modifier,
// predictor order and the signed 16-bit coefficients.
func writeSubframeHeader(out *bitstream.Recorder, coefs []int32) {
	out.WriteBits(4, predictionType)
	out.WriteBits(4, qlpShift)
	out.WriteBits(3, riceModifier)
	out.WriteBits(5, uint32(len(coefs)))
	for _, c := range coefs {
		out.WriteSigned(qlpPrecision, c)
	}
}

// writeLSBs writes the uncompressed low bytes, interleaved by channel.
func (e *Encoder) writeLSBs(out *bitstream.Recorder, lsbBytes uint) {
	if lsbBytes == 0 {
		return
	}
	for _, v := range e.lsbs {
		out.WriteBits(lsbBytes*8, uint32(v))
	}
}
