// Package pcm provides sources of signed integer PCM samples for the
// encoder: WAV, FLAC, raw little-endian streams and in-memory buffers.
package pcm

import (
	"errors"
	"fmt"
)

// Errors returned by the readers.
var (
	// ErrNotWAV indicates the input lacks a RIFF/WAVE header.
	ErrNotWAV = errors.New("pcm: not a RIFF/WAVE stream")

	// ErrUnsupportedFormat indicates an encoding other than 16 or 24-bit
	// integer PCM.
	ErrUnsupportedFormat = errors.New("pcm: unsupported sample format")

	// ErrTruncated indicates the stream ended inside a header or a sample.
	ErrTruncated = errors.New("pcm: truncated stream")

	// ErrBlockShape indicates a Read call with a block that does not have
	// one slice per channel of equal length.
	ErrBlockShape = errors.New("pcm: block does not match channel count")

	// ErrSampleRange indicates a sample that does not fit the declared
	// bits per sample.
	ErrSampleRange = errors.New("pcm: sample out of range")
)

// Format describes a PCM stream.
type Format struct {
	SampleRate    int
	BitsPerSample int
	Channels      int
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d bit, %d ch", f.SampleRate, f.BitsPerSample, f.Channels)
}

func (f Format) validate() error {
	if f.BitsPerSample != 16 && f.BitsPerSample != 24 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, f.BitsPerSample)
	}
	if f.Channels < 1 || f.Channels > 8 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	if f.SampleRate < 1 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	return nil
}

// Reader delivers blocks of per-channel samples.
//
// Read fills block[c][:n] for every channel. It fills the whole block
// unless the stream ends; at the end of the stream it returns 0, io.EOF.
// Any other error is a read failure.
type Reader interface {
	Format() Format
	Read(block [][]int32) (int, error)
}

// Sized is implemented by readers that know their length up front.
type Sized interface {
	// TotalFrames returns the number of PCM frames in the stream, or -1
	// when unknown.
	TotalFrames() int64
}

// TotalFrames returns r's advertised length, or -1 when r does not know it.
func TotalFrames(r Reader) int64 {
	if s, ok := r.(Sized); ok {
		return s.TotalFrames()
	}
	return -1
}

func checkBlock(block [][]int32, channels int) (int, error) {
	if len(block) != channels {
		return 0, fmt.Errorf("%w: %d slices for %d channels", ErrBlockShape, len(block), channels)
	}
	n := len(block[0])
	for _, ch := range block[1:] {
		if len(ch) != n {
			return 0, ErrBlockShape
		}
	}
	return n, nil
}

// checkRange reports the first sample of block that does not fit in bits.
func checkRange(block [][]int32, bits int) error {
	lo, hi := int32(-1)<<(bits-1), int32(1)<<(bits-1)-1
	for c, ch := range block {
		for i, s := range ch {
			if s < lo || s > hi {
				return fmt.Errorf("%w: channel %d sample %d is %d for %d bits", ErrSampleRange, c, i, s, bits)
			}
		}
	}
	return nil
}

// decodeInterleaved converts little-endian interleaved samples from buf
// into block, frames at a time.
func decodeInterleaved(block [][]int32, buf []byte, frames, bits int) {
	switch bits {
	case 16:
		pos := 0
		for i := range frames {
			for _, ch := range block {
				ch[i] = int32(int16(uint16(buf[pos]) | uint16(buf[pos+1])<<8))
				pos += 2
			}
		}
	case 24:
		pos := 0
		for i := range frames {
			for _, ch := range block {
				s := int32(buf[pos]) | int32(buf[pos+1])<<8 | int32(int8(buf[pos+2]))<<16
				ch[i] = s
				pos += 3
			}
		}
	default:
		panic(fmt.Sprintf("pcm: decodeInterleaved called with unsupported bit depth %d", bits))
	}
}
