package pcm

import (
	"errors"
	"fmt"
	"io"
)

// interleaved reads little-endian interleaved integer samples. It is
// shared by the WAV and raw readers.
type interleaved struct {
	r          io.Reader
	format     Format
	frameBytes int
	remaining  int64 // frames left, -1 when unknown
	buf        []byte
}

func newInterleaved(r io.Reader, f Format, frames int64) interleaved {
	return interleaved{
		r:          r,
		format:     f,
		frameBytes: f.Channels * f.BitsPerSample / 8,
		remaining:  frames,
	}
}

func (s *interleaved) read(block [][]int32) (int, error) {
	n, err := checkBlock(block, s.format.Channels)
	if err != nil {
		return 0, err
	}
	if s.remaining >= 0 {
		n = int(min(int64(n), s.remaining))
	}
	if n == 0 {
		return 0, io.EOF
	}

	need := n * s.frameBytes
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	got, err := io.ReadFull(s.r, buf)
	frames := got / s.frameBytes
	decodeInterleaved(block, buf, frames, s.format.BitsPerSample)
	if s.remaining >= 0 {
		s.remaining -= int64(frames)
	}

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if s.remaining > 0 || got%s.frameBytes != 0 {
			return frames, fmt.Errorf("%w: stream ended %d bytes into a %d byte read", ErrTruncated, got, need)
		}
		if frames == 0 {
			return 0, io.EOF
		}
		return frames, nil
	default:
		return frames, err
	}
}

// RawReader reads headerless little-endian interleaved PCM of unknown
// length, such as a pipe from another tool.
type RawReader struct {
	interleaved
}

// NewRawReader creates a reader for raw samples in format f.
func NewRawReader(r io.Reader, f Format) (*RawReader, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &RawReader{interleaved: newInterleaved(r, f, -1)}, nil
}

// Format returns the stream format.
func (r *RawReader) Format() Format {
	return r.format
}

// Read fills block with the next samples.
func (r *RawReader) Read(block [][]int32) (int, error) {
	return r.read(block)
}
