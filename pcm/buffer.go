package pcm

import (
	"io"
)

// BufferReader serves samples already held in memory.
type BufferReader struct {
	format   Format
	channels [][]int32
	pos      int
}

// NewBufferReader returns a reader over channels, one slice per channel,
// all of the same length. Every sample must fit in f.BitsPerSample.
func NewBufferReader(f Format, channels [][]int32) (*BufferReader, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if _, err := checkBlock(channels, f.Channels); err != nil {
		return nil, err
	}
	if err := checkRange(channels, f.BitsPerSample); err != nil {
		return nil, err
	}
	return &BufferReader{format: f, channels: channels}, nil
}

// Format returns the stream format.
func (r *BufferReader) Format() Format {
	return r.format
}

// TotalFrames returns the number of frames held.
func (r *BufferReader) TotalFrames() int64 {
	return int64(len(r.channels[0]))
}

// Read fills block with the next samples.
func (r *BufferReader) Read(block [][]int32) (int, error) {
	if _, err := checkBlock(block, r.format.Channels); err != nil {
		return 0, err
	}
	var n int
	for c, ch := range block {
		n = copy(ch, r.channels[c][r.pos:])
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.pos += n
	return n, nil
}
