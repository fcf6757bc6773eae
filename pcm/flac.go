package pcm

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLACReader decodes a FLAC stream and re-blocks its frames into the
// block size the caller asks for.
type FLACReader struct {
	stream  *flac.Stream
	format  Format
	total   int64
	pending [][]int32 // undelivered samples of the current FLAC frame
	offset  int
}

// NewFLACReader parses the FLAC stream header of r.
func NewFLACReader(r io.Reader) (*FLACReader, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("pcm: opening flac stream: %w", err)
	}

	info := stream.Info
	f := Format{
		SampleRate:    int(info.SampleRate),
		BitsPerSample: int(info.BitsPerSample),
		Channels:      int(info.NChannels),
	}
	if err := f.validate(); err != nil {
		stream.Close()
		return nil, err
	}

	total := int64(info.NSamples)
	if total == 0 {
		// Zero means unknown in STREAMINFO.
		total = -1
	}

	return &FLACReader{
		stream:  stream,
		format:  f,
		total:   total,
		pending: make([][]int32, f.Channels),
	}, nil
}

// Format returns the stream format.
func (r *FLACReader) Format() Format {
	return r.format
}

// TotalFrames returns the sample count from STREAMINFO, or -1 when the
// encoder did not record it.
func (r *FLACReader) TotalFrames() int64 {
	return r.total
}

// Read fills block with the next samples.
func (r *FLACReader) Read(block [][]int32) (int, error) {
	n, err := checkBlock(block, r.format.Channels)
	if err != nil {
		return 0, err
	}

	filled := 0
	for filled < n {
		if r.offset >= len(r.pending[0]) {
			frame, err := r.stream.ParseNext()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return filled, fmt.Errorf("pcm: decoding flac frame: %w", err)
			}
			if len(frame.Subframes) != r.format.Channels {
				return filled, fmt.Errorf("%w: flac frame with %d subframes", ErrUnsupportedFormat, len(frame.Subframes))
			}
			for c, sub := range frame.Subframes {
				r.pending[c] = sub.Samples
			}
			r.offset = 0
			continue
		}

		var k int
		for c, ch := range block {
			k = copy(ch[filled:n], r.pending[c][r.offset:])
		}
		filled += k
		r.offset += k
	}

	if filled == 0 {
		return 0, io.EOF
	}
	return filled, nil
}

// Close releases the decoder, closing the underlying reader when it is an
// io.Closer.
func (r *FLACReader) Close() error {
	return r.stream.Close()
}
