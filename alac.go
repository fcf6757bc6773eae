// Apple Lossless (ALAC) encoder
package alac

import (
	"fmt"

	"github.com/alicebob/alacenc/internal/bitstream"
)

// Config holds ALAC encoder configuration parameters.
type Config struct {
	SampleRate  int // e.g., 44100, 48000, 96000
	SampleSize  int // bits per sample: 16 or 24
	NumChannels int // 1 to 8
	FrameSize   int // max samples per frame, typically 4096

	// Adaptive Rice coder parameters, stored in the magic cookie as mb, pb
	// and kb.
	InitialHistory    int
	HistoryMultiplier int
	MaximumK          int

	// Stereo decorrelation search range and shift. Decoders read the
	// leftweight as a signed byte, so it is at most 127.
	MinLeftweight    int
	MaxLeftweight    int
	InterlacingShift int
}

const maxLeftweight = 127

// DefaultConfig returns the default configuration (16-bit stereo 44.1kHz).
func DefaultConfig() Config {
	return Config{
		SampleRate:        44100,
		SampleSize:        16,
		NumChannels:       2,
		FrameSize:         4096,
		InitialHistory:    10,
		HistoryMultiplier: 40,
		MaximumK:          14,
		MinLeftweight:     0,
		MaxLeftweight:     4,
		InterlacingShift:  2,
	}
}

// Validate reports whether the configuration can be encoded.
func (c Config) Validate() error {
	switch {
	case c.SampleSize != 16 && c.SampleSize != 24:
		return fmt.Errorf("%w: got %d", ErrInvalidSampleSize, c.SampleSize)
	case c.NumChannels < 1 || c.NumChannels > maxChannels:
		return fmt.Errorf("%w: got %d", ErrInvalidChannels, c.NumChannels)
	case c.FrameSize < 1 || c.FrameSize > maxFrameSize:
		return fmt.Errorf("%w: got %d", ErrInvalidFrameSize, c.FrameSize)
	case c.SampleRate < 1 || int64(c.SampleRate) > 0xFFFFFFFF:
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, c.SampleRate)
	case c.InitialHistory < 0 || c.InitialHistory > 255,
		c.HistoryMultiplier < 1 || c.HistoryMultiplier > 255,
		c.MaximumK < 8 || c.MaximumK > 31:
		return fmt.Errorf("%w: mb=%d pb=%d kb=%d", ErrInvalidRice,
			c.InitialHistory, c.HistoryMultiplier, c.MaximumK)
	case c.MinLeftweight < 0 || c.MinLeftweight > c.MaxLeftweight || c.MaxLeftweight > maxLeftweight,
		c.InterlacingShift < 0 || c.InterlacingShift > 31:
		return fmt.Errorf("%w: leftweight %d-%d shift %d", ErrInvalidInterlacing,
			c.MinLeftweight, c.MaxLeftweight, c.InterlacingShift)
	}
	return nil
}

// Encoder turns blocks of PCM samples into ALAC framesets. It is not safe
// for concurrent use.
type Encoder struct {
	cfg Config

	frameset   bitstream.Recorder
	compressed bitstream.Recorder
	trial      bitstream.Recorder
	best       bitstream.Recorder

	group      [][]int32
	view       [][]int32
	msb        [2][]int32
	lsbs       []int32
	correlated [2][]int32

	lpc lpcState
	sub [2]subframe
}

// NewWithConfig creates an ALAC encoder with the specified configuration.
func NewWithConfig(cfg Config) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Encoder{cfg: cfg}, nil
}

// New creates an ALAC encoder with default settings (16-bit stereo 44.1kHz).
func New() (*Encoder, error) {
	return NewWithConfig(DefaultConfig())
}

// Config returns the encoder configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Encode encodes one block into a frameset. channels holds one slice per
// channel, all of the same length (1 to FrameSize samples), holding
// samples that fit in SampleSize bits. The returned slice is reused by the
// next call.
func (e *Encoder) Encode(channels [][]int32) ([]byte, error) {
	if len(channels) != e.cfg.NumChannels {
		return nil, fmt.Errorf("%w: %d channels, want %d", ErrInvalidBlock, len(channels), e.cfg.NumChannels)
	}
	n := len(channels[0])
	if n < 1 || n > e.cfg.FrameSize {
		return nil, fmt.Errorf("%w: %d pcm frames, want 1-%d", ErrInvalidBlock, n, e.cfg.FrameSize)
	}
	lo, hi := int32(-1)<<(e.cfg.SampleSize-1), int32(1)<<(e.cfg.SampleSize-1)-1
	for c, ch := range channels {
		if len(ch) != n {
			return nil, fmt.Errorf("%w: channel %d has %d pcm frames, want %d", ErrInvalidBlock, c, len(ch), n)
		}
		for i, s := range ch {
			if s < lo || s > hi {
				return nil, fmt.Errorf("%w: channel %d sample %d is %d, outside %d bits", ErrInvalidBlock, c, i, s, e.cfg.SampleSize)
			}
		}
	}

	e.frameset.Reset()
	e.writeFrameset(&e.frameset, n, channels)
	return e.frameset.Bytes(), nil
}
