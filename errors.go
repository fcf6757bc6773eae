package alac

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is wrapped by every configuration or argument error.
// Such errors are reported before any encoding begins.
var ErrInvalidParameter = errors.New("alac: invalid parameter")

// ErrIO wraps failures of the PCM source or the output writer.
var ErrIO = errors.New("alac: i/o error")

// Specific parameter errors. All of them match ErrInvalidParameter with errors.Is.
var (
	// ErrInvalidSampleSize indicates an unsupported bit depth (16 or 24 only).
	ErrInvalidSampleSize = fmt.Errorf("%w: sample size must be 16 or 24", ErrInvalidParameter)

	// ErrInvalidChannels indicates a channel count outside 1..8.
	ErrInvalidChannels = fmt.Errorf("%w: channels must be 1-8", ErrInvalidParameter)

	// ErrInvalidFrameSize indicates a block size outside 1..65535.
	ErrInvalidFrameSize = fmt.Errorf("%w: frame size must be 1-65535", ErrInvalidParameter)

	// ErrInvalidSampleRate indicates a zero or negative sample rate.
	ErrInvalidSampleRate = fmt.Errorf("%w: sample rate must be positive", ErrInvalidParameter)

	// ErrInvalidRice indicates Rice coder parameters that do not fit the
	// magic cookie fields.
	ErrInvalidRice = fmt.Errorf("%w: rice parameters out of range", ErrInvalidParameter)

	// ErrInvalidInterlacing indicates a bad leftweight range or shift.
	ErrInvalidInterlacing = fmt.Errorf("%w: interlacing parameters out of range", ErrInvalidParameter)

	// ErrInvalidBlock indicates a block that does not match the
	// configuration in shape or sample range.
	ErrInvalidBlock = fmt.Errorf("%w: block does not match configuration", ErrInvalidParameter)

	// ErrFormatMismatch indicates a PCM source whose format differs from
	// the encoder configuration.
	ErrFormatMismatch = fmt.Errorf("%w: pcm format does not match configuration", ErrInvalidParameter)
)

// errResidualOverflow aborts a compressed frame attempt. It never leaves
// the frame assembler; the frame is written uncompressed instead.
var errResidualOverflow = errors.New("alac: residual overflow")

// errMixOverflow rejects a leftweight whose mixed channel does not fit the
// coded sample width.
var errMixOverflow = errors.New("alac: mixed channel out of range")
