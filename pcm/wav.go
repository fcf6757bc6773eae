package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	riffHeader   = 0x52494646 // "RIFF"
	waveFormat   = 0x57415645 // "WAVE"
	formatHeader = 0x666d7420 // "fmt "
	dataHeader   = 0x64617461 // "data"

	formatPCM        = 1
	formatExtensible = 0xFFFE

	// Streaming writers that cannot seek back leave the data size at
	// this value.
	unknownDataSize = 0xFFFFFFFF
)

// WAVReader reads integer PCM from a RIFF/WAVE stream. The input does not
// need to be seekable; chunks before "data" are skipped by reading.
type WAVReader struct {
	interleaved
	total int64
}

// NewWAVReader parses the WAVE header of r up to the start of the sample
// data.
func NewWAVReader(r io.Reader) (*WAVReader, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}
	if binary.BigEndian.Uint32(hdr[0:]) != riffHeader || binary.BigEndian.Uint32(hdr[8:]) != waveFormat {
		return nil, ErrNotWAV
	}

	var (
		format    Format
		hasFormat bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("%w: looking for data chunk: %w", ErrTruncated, err)
		}
		id := binary.BigEndian.Uint32(chunk[0:])
		size := binary.LittleEndian.Uint32(chunk[4:])

		switch id {
		case formatHeader:
			f, err := parseFormat(r, size)
			if err != nil {
				return nil, err
			}
			format = f
			hasFormat = true

		case dataHeader:
			if !hasFormat {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			frames := int64(-1)
			if size != unknownDataSize {
				frameBytes := int64(format.Channels * format.BitsPerSample / 8)
				frames = int64(size) / frameBytes
			}
			return &WAVReader{
				interleaved: newInterleaved(r, format, frames),
				total:       frames,
			}, nil

		default:
			if err := skip(r, int64(size)+int64(size&1)); err != nil {
				return nil, err
			}
		}
	}
}

func parseFormat(r io.Reader, size uint32) (Format, error) {
	if size < 16 {
		return Format{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrNotWAV, size)
	}
	body := make([]byte, size+size&1)
	if _, err := io.ReadFull(r, body); err != nil {
		return Format{}, fmt.Errorf("%w: fmt chunk: %w", ErrTruncated, err)
	}

	tag := binary.LittleEndian.Uint16(body[0:])
	f := Format{
		Channels:      int(binary.LittleEndian.Uint16(body[2:])),
		SampleRate:    int(binary.LittleEndian.Uint32(body[4:])),
		BitsPerSample: int(binary.LittleEndian.Uint16(body[14:])),
	}
	blockAlign := int(binary.LittleEndian.Uint16(body[12:]))

	if tag == formatExtensible {
		// cbSize(2) validBits(2) channelMask(4) subFormat GUID(16)
		if size < 40 {
			return Format{}, fmt.Errorf("%w: short WAVE_FORMAT_EXTENSIBLE header", ErrUnsupportedFormat)
		}
		tag = binary.LittleEndian.Uint16(body[24:])
	}
	if tag != formatPCM {
		return Format{}, fmt.Errorf("%w: format tag %#x", ErrUnsupportedFormat, tag)
	}
	if err := f.validate(); err != nil {
		return Format{}, err
	}
	if blockAlign != f.Channels*f.BitsPerSample/8 {
		return Format{}, fmt.Errorf("%w: block align %d", ErrUnsupportedFormat, blockAlign)
	}
	return f, nil
}

func skip(r io.Reader, n int64) error {
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(n, io.SeekCurrent); err == nil {
			return nil
		}
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: skipping chunk: %w", ErrTruncated, err)
		}
		return err
	}
	return nil
}

// Format returns the stream format.
func (w *WAVReader) Format() Format {
	return w.format
}

// TotalFrames returns the frame count from the data chunk header, or -1
// when the writer left it unset.
func (w *WAVReader) TotalFrames() int64 {
	return w.total
}

// Read fills block with the next samples.
func (w *WAVReader) Read(block [][]int32) (int, error) {
	return w.read(block)
}
