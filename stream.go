package alac

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alicebob/alacenc/pcm"
)

// FrameSize records one encoded frameset: its length in bytes and the
// number of PCM frames it holds.
type FrameSize struct {
	Bytes     uint32
	PCMFrames uint32
}

// Muxer builds the container header that precedes the encoded framesets.
// The header length must depend only on the number and PCM lengths of the
// frames added, not on their byte sizes.
type Muxer interface {
	AddFrame(byteSize, pcmFrames uint32)
	Header() ([]byte, error)
}

// Stats summarizes an EncodeStream run.
type Stats struct {
	Frames    []FrameSize // one entry per frameset, in stream order
	PCMFrames int64
	MdatSize  int64 // total payload bytes
	Elapsed   time.Duration
}

// StreamOptions tunes EncodeStream. The zero value is ready to use.
type StreamOptions struct {
	// TempDir holds the scratch file used when the output cannot seek or
	// the source length is unknown. Empty means os.TempDir.
	TempDir string

	// OnFrame, if set, is called after each frameset is written.
	OnFrame func(index int, f FrameSize)
}

// EncodeStream encodes all of src to out: a container header from
// newMuxer followed by the framesets.
//
// When src knows its length and out can seek, a placeholder header is
// written first and overwritten once the frame sizes are known. Otherwise
// the framesets go to a scratch file and are copied to out after the
// header.
func (e *Encoder) EncodeStream(out io.Writer, src pcm.Reader, newMuxer func() Muxer, opts StreamOptions) (Stats, error) {
	if err := e.checkFormat(src.Format()); err != nil {
		return Stats{}, err
	}

	start := time.Now()
	var (
		stats Stats
		err   error
	)
	total := pcm.TotalFrames(src)
	ws, seekable := out.(io.WriteSeeker)
	var offset int64
	if seekable && total >= 0 {
		// Pipes are *os.File too; their Seek fails.
		offset, err = ws.Seek(0, io.SeekCurrent)
		seekable = err == nil
	}

	if seekable && total >= 0 {
		stats, err = e.encodeKnownLength(ws, offset, src, total, newMuxer, opts)
	} else {
		stats, err = e.encodeStreaming(out, src, newMuxer, opts)
	}
	stats.Elapsed = time.Since(start)
	return stats, err
}

func (e *Encoder) checkFormat(f pcm.Format) error {
	if f.BitsPerSample != e.cfg.SampleSize || f.Channels != e.cfg.NumChannels || f.SampleRate != e.cfg.SampleRate {
		return fmt.Errorf("%w: source is %v, encoder is %d Hz, %d bit, %d ch", ErrFormatMismatch,
			f, e.cfg.SampleRate, e.cfg.SampleSize, e.cfg.NumChannels)
	}
	return nil
}

func (e *Encoder) encodeKnownLength(out io.WriteSeeker, start int64, src pcm.Reader, total int64, newMuxer func() Muxer, opts StreamOptions) (Stats, error) {
	placeholder := newMuxer()
	size := int64(e.cfg.FrameSize)
	for rem := total; rem > 0; rem -= size {
		placeholder.AddFrame(0, uint32(min(rem, size)))
	}
	hdr, err := placeholder.Header()
	if err != nil {
		return Stats{}, err
	}
	if _, err := out.Write(hdr); err != nil {
		return Stats{}, fmt.Errorf("%w: writing header: %w", ErrIO, err)
	}

	var stats Stats
	bw := bufio.NewWriter(out)
	if err := e.encodeFrames(bw, src, opts, &stats); err != nil {
		return stats, err
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if stats.PCMFrames != total {
		return stats, fmt.Errorf("%w: source delivered %d pcm frames, advertised %d", ErrIO, stats.PCMFrames, total)
	}

	final := newMuxer()
	for _, f := range stats.Frames {
		final.AddFrame(f.Bytes, f.PCMFrames)
	}
	rewritten, err := final.Header()
	if err != nil {
		return stats, err
	}
	if len(rewritten) != len(hdr) {
		panic(fmt.Sprintf("alac: container header grew from %d to %d bytes", len(hdr), len(rewritten)))
	}

	end, err := out.Seek(0, io.SeekCurrent)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err := out.Seek(start, io.SeekStart); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err := out.Write(rewritten); err != nil {
		return stats, fmt.Errorf("%w: rewriting header: %w", ErrIO, err)
	}
	if _, err := out.Seek(end, io.SeekStart); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return stats, nil
}

func (e *Encoder) encodeStreaming(out io.Writer, src pcm.Reader, newMuxer func() Muxer, opts StreamOptions) (Stats, error) {
	scratch, err := os.CreateTemp(opts.TempDir, "alacenc-*.mdat")
	if err != nil {
		return Stats{}, fmt.Errorf("%w: creating scratch file: %w", ErrIO, err)
	}
	defer func() {
		scratch.Close()
		os.Remove(scratch.Name())
	}()

	var stats Stats
	bw := bufio.NewWriter(scratch)
	if err := e.encodeFrames(bw, src, opts, &stats); err != nil {
		return stats, err
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}

	mux := newMuxer()
	for _, f := range stats.Frames {
		mux.AddFrame(f.Bytes, f.PCMFrames)
	}
	hdr, err := mux.Header()
	if err != nil {
		return stats, err
	}

	if _, err := scratch.Seek(0, io.SeekStart); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if _, err := out.Write(hdr); err != nil {
		return stats, fmt.Errorf("%w: writing header: %w", ErrIO, err)
	}
	if _, err := io.Copy(out, scratch); err != nil {
		return stats, fmt.Errorf("%w: copying payload: %w", ErrIO, err)
	}
	return stats, nil
}

// encodeFrames reads src block by block and writes one frameset per block.
func (e *Encoder) encodeFrames(w io.Writer, src pcm.Reader, opts StreamOptions, stats *Stats) error {
	block := make([][]int32, e.cfg.NumChannels)
	for c := range block {
		block[c] = make([]int32, e.cfg.FrameSize)
	}
	var part [][]int32

	for {
		n, readErr := fill(src, block, &part)
		if n > 0 {
			e.view = link(e.view, block, n)
			frameset, err := e.Encode(e.view)
			if err != nil {
				return err
			}
			if _, err := w.Write(frameset); err != nil {
				return fmt.Errorf("%w: %w", ErrIO, err)
			}

			fs := FrameSize{Bytes: uint32(len(frameset)), PCMFrames: uint32(n)}
			stats.Frames = append(stats.Frames, fs)
			stats.PCMFrames += int64(n)
			stats.MdatSize += int64(len(frameset))
			if opts.OnFrame != nil {
				opts.OnFrame(len(stats.Frames)-1, fs)
			}
		}

		switch {
		case errors.Is(readErr, io.EOF):
			return nil
		case readErr != nil:
			return fmt.Errorf("%w: reading pcm: %w", ErrIO, readErr)
		}
	}
}

// fill reads from src until block is full or the stream ends. It returns
// io.EOF once the source is exhausted, possibly along with a partial block.
func fill(src pcm.Reader, block [][]int32, part *[][]int32) (int, error) {
	size := len(block[0])
	filled := 0
	for filled < size {
		*part = (*part)[:0]
		for _, ch := range block {
			*part = append(*part, ch[filled:])
		}
		n, err := src.Read(*part)
		filled += n
		if err != nil {
			return filled, err
		}
		if n == 0 {
			return filled, io.ErrNoProgress
		}
	}
	return filled, nil
}
