// Package m4a writes the MPEG-4 audio container around ALAC framesets.
//
// The Muxer only produces the header: ftyp, moov and the mdat box header.
// The caller writes the framesets right after it, in the order they were
// added, so the payload can be streamed instead of held in memory.
package m4a

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrTooLarge indicates a payload that does not fit 32-bit box sizes and
// chunk offsets.
var ErrTooLarge = errors.New("m4a: payload exceeds 32-bit offsets")

const (
	// Seconds between 1904-01-01 and 1970-01-01.
	macEpochOffset = 2082844800

	languageUndetermined = 0x55c4 // packed ISO-639-2 "und"
	maxRunDefault        = 255
	trackID              = 1
)

// Track describes the ALAC stream. The Rice fields are copied into the
// magic cookie so decoders can rebuild the encoder configuration.
type Track struct {
	SampleRate  int
	SampleSize  int
	NumChannels int
	FrameSize   int

	HistoryMultiplier int
	InitialHistory    int
	MaximumK          int

	// Created is stored in mvhd, tkhd and mdhd. The zero time is stored
	// as 0.
	Created time.Time
}

type frameEntry struct {
	size      uint32
	pcmFrames uint32
}

// Muxer collects the frame table and builds the container header.
type Muxer struct {
	track  Track
	frames []frameEntry
}

// NewMuxer returns a muxer for track with an empty frame table.
func NewMuxer(track Track) *Muxer {
	return &Muxer{track: track}
}

// AddFrame appends a frameset of byteSize bytes holding pcmFrames PCM
// frames to the table.
func (m *Muxer) AddFrame(byteSize, pcmFrames uint32) {
	m.frames = append(m.frames, frameEntry{size: byteSize, pcmFrames: pcmFrames})
}

// Header returns ftyp, moov and the mdat box header. Its length depends
// only on the number of frames and the runs of equal PCM frame counts.
func (m *Muxer) Header() ([]byte, error) {
	var payload, duration uint64
	for _, f := range m.frames {
		payload += uint64(f.size)
		duration += uint64(f.pcmFrames)
	}
	if duration > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: duration of %d pcm frames", ErrTooLarge, duration)
	}

	ftyp := m.ftyp()
	// Box lengths do not depend on the chunk offsets, so a first pass
	// measures where the payload starts.
	moovLen := len(m.moov(0))
	base := uint64(len(ftyp)+moovLen) + 8
	if base+payload > 0xFFFFFFFF {
		return nil, fmt.Errorf("%w: %d payload bytes", ErrTooLarge, payload)
	}

	hdr := make([]byte, 0, base)
	hdr = append(hdr, ftyp...)
	hdr = append(hdr, m.moov(uint32(base))...)
	// The mdat size covers the payload that follows the header.
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(8+payload))
	return append(hdr, "mdat"...), nil
}

func (m *Muxer) ftyp() []byte {
	return newAtom("ftyp").
		str("M4A ").u32(0).
		str("M4A ").str("mp42").str("isom").u32(0).
		bytes()
}

func (m *Muxer) timestamp() uint32 {
	if m.track.Created.IsZero() {
		return 0
	}
	return uint32(m.track.Created.Unix() + macEpochOffset)
}

func (m *Muxer) duration() uint32 {
	var d uint32
	for _, f := range m.frames {
		d += f.pcmFrames
	}
	return d
}

// moov builds the movie box with chunk offsets starting at base.
func (m *Muxer) moov(base uint32) []byte {
	ts := m.timestamp()
	rate := uint32(m.track.SampleRate)
	dur := m.duration()

	mvhd := newFullAtom("mvhd", 0, 0).
		u32(ts).u32(ts).u32(rate).u32(dur).
		u32(0x00010000). // rate 1.0
		u16(0x0100).     // volume 1.0
		zeros(10).
		unityMatrix().
		zeros(24).
		u32(trackID + 1).
		bytes()

	// Flags: enabled, in movie, in preview.
	tkhd := newFullAtom("tkhd", 0, 7).
		u32(ts).u32(ts).u32(trackID).u32(0).u32(dur).
		zeros(8).
		u16(0).u16(0). // layer, alternate group
		u16(0x0100).u16(0).
		unityMatrix().
		u32(0).u32(0). // width, height
		bytes()

	mdhd := newFullAtom("mdhd", 0, 0).
		u32(ts).u32(ts).u32(rate).u32(dur).
		u16(languageUndetermined).u16(0).
		bytes()

	hdlr := newFullAtom("hdlr", 0, 0).
		u32(0).str("soun").zeros(12).
		str("SoundHandler").u8(0).
		bytes()

	smhd := newFullAtom("smhd", 0, 0).u16(0).u16(0).bytes()
	dref := newFullAtom("dref", 0, 0).u32(1).
		add(newFullAtom("url ", 0, 1).bytes()).
		bytes()
	dinf := newAtom("dinf").add(dref).bytes()

	minf := newAtom("minf").add(smhd, dinf, m.stbl(base)).bytes()
	mdia := newAtom("mdia").add(mdhd, hdlr, minf).bytes()
	trak := newAtom("trak").add(tkhd, mdia).bytes()
	return newAtom("moov").add(mvhd, trak).bytes()
}

func (m *Muxer) stbl(base uint32) []byte {
	return newAtom("stbl").add(
		m.stsd(),
		m.stts(),
		// One frameset per chunk.
		newFullAtom("stsc", 0, 0).u32(1).u32(1).u32(1).u32(1).bytes(),
		m.stsz(),
		m.stco(base),
	).bytes()
}

func (m *Muxer) stsd() []byte {
	t := m.track

	// The 16.16 rate field cannot hold rates above 65535; the cookie
	// carries the exact value.
	rate := uint32(t.SampleRate) << 16
	if t.SampleRate > 0xFFFF {
		rate = 0
	}

	entry := newAtom("alac").
		zeros(6).u16(1). // reserved, data reference index
		u16(0).u16(0).u32(0).
		u16(uint16(t.NumChannels)).
		u16(uint16(t.SampleSize)).
		u16(0).u16(0).
		u32(rate).
		add(m.cookie()).
		bytes()

	return newFullAtom("stsd", 0, 0).u32(1).add(entry).bytes()
}

// cookie is the ALAC magic cookie wrapped in its own alac box.
func (m *Muxer) cookie() []byte {
	t := m.track

	var maxBytes uint32
	var payload, duration uint64
	for _, f := range m.frames {
		maxBytes = max(maxBytes, f.size)
		payload += uint64(f.size)
		duration += uint64(f.pcmFrames)
	}
	var avgBitRate uint32
	if duration > 0 {
		bps := float64(payload) * 8 * float64(t.SampleRate) / float64(duration)
		avgBitRate = uint32(min(bps, 0xFFFFFFFF))
	}

	return newFullAtom("alac", 0, 0).
		u32(uint32(t.FrameSize)).
		u8(0). // compatible version
		u8(uint8(t.SampleSize)).
		u8(uint8(t.HistoryMultiplier)).
		u8(uint8(t.InitialHistory)).
		u8(uint8(t.MaximumK)).
		u8(uint8(t.NumChannels)).
		u16(maxRunDefault).
		u32(maxBytes).
		u32(avgBitRate).
		u32(uint32(t.SampleRate)).
		bytes()
}

// stts run-length codes the PCM frame count of every frameset.
func (m *Muxer) stts() []byte {
	type run struct{ count, delta uint32 }
	var runs []run
	for _, f := range m.frames {
		if n := len(runs); n > 0 && runs[n-1].delta == f.pcmFrames {
			runs[n-1].count++
			continue
		}
		runs = append(runs, run{count: 1, delta: f.pcmFrames})
	}

	a := newFullAtom("stts", 0, 0).u32(uint32(len(runs)))
	for _, r := range runs {
		a.u32(r.count).u32(r.delta)
	}
	return a.bytes()
}

func (m *Muxer) stsz() []byte {
	a := newFullAtom("stsz", 0, 0).u32(0).u32(uint32(len(m.frames)))
	for _, f := range m.frames {
		a.u32(f.size)
	}
	return a.bytes()
}

func (m *Muxer) stco(base uint32) []byte {
	a := newFullAtom("stco", 0, 0).u32(uint32(len(m.frames)))
	offset := base
	for _, f := range m.frames {
		a.u32(offset)
		offset += f.size
	}
	return a.bytes()
}
