package main

import (
	"bufio"
	"io"
	"log"
	"os"
	"time"

	alac "github.com/alicebob/alacenc"
	"github.com/alicebob/alacenc/internal/config"
	"github.com/alicebob/alacenc/m4a"
	"github.com/alicebob/alacenc/pcm"
)

func main() {
	// Parse command line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Encoding error: %v", err)
	}
}

func run(cfg *config.Config) error {
	in := os.Stdin
	if cfg.InputFile != config.Stdio {
		f, err := os.Open(cfg.InputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	src, err := openSource(cfg, in)
	if err != nil {
		return err
	}
	format := src.Format()

	acfg := alac.DefaultConfig()
	acfg.SampleRate = format.SampleRate
	acfg.SampleSize = format.BitsPerSample
	acfg.NumChannels = format.Channels
	acfg.FrameSize = cfg.BlockSize

	enc, err := alac.NewWithConfig(acfg)
	if err != nil {
		return err
	}

	out := os.Stdout
	if cfg.OutputFile != config.Stdio {
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	track := m4a.Track{
		SampleRate:        acfg.SampleRate,
		SampleSize:        acfg.SampleSize,
		NumChannels:       acfg.NumChannels,
		FrameSize:         acfg.FrameSize,
		HistoryMultiplier: acfg.HistoryMultiplier,
		InitialHistory:    acfg.InitialHistory,
		MaximumK:          acfg.MaximumK,
		Created:           time.Now(),
	}
	newMuxer := func() alac.Muxer {
		return m4a.NewMuxer(track)
	}

	opts := alac.StreamOptions{TempDir: cfg.TempDir}
	if cfg.Verbose {
		opts.OnFrame = func(i int, f alac.FrameSize) {
			log.Printf("frame %d: %d pcm frames, %d bytes", i, f.PCMFrames, f.Bytes)
		}
	}

	log.Printf("Encoding %s (%v) -> %s", cfg.InputFile, format, cfg.OutputFile)
	stats, err := enc.EncodeStream(out, src, newMuxer, opts)
	if err != nil {
		if cfg.OutputFile != config.Stdio {
			os.Remove(cfg.OutputFile)
		}
		return err
	}
	if cfg.OutputFile != config.Stdio {
		if err := out.Close(); err != nil {
			return err
		}
	}

	pcmBytes := stats.PCMFrames * int64(format.Channels*format.BitsPerSample/8)
	ratio := 0.0
	if pcmBytes > 0 {
		ratio = float64(stats.MdatSize) / float64(pcmBytes) * 100
	}
	log.Printf("Encoded %d frames (%d pcm frames), %d payload bytes, %.1f%% of PCM size, in %v",
		len(stats.Frames), stats.PCMFrames, stats.MdatSize, ratio, stats.Elapsed.Round(time.Millisecond))
	return nil
}

func openSource(cfg *config.Config, in io.Reader) (pcm.Reader, error) {
	switch cfg.Format {
	case config.FormatFLAC:
		return pcm.NewFLACReader(in)
	case config.FormatRaw:
		return pcm.NewRawReader(bufio.NewReader(in), pcm.Format{
			SampleRate:    cfg.RawSampleRate,
			BitsPerSample: cfg.RawBits,
			Channels:      cfg.RawChannels,
		})
	default:
		return pcm.NewWAVReader(bufio.NewReader(in))
	}
}
