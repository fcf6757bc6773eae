package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Input formats.
const (
	FormatAuto = "auto"
	FormatWAV  = "wav"
	FormatFLAC = "flac"
	FormatRaw  = "raw"
)

// Stdio is the file name that selects stdin or stdout.
const Stdio = "-"

// Config holds the command line settings of alacenc.
type Config struct {
	InputFile  string
	OutputFile string
	Format     string // one of the Format constants, never FormatAuto after ParseFlags
	BlockSize  int    // PCM frames per ALAC frame

	// Raw input layout, used with FormatRaw only.
	RawSampleRate int
	RawChannels   int
	RawBits       int

	TempDir string
	Verbose bool
}

// DefaultConfig returns the settings used for flags that are not given.
func DefaultConfig() Config {
	return Config{
		Format:        FormatAuto,
		BlockSize:     4096,
		RawSampleRate: 44100,
		RawChannels:   2,
		RawBits:       16,
	}
}

// ParseFlags parses command line flags and returns configuration
func ParseFlags() (*Config, error) {
	config := DefaultConfig()

	var (
		input     = flag.String("i", "", "Input file (WAV, FLAC or raw PCM), - for stdin")
		output    = flag.String("o", "", "Output .m4a file, - for stdout (default: input name with .m4a)")
		format    = flag.String("format", config.Format, "Input format: auto, wav, flac or raw")
		blockSize = flag.Int("block-size", config.BlockSize, "PCM frames per ALAC frame (1-65535)")

		rawRate     = flag.Int("raw-rate", config.RawSampleRate, "Sample rate of raw input in Hz")
		rawChannels = flag.Int("raw-channels", config.RawChannels, "Channel count of raw input (1-8)")
		rawBits     = flag.Int("raw-bits", config.RawBits, "Bits per sample of raw input (16 or 24)")

		tempDir = flag.String("tmpdir", "", "Directory for the scratch file used when the output cannot seek")
		verbose = flag.Bool("v", false, "Log every encoded frame")

		help = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	config.InputFile = *input
	config.OutputFile = *output
	config.Format = strings.ToLower(*format)
	config.BlockSize = *blockSize
	config.RawSampleRate = *rawRate
	config.RawChannels = *rawChannels
	config.RawBits = *rawBits
	config.TempDir = *tempDir
	config.Verbose = *verbose

	if err := validateConfig(&config, *help); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig checks the settings and fills in the derived ones: the
// input format from the file extension and the output name from the
// input name.
func validateConfig(config *Config, help bool) error {
	if help || config.InputFile == "" {
		printHelp(config)
		return fmt.Errorf("missing required parameters")
	}

	if config.Format == FormatAuto {
		if config.InputFile == Stdio {
			return fmt.Errorf("-format is required when reading stdin")
		}
		switch strings.ToLower(filepath.Ext(config.InputFile)) {
		case ".wav", ".wave":
			config.Format = FormatWAV
		case ".flac":
			config.Format = FormatFLAC
		case ".raw", ".pcm":
			config.Format = FormatRaw
		default:
			return fmt.Errorf("cannot detect format of %s; use -format", config.InputFile)
		}
	}

	switch config.Format {
	case FormatWAV, FormatFLAC:
	case FormatRaw:
		if config.RawSampleRate < 1 {
			return fmt.Errorf("-raw-rate must be positive, got %d", config.RawSampleRate)
		}
		if config.RawChannels < 1 || config.RawChannels > 8 {
			return fmt.Errorf("-raw-channels must be 1-8, got %d", config.RawChannels)
		}
		if config.RawBits != 16 && config.RawBits != 24 {
			return fmt.Errorf("-raw-bits must be 16 or 24, got %d", config.RawBits)
		}
	default:
		return fmt.Errorf("unknown -format %q", config.Format)
	}

	if config.BlockSize < 1 || config.BlockSize > 65535 {
		return fmt.Errorf("-block-size must be 1-65535, got %d", config.BlockSize)
	}

	if config.OutputFile == "" {
		if config.InputFile == Stdio {
			return fmt.Errorf("-o is required when reading stdin")
		}
		config.OutputFile = strings.TrimSuffix(config.InputFile, filepath.Ext(config.InputFile)) + ".m4a"
	}
	if config.OutputFile == config.InputFile && config.InputFile != Stdio {
		return fmt.Errorf("output file %s would overwrite the input", config.OutputFile)
	}

	return nil
}

// printHelp prints the help message
func printHelp(config *Config) {
	fmt.Fprintf(os.Stderr, "alacenc: Apple Lossless encoder\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s -i <input> [-o <output.m4a>] [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Parameters:\n")
	fmt.Fprintf(os.Stderr, "  -i                Input file (WAV, FLAC or raw PCM), - for stdin\n")
	fmt.Fprintf(os.Stderr, "  -o                Output .m4a file, - for stdout (default: input name with .m4a)\n")
	fmt.Fprintf(os.Stderr, "  -format           Input format: auto, wav, flac, raw (default: %s)\n", config.Format)
	fmt.Fprintf(os.Stderr, "  -block-size       PCM frames per ALAC frame (default: %d)\n\n", config.BlockSize)
	fmt.Fprintf(os.Stderr, "Raw Input:\n")
	fmt.Fprintf(os.Stderr, "  -raw-rate         Sample rate in Hz (default: %d)\n", config.RawSampleRate)
	fmt.Fprintf(os.Stderr, "  -raw-channels     Channel count (default: %d)\n", config.RawChannels)
	fmt.Fprintf(os.Stderr, "  -raw-bits         Bits per sample, 16 or 24 (default: %d)\n\n", config.RawBits)
	fmt.Fprintf(os.Stderr, "  -tmpdir           Scratch directory for unseekable output (default: system temp)\n")
	fmt.Fprintf(os.Stderr, "  -v                Log every encoded frame\n")
	fmt.Fprintf(os.Stderr, "  -help             Show this help\n\n")
	fmt.Fprintf(os.Stderr, "Raw input is interleaved little-endian signed PCM.\n")
}
