//go:build ignore

// This script generates test data for ALAC encoder testing.
// Run with: go run testdata/generate.go
//
// Every case is a WAV input, the same samples as raw little-endian PCM
// (the expected decoder output) and a JSON config. When FFmpeg is in PATH
// a FLAC copy of each WAV is written too, so the FLAC input path is
// covered by the same matrix.

package main

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
)

// TestConfig describes a test configuration
type TestConfig struct {
	SampleRate  int `json:"sample_rate"`
	SampleSize  int `json:"sample_size"`
	NumChannels int `json:"num_channels"`
	FrameSize   int `json:"frame_size"`
}

var configs = []TestConfig{
	{44100, 16, 1, 4096},
	{44100, 16, 2, 4096},
	{44100, 24, 1, 4096},
	{44100, 24, 2, 4096},
	{48000, 16, 2, 1152},
	{48000, 24, 2, 352},
	{48000, 16, 6, 4096},
	{48000, 24, 8, 4096},
	{96000, 16, 1, 4096},
	{96000, 24, 2, 4096},
	{192000, 24, 2, 4096}, // above the 16.16 rate field of the sample entry
}

var audioTypes = []string{"silence", "sine1k", "sweep", "noise", "whitenoise", "clipped"}

func main() {
	haveFFmpeg := checkFFmpeg() == nil
	if !haveFFmpeg {
		fmt.Fprintf(os.Stderr, "FFmpeg not found; skipping FLAC copies\n")
	}

	baseDir := filepath.Join("testdata", "generated")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	for _, cfg := range configs {
		dirName := fmt.Sprintf("%d_%d_%dch_%d", cfg.SampleRate, cfg.SampleSize, cfg.NumChannels, cfg.FrameSize)
		dir := filepath.Join(baseDir, dirName)
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory %s: %v\n", dir, err)
			continue
		}

		for _, audioType := range audioTypes {
			if err := generateTestCase(dir, audioType, cfg, haveFFmpeg); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating %s/%s: %v\n", dirName, audioType, err)
			} else {
				fmt.Printf("Generated %s/%s\n", dirName, audioType)
			}
		}
	}

	fmt.Println("Done!")
}

func checkFFmpeg() error {
	cmd := exec.Command("ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func generateTestCase(dir, audioType string, cfg TestConfig, withFLAC bool) error {
	wavPath := filepath.Join(dir, audioType+".wav")
	rawPath := filepath.Join(dir, audioType+".raw")
	jsonPath := filepath.Join(dir, audioType+".json")
	flacPath := filepath.Join(dir, audioType+".flac")

	// Skip if all files exist
	if fileExists(wavPath) && fileExists(rawPath) && fileExists(jsonPath) && (!withFLAC || fileExists(flacPath)) {
		return nil
	}

	// 500ms of audio plus an odd tail, so the last frame is partial.
	samples := cfg.SampleRate/2 + 123
	data := synthesize(audioType, cfg, samples)

	if err := writeWAV(wavPath, cfg, data); err != nil {
		return fmt.Errorf("writing WAV: %w", err)
	}
	if err := os.WriteFile(rawPath, data, 0644); err != nil {
		return fmt.Errorf("writing raw: %w", err)
	}
	if withFLAC {
		if err := encodeFLAC(wavPath, flacPath); err != nil {
			return fmt.Errorf("encoding FLAC: %w", err)
		}
	}
	if err := writeConfig(jsonPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// synthesize returns interleaved little-endian samples.
func synthesize(audioType string, cfg TestConfig, samples int) []byte {
	bytesPerSample := cfg.SampleSize / 8
	out := make([]byte, 0, samples*cfg.NumChannels*bytesPerSample)
	full := float64(int32(1)<<(cfg.SampleSize-1) - 1)

	for i := 0; i < samples; i++ {
		for ch := 0; ch < cfg.NumChannels; ch++ {
			var sample float64
			switch audioType {
			case "silence":
				sample = 0
			case "sine1k":
				// Channels differ in phase so the stereo search has work.
				sample = math.Sin(2*math.Pi*1000*float64(i)/float64(cfg.SampleRate) + float64(ch)*0.3)
			case "sweep":
				// Logarithmic sweep from 20Hz to 20kHz
				t := float64(i) / float64(samples)
				freq := 20 * math.Pow(1000, t) // 20 to 20000 Hz
				phase := 2 * math.Pi * freq * float64(i) / float64(cfg.SampleRate)
				sample = math.Sin(phase)
			case "noise":
				// Simple pseudo-random noise using LCG
				seed := uint32(i*cfg.NumChannels + ch + 12345)
				seed = seed*1103515245 + 12345
				sample = float64(int32(seed)) / float64(math.MaxInt32) * 0.5
			case "whitenoise":
				// Full-scale random noise does not compress; frames are stored.
				var b [4]byte
				rand.Read(b[:])
				v := int32(binary.LittleEndian.Uint32(b[:])) >> (32 - cfg.SampleSize)
				out = appendSample(out, v, bytesPerSample)
				continue
			case "clipped":
				// Square wave at both rails, opposite polarity per channel.
				v := int32(full)
				if (i/20+ch)%2 == 1 {
					v = -v - 1
				}
				out = appendSample(out, v, bytesPerSample)
				continue
			}

			out = appendSample(out, int32(sample*full), bytesPerSample)
		}
	}
	return out
}

func appendSample(out []byte, v int32, bytesPerSample int) []byte {
	for b := 0; b < bytesPerSample; b++ {
		out = append(out, byte(v>>(8*b)))
	}
	return out
}

func writeWAV(path string, cfg TestConfig, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bytesPerSample := cfg.SampleSize / 8
	blockAlign := cfg.NumChannels * bytesPerSample
	byteRate := cfg.SampleRate * blockAlign

	// RIFF header
	f.Write([]byte("RIFF"))
	binary.Write(f, binary.LittleEndian, uint32(36+len(data)))
	f.Write([]byte("WAVE"))

	// fmt chunk
	f.Write([]byte("fmt "))
	binary.Write(f, binary.LittleEndian, uint32(16)) // chunk size
	binary.Write(f, binary.LittleEndian, uint16(1))  // audio format (PCM)
	binary.Write(f, binary.LittleEndian, uint16(cfg.NumChannels))
	binary.Write(f, binary.LittleEndian, uint32(cfg.SampleRate))
	binary.Write(f, binary.LittleEndian, uint32(byteRate))
	binary.Write(f, binary.LittleEndian, uint16(blockAlign))
	binary.Write(f, binary.LittleEndian, uint16(cfg.SampleSize))

	// data chunk
	f.Write([]byte("data"))
	binary.Write(f, binary.LittleEndian, uint32(len(data)))
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Close()
}

func encodeFLAC(wavPath, flacPath string) error {
	cmd := exec.Command("ffmpeg", "-y", "-v", "error", "-i", wavPath, "-c:a", "flac", flacPath)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func writeConfig(path string, cfg TestConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
