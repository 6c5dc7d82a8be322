// Package audio captures fixed-duration clips from an input device.
package audio

import (
	"fmt"
	"time"
)

// Capture defaults.
const (
	DefaultSampleRate  = 44100
	DefaultChannels    = 1
	DefaultBitDepth    = 16
	DefaultChunkFrames = 1024 // ~23ms at 44100Hz
	DefaultClipSeconds = 3.0
)

// Format describes the PCM stream a clip is captured in.
type Format struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	ChunkFrames int
	ClipSeconds float64
}

// DefaultFormat returns 3s mono 16-bit clips at 44.1kHz in 1024-frame chunks.
func DefaultFormat() Format {
	return Format{
		SampleRate:  DefaultSampleRate,
		Channels:    DefaultChannels,
		BitDepth:    DefaultBitDepth,
		ChunkFrames: DefaultChunkFrames,
		ClipSeconds: DefaultClipSeconds,
	}
}

// Validate reports the first field that cannot be captured.
func (f Format) Validate() error {
	switch {
	case f.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	case f.Channels <= 0:
		return fmt.Errorf("channels must be positive, got %d", f.Channels)
	case f.BitDepth != 16:
		return fmt.Errorf("only 16-bit signed samples are supported, got %d", f.BitDepth)
	case f.ChunkFrames <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", f.ChunkFrames)
	case f.ClipSeconds <= 0:
		return fmt.Errorf("clip duration must be positive, got %g", f.ClipSeconds)
	case f.ChunkCount() < 1:
		return fmt.Errorf("clip of %gs is shorter than one %d-frame chunk", f.ClipSeconds, f.ChunkFrames)
	}
	return nil
}

// ChunkCount is the number of blocking reads per clip: the chunk rate times
// the clip duration, truncated. 44100/1024*3 gives 129.
func (f Format) ChunkCount() int {
	if f.ChunkFrames <= 0 {
		return 0
	}
	return int(float64(f.SampleRate) / float64(f.ChunkFrames) * f.ClipSeconds)
}

// ClipFrames is the exact number of frames in every clip.
func (f Format) ClipFrames() int {
	return f.ChunkCount() * f.ChunkFrames
}

// ChunkSamples is the number of interleaved samples in one chunk.
func (f Format) ChunkSamples() int {
	return f.ChunkFrames * f.Channels
}

// SampleBytes is the width of one sample.
func (f Format) SampleBytes() int {
	return f.BitDepth / 8
}

// Duration converts a frame count to wall-clock time.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
