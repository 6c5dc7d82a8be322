package clip

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/GriffinCanCode/cliprelay/internal/audio"
)

// Decoded is a clip file read back from disk.
type Decoded struct {
	Format  audio.Format
	Samples []int16
}

// Frames returns the number of frames in the file.
func (d *Decoded) Frames() int {
	if d.Format.Channels <= 0 {
		return 0
	}
	return len(d.Samples) / d.Format.Channels
}

// Read decodes a clip file. Format.ChunkFrames and ClipSeconds are not
// stored in WAV and are left zero.
func Read(path string) (*Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file: " + path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("decode %s: unsupported bit depth %d", path, dec.BitDepth)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return &Decoded{
		Format: audio.Format{
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
			BitDepth:   int(dec.BitDepth),
		},
		Samples: samples,
	}, nil
}
