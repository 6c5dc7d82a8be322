// Package clip persists captured clips as write-once WAV files.
package clip

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/GriffinCanCode/cliprelay/internal/audio"
	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
)

// Ext is the extension of every clip file.
const Ext = ".wav"

// wavFormatPCM is the WAVE_FORMAT_PCM tag.
const wavFormatPCM = 1

// Writer writes clips into one directory. Each file is encoded into a hidden
// temp file and renamed into place, so a directory watcher only ever sees
// complete clips under their final name.
type Writer struct {
	dir string
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeWriteFailure, "create clip dir %s", dir)
	}
	return &Writer{dir: dir}, nil
}

// Path returns the destination of a clip started at stamp.
func (w *Writer) Path(stamp int64) string {
	return filepath.Join(w.dir, Name(stamp))
}

// Write encodes c as PCM WAV at Path(c.Start) and returns that path.
// An existing file with the same name is replaced.
func (w *Writer) Write(c *audio.Clip) (string, error) {
	path := w.Path(c.Start)
	fail := func(err error, msg string) (string, error) {
		return "", apperrors.Wrap(err, apperrors.CodeWriteFailure, msg).WithMetadata("file", filepath.Base(path))
	}

	tmp, err := os.CreateTemp(w.dir, "."+Name(c.Start)+".*.tmp")
	if err != nil {
		return fail(err, "create temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op once the rename has succeeded.
		_ = os.Remove(tmpPath)
	}()

	if err := encode(tmp, c); err != nil {
		_ = tmp.Close()
		return fail(err, "encode wav")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fail(err, "sync wav")
	}
	if err := tmp.Close(); err != nil {
		return fail(err, "close wav")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fail(err, "publish wav")
	}
	return path, nil
}

func encode(f *os.File, c *audio.Clip) error {
	enc := wav.NewEncoder(f, c.Format.SampleRate, c.Format.BitDepth, c.Format.Channels, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: c.Format.Channels,
			SampleRate:  c.Format.SampleRate,
		},
		Data:           make([]int, 0, c.Samples()),
		SourceBitDepth: c.Format.BitDepth,
	}
	for _, ch := range c.Chunks {
		for _, s := range ch {
			buf.Data = append(buf.Data, int(s))
		}
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Name returns the file name for a clip started at stamp.
func Name(stamp int64) string {
	return strconv.FormatInt(stamp, 10) + Ext
}

// ParseName extracts the start stamp from a clip file name or path.
func ParseName(name string) (int64, error) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, Ext) {
		return 0, fmt.Errorf("not a clip file: %s", base)
	}
	stamp, err := strconv.ParseInt(strings.TrimSuffix(base, Ext), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a clip file: %s", base)
	}
	return stamp, nil
}
