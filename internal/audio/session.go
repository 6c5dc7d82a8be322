package audio

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
)

// Session captures a single clip. It owns the device's input stream for
// exactly the duration of one Capture call.
type Session struct {
	Device Device
	Format Format
	// Stamp returns the clip's start stamp in epoch milliseconds. It is
	// called immediately before the stream is opened.
	Stamp func() int64
}

// Capture opens the stream, performs Format.ChunkCount blocking reads and
// closes the stream. A failed open returns CodeDeviceUnavailable; a failed
// read returns CodeReadFailure and the partial clip is dropped. ctx is
// checked between reads.
func (s *Session) Capture(ctx context.Context) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stamp := s.stamp()
	stream, err := s.Device.Open(s.Format)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDeviceUnavailable, "open input stream").
			WithMetadata("clip", strconv.FormatInt(stamp, 10))
	}
	defer func() { _ = stream.Close() }()

	n := s.Format.ChunkCount()
	size := s.Format.ChunkSamples()
	chunks := make([][]int16, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := make([]int16, size)
		if err := stream.Read(buf); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.CodeReadFailure, "read chunk %d/%d", i+1, n).
				WithMetadata("clip", strconv.FormatInt(stamp, 10))
		}
		chunks = append(chunks, buf)
	}

	return &Clip{Start: stamp, Format: s.Format, Chunks: chunks}, nil
}

func (s *Session) stamp() int64 {
	if s.Stamp != nil {
		return s.Stamp()
	}
	return time.Now().UnixMilli()
}
