package audio

import "encoding/binary"

// Clip is one captured clip: ordered chunks of interleaved 16-bit samples
// plus the epoch-millisecond stamp taken just before the stream opened.
// A Clip is never modified after capture returns it.
type Clip struct {
	Start  int64
	Format Format
	Chunks [][]int16
}

// Frames returns the number of frames across all chunks.
func (c *Clip) Frames() int {
	if c.Format.Channels <= 0 {
		return 0
	}
	return c.Samples() / c.Format.Channels
}

// Samples returns the number of interleaved samples across all chunks.
func (c *Clip) Samples() int {
	n := 0
	for _, ch := range c.Chunks {
		n += len(ch)
	}
	return n
}

// PCM concatenates the chunks in order as little-endian bytes, the layout
// of a WAV data chunk.
func (c *Clip) PCM() []byte {
	out := make([]byte, 0, c.Samples()*2)
	for _, ch := range c.Chunks {
		for _, s := range ch {
			out = binary.LittleEndian.AppendUint16(out, uint16(s))
		}
	}
	return out
}
