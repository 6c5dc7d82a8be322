package audio

// Device opens blocking input streams. Physical devices generally refuse a
// second concurrent open, so callers must serialize Open/Close pairs.
type Device interface {
	Open(f Format) (Stream, error)
	Close() error
}

// Stream is one open input stream.
type Stream interface {
	// Read blocks until buf (ChunkSamples long) is filled with the next
	// chunk of interleaved samples.
	Read(buf []int16) error
	Close() error
}
