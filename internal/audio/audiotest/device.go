// Package audiotest provides an in-memory audio device for tests.
package audiotest

import (
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/cliprelay/internal/audio"
)

// ErrBusy is returned by Open while another stream is still open.
var ErrBusy = errors.New("audiotest: device busy")

// Device is a fake single-open input device producing deterministic
// samples. The zero value is ready to use.
type Device struct {
	// ReadDelay simulates the blocking time of one chunk read.
	ReadDelay time.Duration
	// OpenErr, when set, is consulted on every Open with the 1-based open
	// attempt number.
	OpenErr func(attempt int) error
	// ReadErr, when set, is consulted on every Read with the 1-based open
	// attempt number and the 0-based chunk index.
	ReadErr func(attempt, chunk int) error

	mu       sync.Mutex
	attempts int
	open     int
	maxOpen  int
	busy     int
	closed   bool
}

// Open implements audio.Device.
func (d *Device) Open(f audio.Format) (audio.Stream, error) {
	d.mu.Lock()
	d.attempts++
	attempt := d.attempts
	if d.OpenErr != nil {
		if err := d.OpenErr(attempt); err != nil {
			d.mu.Unlock()
			return nil, err
		}
	}
	if d.open > 0 {
		d.busy++
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	d.mu.Unlock()

	return &stream{dev: d, attempt: attempt}, nil
}

// Close implements audio.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Attempts returns how many times Open was called.
func (d *Device) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// OpenStreams returns the number of streams not yet closed.
func (d *Device) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// MaxConcurrent returns the highest number of simultaneously open streams.
func (d *Device) MaxConcurrent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// BusyRejects returns how many opens were refused because a stream was open.
func (d *Device) BusyRejects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Sample is the value the fake device produces at position i of the
// stream opened on the given attempt.
func Sample(attempt, i int) int16 {
	return int16((attempt*7919 + i*31) % 65536)
}

type stream struct {
	dev     *Device
	attempt int
	chunk   int
	pos     int
	once    sync.Once
}

func (s *stream) Read(buf []int16) error {
	if s.dev.ReadDelay > 0 {
		time.Sleep(s.dev.ReadDelay)
	}
	if s.dev.ReadErr != nil {
		if err := s.dev.ReadErr(s.attempt, s.chunk); err != nil {
			return err
		}
	}
	for i := range buf {
		buf[i] = Sample(s.attempt, s.pos)
		s.pos++
	}
	s.chunk++
	return nil
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.dev.mu.Lock()
		s.dev.open--
		s.dev.mu.Unlock()
	})
	return nil
}
