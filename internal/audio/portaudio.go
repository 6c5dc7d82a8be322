package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is a Device backed by the host's PortAudio input devices.
type PortAudio struct {
	name      string
	excluded  []string
	closeOnce sync.Once
}

// NewPortAudio initializes the PortAudio subsystem. name selects an input
// device by case-insensitive substring; empty uses the host default.
// Devices matching any excluded substring are never selected.
func NewPortAudio(name string, excluded []string) (*PortAudio, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &PortAudio{name: name, excluded: excluded}, nil
}

// Open starts a blocking input stream in format f.
func (p *PortAudio) Open(f Format) (Stream, error) {
	dev, err := p.input()
	if err != nil {
		return nil, err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: f.Channels,
			Latency:  dev.DefaultHighInputLatency,
		},
		SampleRate:      float64(f.SampleRate),
		FramesPerBuffer: f.ChunkFrames,
	}

	buf := make([]int16, f.ChunkSamples())
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start %q: %w", dev.Name, err)
	}
	return &paStream{stream: stream, buf: buf, device: dev.Name}, nil
}

// Close terminates the PortAudio subsystem.
func (p *PortAudio) Close() error {
	var err error
	p.closeOnce.Do(func() { err = portaudio.Terminate() })
	return err
}

func (p *PortAudio) input() (*portaudio.DeviceInfo, error) {
	if p.name == "" && len(p.excluded) == 0 {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	return pickInput(devices, p.name, p.excluded, def)
}

// pickInput chooses the capture device: the first named match, else the
// default when it is not excluded, else the first usable input.
func pickInput(devices []*portaudio.DeviceInfo, name string, excluded []string, def *portaudio.DeviceInfo) (*portaudio.DeviceInfo, error) {
	usable := func(d *portaudio.DeviceInfo) bool {
		return d != nil && d.MaxInputChannels > 0 && !matchesAny(d.Name, excluded)
	}

	if name != "" {
		for _, d := range devices {
			if usable(d) && containsFold(d.Name, name) {
				return d, nil
			}
		}
		return nil, fmt.Errorf("no input device matching %q", name)
	}

	if usable(def) {
		return def, nil
	}
	for _, d := range devices {
		if usable(d) {
			return d, nil
		}
	}
	return nil, errors.New("no usable input device")
}

func matchesAny(name string, subs []string) bool {
	for _, s := range subs {
		if containsFold(name, s) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

type paStream struct {
	stream    *portaudio.Stream
	buf       []int16
	device    string
	closeOnce sync.Once
}

func (s *paStream) Read(buf []int16) error {
	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
		// The chunk is still delivered, just late.
		slog.Debug("audio input overflowed", "device", s.device)
	}
	copy(buf, s.buf)
	return nil
}

func (s *paStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.stream.Stop()
		err = s.stream.Close()
	})
	return err
}
